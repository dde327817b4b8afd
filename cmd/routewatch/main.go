package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	natsadapter "github.com/samirrijal/routefinder/internal/adapters/nats"
	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/pkg/config"
	"github.com/samirrijal/routefinder/internal/pkg/logging"
)

// routewatch tails session transitions from JetStream and logs them.
// Usage: routewatch [session-id]
func main() {
	cfg, err := config.Load("routefinder-routewatch")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup(cfg.Log.Level, cfg.Log.Format)

	var sessionID string
	if len(os.Args) > 1 {
		sessionID = os.Args[1]
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	var mu sync.Mutex
	counts := make(map[domain.SessionState]int)
	err = sub.SubscribeTransitions(ctx, sessionID, "", func(ctx context.Context, view domain.RouteView) error {
		mu.Lock()
		counts[view.State]++
		mu.Unlock()

		attrs := []any{
			"session_id", view.SessionID,
			"state", view.State.String(),
			"version", view.Version,
		}
		if view.ErrorKind != domain.ErrorKindNone {
			attrs = append(attrs, "error_kind", string(view.ErrorKind))
		}
		if view.RouteSet != nil {
			attrs = append(attrs,
				"candidates", len(view.RouteSet.CandidatePolylines),
				"selected_index", view.RouteSet.SelectedIndex,
			)
		}
		slog.Info("transition", attrs...)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe: %v", err)
	}

	slog.Info("watching session transitions", "subject", natsadapter.FilterSubject(sessionID))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mu.Lock()
	defer mu.Unlock()
	for state, n := range counts {
		slog.Info("summary", "state", state.String(), "count", n)
	}
}
