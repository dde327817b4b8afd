package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
)

// wsMessage is sent from client to drive the session.
type wsMessage struct {
	Action    string              `json:"action"` // "find" | "select" | "reset"
	Start     domain.PlaceQuery   `json:"start"`
	End       domain.PlaceQuery   `json:"end"`
	Waypoints []domain.PlaceQuery `json:"waypoints"`
	Index     int                 `json:"index"`
}

// SessionStreamUpgrade resolves the session before the upgrade so an unknown
// ID gets a plain 404.
func SessionStreamUpgrade(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		s, err := lookupSession(c, deps)
		if s == nil {
			return err
		}
		c.Locals("session", s)
		return c.Next()
	}
}

// SessionStreamHandler pushes the session view after every transition.
// Clients may also drive the session:
// {"action":"find","start":"Paris","end":"Berlin"}, {"action":"select","index":1}, {"action":"reset"}
func SessionStreamHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		s, ok := c.Locals("session").(*usecases.RouteSession)
		if !ok {
			return
		}

		remoteAddr := c.RemoteAddr().String()
		log := slog.Default().With("session_id", s.ID(), "remote", remoteAddr)
		log.Info("ws client connected")

		var mu sync.Mutex
		writeJSON := func(v interface{}) error {
			data, err := json.Marshal(v)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			return c.WriteMessage(websocket.TextMessage, data)
		}

		// Observers must not block, so views are queued for the writer goroutine.
		views := make(chan domain.RouteView, 32)
		unsubscribe := s.Subscribe(func(v domain.RouteView) {
			select {
			case views <- v:
			default:
				log.Warn("ws client too slow, view dropped", "version", v.Version)
			}
		})
		defer unsubscribe()

		if err := writeJSON(s.View()); err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		// Writer + keep-alive ping
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case v := <-views:
					if err := writeJSON(v); err != nil {
						return
					}
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-ctx.Done():
					return
				}
			}
		}()

		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var m wsMessage
			if err := json.Unmarshal(msg, &m); err != nil {
				_ = writeJSON(map[string]string{"error": "invalid JSON"})
				continue
			}

			switch m.Action {
			case "find":
				req := usecases.FindRouteRequest{Start: m.Start, End: m.End, Waypoints: m.Waypoints}
				if err := validateFindRequest(req); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
					continue
				}
				// The attempt outlives the connection; its transitions arrive through the observer.
				go func() {
					actx, acancel := context.WithTimeout(context.Background(), attemptTimeout)
					defer acancel()
					_, err := s.FindRoute(actx, req)
					if errors.Is(err, domain.ErrEmptyQuery) || errors.Is(err, domain.ErrAttemptInFlight) {
						_ = writeJSON(map[string]string{"error": err.Error()})
					}
				}()

			case "select":
				if _, err := s.Reselect(ctx, m.Index); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
				}

			case "reset":
				if _, err := s.Reset(ctx); err != nil {
					_ = writeJSON(map[string]string{"error": err.Error()})
				}

			default:
				_ = writeJSON(map[string]string{"error": "unknown action: " + m.Action})
			}
		}

		log.Info("ws client disconnected")
	}
}
