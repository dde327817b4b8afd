package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

const (
	// StreamName is the JetStream stream holding session transitions.
	StreamName = "ROUTE_EVENTS"
	// SubjectPrefix roots every transition subject.
	SubjectPrefix = "routefinder.session."
)

// TransitionSubject is routefinder.session.<id>.<state>.
func TransitionSubject(sessionID string, state domain.SessionState) string {
	return SubjectPrefix + sessionID + "." + state.String()
}

// Publisher implements ports.RouteEventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	cfg := &nats.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{SubjectPrefix + ">"},
		Retention: nats.LimitsPolicy,
		MaxAge:    1 * time.Hour,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(cfg); err != nil {
		// Stream may already exist; try update
		if _, err := js.UpdateStream(cfg); err != nil {
			return nil, fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishTransition publishes the view of one state transition.
func (p *Publisher) PublishTransition(ctx context.Context, view domain.RouteView) error {
	data, err := json.Marshal(view)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(TransitionSubject(view.SessionID, view.State), data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for readiness checks.
func (p *Publisher) Conn() *nats.Conn {
	return p.conn
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

// Connect opens a plain NATS connection with reconnects enabled.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}
