package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// Subscriber consumes session transitions from JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// FilterSubject returns the subject matching one session, or all sessions
// when sessionID is empty.
func FilterSubject(sessionID string) string {
	if sessionID == "" {
		return SubjectPrefix + ">"
	}
	return SubjectPrefix + sessionID + ".*"
}

// SubscribeTransitions delivers every transition matching sessionID to handler.
// A handler error naks the message so it is redelivered, up to three times.
func (s *Subscriber) SubscribeTransitions(ctx context.Context, sessionID, durable string, handler func(ctx context.Context, view domain.RouteView) error) error {
	opts := []nats.SubOpt{
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.DeliverNew(),
	}
	if durable != "" {
		opts = append(opts, nats.Durable(durable))
	}

	sub, err := s.js.Subscribe(FilterSubject(sessionID), func(msg *nats.Msg) {
		var view domain.RouteView
		if err := json.Unmarshal(msg.Data, &view); err != nil {
			// Undecodable payloads will never succeed.
			_ = msg.Term()
			return
		}
		if err := handler(ctx, view); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}, opts...)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
