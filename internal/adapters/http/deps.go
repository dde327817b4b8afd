package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/routefinder/internal/adapters/valkey"
	"github.com/samirrijal/routefinder/internal/core/usecases"
)

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Sessions *usecases.SessionManager
	NATS     *nats.Conn    // optional
	Cache    *valkey.Cache // optional
	Version  string
}
