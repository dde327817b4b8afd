package ports

import (
	"context"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// Geocoder looks up a free-text place name. An empty slice is a valid answer.
type Geocoder interface {
	Search(ctx context.Context, query string) ([]domain.GeocodeMatch, error)
}

// RoutingService asks the external backend for a route.
// Network and protocol failures are returned as errors.
type RoutingService interface {
	Route(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error)
}

// RouteEventPublisher publishes session transitions to a message broker.
type RouteEventPublisher interface {
	PublishTransition(ctx context.Context, view domain.RouteView) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}
