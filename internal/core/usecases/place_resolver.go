package usecases

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
)

// DefaultPreferredKind is the match kind the resolver favours.
const DefaultPreferredKind = "city"

// PlaceResolver turns a free-text place name into one coordinate.
type PlaceResolver struct {
	geocoder      ports.Geocoder
	cache         ports.CacheService
	preferredKind string
	cacheTTL      int
}

// ResolverOption configures a PlaceResolver.
type ResolverOption func(*PlaceResolver)

// WithPreferredKind overrides the match kind preferred during disambiguation.
func WithPreferredKind(kind string) ResolverOption {
	return func(r *PlaceResolver) {
		if kind != "" {
			r.preferredKind = kind
		}
	}
}

// WithCacheTTL sets how long raw geocoding matches are cached, in seconds.
// Zero disables caching.
func WithCacheTTL(seconds int) ResolverOption {
	return func(r *PlaceResolver) { r.cacheTTL = seconds }
}

// NewPlaceResolver creates a new PlaceResolver. cache may be nil.
func NewPlaceResolver(geocoder ports.Geocoder, cache ports.CacheService, opts ...ResolverOption) *PlaceResolver {
	r := &PlaceResolver{
		geocoder:      geocoder,
		cache:         cache,
		preferredKind: DefaultPreferredKind,
		cacheTTL:      86400,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve geocodes query and applies the disambiguation policy. Failures are
// returned as *domain.ResolutionFailure; the caller rejects empty queries.
func (r *PlaceResolver) Resolve(ctx context.Context, query domain.PlaceQuery, role domain.PlaceRole) (domain.ResolvedPlace, error) {
	ctx, span := tracer.Start(ctx, "PlaceResolver.Resolve")
	defer span.End()
	span.SetAttributes(attribute.String("place.role", string(role)))

	fail := func(result string, err error) (domain.ResolvedPlace, error) {
		metrics.GeocodeLookups.WithLabelValues(result).Inc()
		span.SetStatus(codes.Error, result)
		return domain.ResolvedPlace{}, &domain.ResolutionFailure{Query: query, Err: err}
	}

	matches, err := r.lookup(ctx, string(query))
	if err != nil {
		if !errors.Is(err, domain.ErrTransport) {
			err = fmt.Errorf("%w: %v", domain.ErrTransport, err)
		}
		return fail("error", err)
	}

	match, ok := PickMatch(matches, r.preferredKind)
	if !ok {
		return fail("no_match", domain.ErrNoMatches)
	}

	point, err := domain.ParseGeoPoint(match.RawLat, match.RawLon)
	if err != nil {
		return fail("malformed", err)
	}

	metrics.GeocodeLookups.WithLabelValues("resolved").Inc()
	return domain.ResolvedPlace{
		Query:       query,
		Role:        role,
		Point:       point,
		DisplayName: match.DisplayName,
	}, nil
}

// PickMatch returns the first match of the preferred kind, else the first
// match. It reports false only for an empty list.
func PickMatch(matches []domain.GeocodeMatch, preferredKind string) (domain.GeocodeMatch, bool) {
	if len(matches) == 0 {
		return domain.GeocodeMatch{}, false
	}
	for _, m := range matches {
		if m.Kind == preferredKind {
			return m, true
		}
	}
	return matches[0], true
}

// lookup is a read-through cache around the geocoder. Raw matches are cached
// so the disambiguation policy still runs on every hit.
func (r *PlaceResolver) lookup(ctx context.Context, query string) ([]domain.GeocodeMatch, error) {
	cacheKey := "geocode:" + strings.ToLower(strings.TrimSpace(query))
	if r.cache != nil && r.cacheTTL > 0 {
		if data, err := r.cache.Get(ctx, cacheKey); err == nil {
			var matches []domain.GeocodeMatch
			if err := json.Unmarshal(data, &matches); err == nil && len(matches) > 0 {
				metrics.CacheHits.WithLabelValues("geocode").Inc()
				return matches, nil
			}
			// Unreadable entry; drop it so the fresh answer replaces it.
			_ = r.cache.Delete(ctx, cacheKey)
		}
		metrics.CacheMisses.WithLabelValues("geocode").Inc()
	}

	start := time.Now()
	matches, err := r.geocoder.Search(ctx, query)
	metrics.UpstreamDuration.WithLabelValues("geocoder").Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	// Empty answers are not cached.
	if r.cache != nil && r.cacheTTL > 0 && len(matches) > 0 {
		if data, err := json.Marshal(matches); err == nil {
			_ = r.cache.Set(ctx, cacheKey, data, r.cacheTTL)
		}
	}

	return matches, nil
}
