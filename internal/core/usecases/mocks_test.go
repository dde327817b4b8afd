package usecases_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
)

// --- Mock Geocoder ---

type mockGeocoder struct {
	mu       sync.Mutex
	calls    []string
	searchFn func(ctx context.Context, query string) ([]domain.GeocodeMatch, error)
}

func (m *mockGeocoder) Search(ctx context.Context, query string) ([]domain.GeocodeMatch, error) {
	m.mu.Lock()
	m.calls = append(m.calls, query)
	m.mu.Unlock()
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockGeocoder) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// geocoderFrom answers each query from a fixed table; unknown queries get no matches.
func geocoderFrom(table map[string][]domain.GeocodeMatch) *mockGeocoder {
	return &mockGeocoder{
		searchFn: func(ctx context.Context, query string) ([]domain.GeocodeMatch, error) {
			return table[query], nil
		},
	}
}

func city(lat, lon string) []domain.GeocodeMatch {
	return []domain.GeocodeMatch{{Kind: "city", RawLat: lat, RawLon: lon}}
}

// --- Mock RoutingService ---

type mockRouter struct {
	mu      sync.Mutex
	calls   []domain.RouteRequest
	routeFn func(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error)
}

func (m *mockRouter) Route(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	m.mu.Unlock()
	if m.routeFn != nil {
		return m.routeFn(ctx, req)
	}
	return &domain.RouteResponse{}, nil
}

func (m *mockRouter) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func routerReturning(resp *domain.RouteResponse) *mockRouter {
	return &mockRouter{
		routeFn: func(ctx context.Context, req domain.RouteRequest) (*domain.RouteResponse, error) {
			return resp, nil
		},
	}
}

// --- Mock CacheService ---

var errCacheMiss = errors.New("cache miss")

type mockCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	ttls    map[string]int
	deletes int
}

func newMockCache() *mockCache {
	return &mockCache{data: map[string][]byte{}, ttls: map[string]int{}}
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	if !ok {
		return nil, errCacheMiss
	}
	return v, nil
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	m.ttls[key] = ttlSeconds
	return nil
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deletes++
	return nil
}

// --- Mock RouteEventPublisher ---

type mockPublisher struct {
	mu     sync.Mutex
	states []domain.SessionState
}

func (m *mockPublisher) PublishTransition(ctx context.Context, view domain.RouteView) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states = append(m.states, view.State)
	return nil
}

func (m *mockPublisher) published() []domain.SessionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.SessionState(nil), m.states...)
}

// --- Geometry helpers ---

func rawFeature(geomType string, coordinates any) domain.RawGeometryFeature {
	data, err := json.Marshal(coordinates)
	if err != nil {
		panic(err)
	}
	return domain.RawGeometryFeature{Geometry: &domain.RawGeometry{Type: geomType, Coordinates: data}}
}

// lineOf returns a LineString with n valid [lon, lat] pairs.
func lineOf(n int) domain.RawGeometryFeature {
	coords := make([][2]float64, n)
	for i := range coords {
		coords[i] = [2]float64{2.35 + float64(i)*0.1, 48.85 + float64(i)*0.05}
	}
	return rawFeature("LineString", coords)
}

func candidate(n, source int) domain.CandidateRoute {
	pts := make([]domain.GeoPoint, n)
	for i := range pts {
		pts[i] = domain.GeoPoint{Lat: float64(i), Lon: float64(i)}
	}
	c, err := domain.NewCandidateRoute(pts, source)
	if err != nil {
		panic(fmt.Sprintf("candidate: %v", err))
	}
	return c
}

func newDeps(geo *mockGeocoder, router *mockRouter) usecases.SessionDeps {
	return usecases.SessionDeps{
		Resolver:   usecases.NewPlaceResolver(geo, nil),
		Router:     router,
		Normalizer: usecases.NewGeometryNormalizer(usecases.MultiLineFlatten),
	}
}
