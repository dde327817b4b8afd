package usecases_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/usecases"
)

func TestSessionManager_Lifecycle(t *testing.T) {
	m := usecases.NewSessionManager(newDeps(parisBerlin(), &mockRouter{}), time.Minute)

	s := m.Create()
	require.NotEmpty(t, s.ID())
	assert.Equal(t, 1, m.Len())

	got, err := m.Get(s.ID())
	require.NoError(t, err)
	assert.Same(t, s, got)

	require.NoError(t, m.Delete(s.ID()))
	_, err = m.Get(s.ID())
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
	assert.True(t, errors.Is(m.Delete(s.ID()), domain.ErrSessionNotFound))
}

func TestSessionManager_IDsAreUnique(t *testing.T) {
	m := usecases.NewSessionManager(newDeps(parisBerlin(), &mockRouter{}), time.Minute)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		id := m.Create().ID()
		assert.False(t, seen[id])
		seen[id] = true
	}
}

func TestSessionManager_EphemeralIsNotRegistered(t *testing.T) {
	m := usecases.NewSessionManager(newDeps(parisBerlin(), &mockRouter{}), time.Minute)

	s := m.Ephemeral()
	_, err := m.Get(s.ID())
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestSessionManager_EvictIdle(t *testing.T) {
	router := routerReturning(&domain.RouteResponse{Features: []domain.RawGeometryFeature{lineOf(2)}})
	m := usecases.NewSessionManager(newDeps(parisBerlin(), router), time.Minute)

	stale := m.Create()
	fresh := m.Create()

	assert.Zero(t, m.EvictIdle(time.Now()))

	later := time.Now().Add(2 * time.Minute)
	_, err := fresh.FindRoute(context.Background(), usecases.FindRouteRequest{Start: "Paris", End: "Berlin"})
	require.NoError(t, err)

	evicted := m.EvictIdle(later)
	assert.Equal(t, 2, evicted, "both sessions are older than the TTL at that instant")

	_, err = m.Get(stale.ID())
	assert.True(t, errors.Is(err, domain.ErrSessionNotFound))
}

func TestSessionManager_RunJanitorStopsWithContext(t *testing.T) {
	m := usecases.NewSessionManager(newDeps(parisBerlin(), &mockRouter{}), time.Nanosecond)
	m.Create()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunJanitor(ctx, 5*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool { return m.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop")
	}
}

func TestSessionManager_ListIsOrderedByID(t *testing.T) {
	m := usecases.NewSessionManager(newDeps(parisBerlin(), &mockRouter{}), time.Minute)
	for i := 0; i < 5; i++ {
		m.Create()
	}

	list := m.List()
	require.Len(t, list, 5)
	for i := 1; i < len(list); i++ {
		assert.Less(t, list[i-1].ID(), list[i].ID())
	}
}
