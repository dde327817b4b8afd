package usecases

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
)

// SessionManager keeps route sessions in memory, keyed by ID.
type SessionManager struct {
	deps    SessionDeps
	idleTTL time.Duration

	mu       sync.RWMutex
	sessions map[string]*RouteSession
}

// NewSessionManager creates a new SessionManager.
func NewSessionManager(deps SessionDeps, idleTTL time.Duration) *SessionManager {
	return &SessionManager{
		deps:     deps,
		idleTTL:  idleTTL,
		sessions: make(map[string]*RouteSession),
	}
}

// Create registers a new idle session.
func (m *SessionManager) Create() *RouteSession {
	s := NewRouteSession(uuid.NewString(), m.deps)

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.ActiveSessions.Set(float64(n))
	return s
}

// Ephemeral returns a session that is not registered, for one-shot lookups.
func (m *SessionManager) Ephemeral() *RouteSession {
	return NewRouteSession(uuid.NewString(), m.deps)
}

// Get returns the session with the given ID.
func (m *SessionManager) Get(id string) (*RouteSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return s, nil
}

// Delete removes a session. An in-flight attempt still runs to completion.
func (m *SessionManager) Delete(id string) error {
	m.mu.Lock()
	_, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	metrics.ActiveSessions.Set(float64(n))
	return nil
}

// List returns the registered sessions ordered by ID.
func (m *SessionManager) List() []*RouteSession {
	m.mu.RLock()
	out := make([]*RouteSession, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

// Len returns the number of registered sessions.
func (m *SessionManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// EvictIdle drops sessions idle for longer than the TTL as of now.
// Sessions with an attempt in flight are kept.
func (m *SessionManager) EvictIdle(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, s := range m.sessions {
		if s.State().InFlight() {
			continue
		}
		if now.Sub(s.LastActive()) > m.idleTTL {
			delete(m.sessions, id)
			evicted++
		}
	}
	metrics.ActiveSessions.Set(float64(len(m.sessions)))
	return evicted
}

// RunJanitor evicts idle sessions every interval until ctx is done.
func (m *SessionManager) RunJanitor(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := m.EvictIdle(now); n > 0 {
				slog.Debug("evicted idle sessions", "count", n)
			}
		}
	}
}
