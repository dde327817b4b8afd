package usecases

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/core/ports"
	"github.com/samirrijal/routefinder/internal/pkg/geospatial"
	"github.com/samirrijal/routefinder/internal/pkg/logging"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
)

// SessionDeps are the collaborators shared by every RouteSession.
type SessionDeps struct {
	Resolver   *PlaceResolver
	Router     ports.RoutingService
	Normalizer *GeometryNormalizer
	Events     ports.RouteEventPublisher // optional
	// PublishTimeout bounds each transition publish. Zero means DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// DefaultPublishTimeout bounds a transition publish when SessionDeps leaves it unset.
const DefaultPublishTimeout = 2 * time.Second

// FindRouteRequest is one user-triggered "find route" action.
type FindRouteRequest struct {
	Start     domain.PlaceQuery   `json:"start"`
	End       domain.PlaceQuery   `json:"end"`
	Waypoints []domain.PlaceQuery `json:"waypoints,omitempty"`
}

// RouteSession owns the state machine of one user's route finding.
// At most one attempt is in flight; triggers during an attempt are ignored.
type RouteSession struct {
	id   string
	deps SessionDeps

	mu         sync.Mutex
	state      domain.SessionState
	routeSet   *domain.RouteSet
	places     []domain.ResolvedPlace
	dropped    []domain.PlaceQuery
	failure    *domain.RouteError
	version    uint64
	lastActive time.Time
	observers  map[int]func(domain.RouteView)
	nextObs    int

	// emitMu keeps observer delivery in version order.
	emitMu      sync.Mutex
	lastEmitted uint64
}

// NewRouteSession creates an idle session.
func NewRouteSession(id string, deps SessionDeps) *RouteSession {
	return &RouteSession{
		id:         id,
		deps:       deps,
		state:      domain.StateIdle,
		lastActive: time.Now(),
		observers:  make(map[int]func(domain.RouteView)),
	}
}

// ID returns the session identifier.
func (s *RouteSession) ID() string {
	return s.id
}

// State returns the current state.
func (s *RouteSession) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastActive is the time of the last trigger or transition.
func (s *RouteSession) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// View returns the read-only view model for the rendering layer.
func (s *RouteSession) View() domain.RouteView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// Subscribe registers fn to receive the view after every transition.
// fn runs synchronously on the transitioning goroutine and must not block.
func (s *RouteSession) Subscribe(fn func(domain.RouteView)) (unsubscribe func()) {
	s.mu.Lock()
	id := s.nextObs
	s.nextObs++
	s.observers[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.observers, id)
		s.mu.Unlock()
	}
}

// FindRoute runs one attempt to completion and returns the final view.
// Empty start/end yields ErrEmptyQuery and a trigger during an attempt yields
// ErrAttemptInFlight; neither changes state. A failed attempt returns the
// Failed view together with its *domain.RouteError.
func (s *RouteSession) FindRoute(ctx context.Context, req FindRouteRequest) (domain.RouteView, error) {
	if req.Start.Empty() || req.End.Empty() {
		metrics.RejectedTriggers.WithLabelValues("validation").Inc()
		return s.View(), domain.ErrEmptyQuery
	}

	s.mu.Lock()
	if s.state.InFlight() {
		view := s.viewLocked()
		s.mu.Unlock()
		metrics.RejectedTriggers.WithLabelValues("in_flight").Inc()
		return view, domain.ErrAttemptInFlight
	}
	s.routeSet, s.places, s.dropped, s.failure = nil, nil, nil, nil
	view := s.transitionLocked(domain.StateResolvingPlaces)
	s.mu.Unlock()

	ctx, span := tracer.Start(ctx, "RouteSession.FindRoute")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", s.id),
		attribute.Int("route.waypoints", len(req.Waypoints)),
	)

	s.emit(ctx, view)

	started := time.Now()
	view, err := s.run(ctx, req)
	metrics.AttemptDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		span.SetStatus(codes.Error, string(domain.KindOf(err)))
		metrics.RouteAttempts.WithLabelValues(string(domain.KindOf(err))).Inc()
	} else {
		metrics.RouteAttempts.WithLabelValues("ready").Inc()
	}
	return view, err
}

// Reselect makes another candidate the selected one. bestIndex never changes.
func (s *RouteSession) Reselect(ctx context.Context, index int) (domain.RouteView, error) {
	s.mu.Lock()
	if s.state != domain.StateReady || s.routeSet == nil {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, domain.ErrNotReady
	}
	rs, err := Reselect(*s.routeSet, index)
	if err != nil {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, &domain.RouteError{Kind: domain.ErrorKindIndexOutOfRange, Err: err}
	}
	s.routeSet = &rs
	view := s.transitionLocked(domain.StateReady)
	s.mu.Unlock()

	s.emit(ctx, view)
	return view, nil
}

// Reset returns the session to Idle, discarding all route state.
func (s *RouteSession) Reset(ctx context.Context) (domain.RouteView, error) {
	s.mu.Lock()
	if s.state.InFlight() {
		view := s.viewLocked()
		s.mu.Unlock()
		return view, domain.ErrAttemptInFlight
	}
	s.routeSet, s.places, s.dropped, s.failure = nil, nil, nil, nil
	view := s.transitionLocked(domain.StateIdle)
	s.mu.Unlock()

	s.emit(ctx, view)
	return view, nil
}

type placeSlot struct {
	query domain.PlaceQuery
	role  domain.PlaceRole
}

type placeOutcome struct {
	place domain.ResolvedPlace
	err   error
}

func (s *RouteSession) run(ctx context.Context, req FindRouteRequest) (domain.RouteView, error) {
	log := logging.FromContext(ctx).With("session_id", s.id)

	slots := []placeSlot{
		{query: req.Start, role: domain.RoleStart},
		{query: req.End, role: domain.RoleEnd},
	}
	for _, wp := range req.Waypoints {
		if wp.Empty() {
			continue
		}
		slots = append(slots, placeSlot{query: wp, role: domain.RoleWaypoint})
	}

	outcomes := s.resolveAll(ctx, slots)

	var (
		places    []domain.ResolvedPlace
		dropped   []domain.PlaceQuery
		failed    []domain.PlaceQuery
		transport bool
		firstErr  error
	)
	for i, o := range outcomes {
		if o.err == nil {
			places = append(places, o.place)
			continue
		}
		if !slots[i].role.Required() {
			log.Warn("waypoint dropped", "query", string(slots[i].query), "error", o.err)
			metrics.DroppedWaypoints.Inc()
			dropped = append(dropped, slots[i].query)
			continue
		}
		failed = append(failed, slots[i].query)
		if errors.Is(o.err, domain.ErrTransport) {
			transport = true
		}
		if firstErr == nil {
			firstErr = o.err
		}
	}

	if len(failed) > 0 {
		kind := domain.ErrorKindInvalidPlace
		if transport {
			kind = domain.ErrorKindTransport
		}
		return s.fail(ctx, &domain.RouteError{Kind: kind, Queries: failed, Err: firstErr})
	}

	s.mu.Lock()
	s.places = places
	s.dropped = dropped
	view := s.transitionLocked(domain.StateRequestingRoute)
	s.mu.Unlock()
	s.emit(ctx, view)

	// places[0] and places[1] are start and end; the rest are waypoints in order.
	waypoints := make([]domain.GeoPoint, 0, len(places)-2)
	for _, p := range places[2:] {
		waypoints = append(waypoints, p.Point)
	}
	routeReq := BuildRouteRequest(places[0].Point, places[1].Point, waypoints)

	started := time.Now()
	resp, err := s.deps.Router.Route(ctx, routeReq)
	metrics.UpstreamDuration.WithLabelValues("routing").Observe(time.Since(started).Seconds())
	if err != nil {
		return s.fail(ctx, &domain.RouteError{Kind: domain.ErrorKindTransport, Err: err})
	}
	if resp == nil {
		return s.fail(ctx, &domain.RouteError{Kind: domain.ErrorKindNoRoute, Err: domain.ErrNoRoute})
	}

	candidates := s.deps.Normalizer.Normalize(resp.Features)
	rs, err := Select(candidates, resp.Properties)
	if err != nil {
		return s.fail(ctx, &domain.RouteError{Kind: domain.ErrorKindNoRoute, Err: err})
	}

	s.mu.Lock()
	s.routeSet = &rs
	view = s.transitionLocked(domain.StateReady)
	s.mu.Unlock()
	s.emit(ctx, view)

	log.Info("route ready",
		"candidates", rs.Len(),
		"best_index", rs.BestIndex(),
		"dropped_waypoints", len(dropped),
	)
	return view, nil
}

// resolveAll resolves every slot concurrently and waits for all of them.
// A failure does not cut short the peers already in flight.
func (s *RouteSession) resolveAll(ctx context.Context, slots []placeSlot) []placeOutcome {
	outcomes := make([]placeOutcome, len(slots))

	var wg sync.WaitGroup
	for i, slot := range slots {
		wg.Add(1)
		go func(i int, slot placeSlot) {
			defer wg.Done()
			place, err := s.deps.Resolver.Resolve(ctx, slot.query, slot.role)
			outcomes[i] = placeOutcome{place: place, err: err}
		}(i, slot)
	}
	wg.Wait()

	return outcomes
}

func (s *RouteSession) fail(ctx context.Context, rerr *domain.RouteError) (domain.RouteView, error) {
	s.mu.Lock()
	s.routeSet = nil
	s.failure = rerr
	view := s.transitionLocked(domain.StateFailed)
	s.mu.Unlock()
	s.emit(ctx, view)

	logging.FromContext(ctx).Info("route attempt failed",
		"session_id", s.id,
		"kind", string(rerr.Kind),
		"error", rerr.Error(),
	)
	return view, rerr
}

func (s *RouteSession) transitionLocked(next domain.SessionState) domain.RouteView {
	s.state = next
	s.version++
	s.lastActive = time.Now()
	return s.viewLocked()
}

func (s *RouteSession) viewLocked() domain.RouteView {
	v := domain.RouteView{
		SessionID: s.id,
		Version:   s.version,
		State:     s.state,
	}
	if len(s.places) > 0 {
		v.Places = append([]domain.ResolvedPlace(nil), s.places...)
	}
	if len(s.dropped) > 0 {
		v.DroppedWaypoints = append([]domain.PlaceQuery(nil), s.dropped...)
	}
	if s.failure != nil {
		v.ErrorKind = s.failure.Kind
		v.ErrorMessage = s.failure.Kind.Message()
	}
	if s.routeSet != nil {
		v.RouteSet = buildRouteSetView(*s.routeSet)
	}
	return v
}

func buildRouteSetView(rs domain.RouteSet) *domain.RouteSetView {
	candidates := rs.Candidates()
	rv := &domain.RouteSetView{
		CandidatePolylines: make([][]domain.GeoPoint, len(candidates)),
		SourceFeatures:     make([]int, len(candidates)),
		LengthsMeters:      make([]float64, len(candidates)),
		BestIndex:          rs.BestIndex(),
		SelectedIndex:      rs.SelectedIndex(),
		DistanceMeters:     rs.DistanceMeters(),
		TravelTimeSeconds:  rs.TravelTimeSeconds(),
	}
	for i, c := range candidates {
		pts := c.Points()
		rv.CandidatePolylines[i] = pts
		rv.SourceFeatures[i] = c.SourceFeatureIndex()
		rv.LengthsMeters[i] = geospatial.PolylineLength(pts)
	}
	rv.Bounds = geospatial.BoundsOf(rv.CandidatePolylines...)
	return rv
}

// emit delivers view to observers and the event publisher. Views older than
// one already delivered are skipped.
func (s *RouteSession) emit(ctx context.Context, view domain.RouteView) {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()

	if view.Version <= s.lastEmitted {
		return
	}
	s.lastEmitted = view.Version

	s.mu.Lock()
	observers := make([]func(domain.RouteView), 0, len(s.observers))
	for _, fn := range s.observers {
		observers = append(observers, fn)
	}
	s.mu.Unlock()

	logging.FromContext(ctx).Debug("session transition",
		"session_id", s.id,
		"state", view.State.String(),
		"version", view.Version,
	)

	for _, fn := range observers {
		fn(view)
	}

	if s.deps.Events != nil {
		timeout := s.deps.PublishTimeout
		if timeout <= 0 {
			timeout = DefaultPublishTimeout
		}
		// A cancelled attempt still reports its final transition.
		pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		defer cancel()
		if err := s.deps.Events.PublishTransition(pctx, view); err != nil {
			logging.FromContext(ctx).Warn("publish transition failed", "session_id", s.id, "error", err)
		}
	}
}
