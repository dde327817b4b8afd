package domain

import (
	"encoding/json"
	"fmt"
)

// GeometryKind is the closed set of geometry tags the normalizer understands.
type GeometryKind int

const (
	GeometryOther GeometryKind = iota
	GeometryLineString
	GeometryMultiLineString
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryLineString:
		return "LineString"
	case GeometryMultiLineString:
		return "MultiLineString"
	default:
		return "Other"
	}
}

// RawGeometry is the loosely-typed geometry object of a routing response.
// Coordinates are kept raw so malformed pairs can be dropped one by one.
type RawGeometry struct {
	Type        string          `json:"type"`
	Coordinates json.RawMessage `json:"coordinates"`
}

// RawGeometryFeature is one feature of a routing response. Read-only input.
type RawGeometryFeature struct {
	Geometry *RawGeometry `json:"geometry"`
}

// Kind maps the free-form type tag to a GeometryKind.
func (f RawGeometryFeature) Kind() GeometryKind {
	if f.Geometry == nil {
		return GeometryOther
	}
	switch f.Geometry.Type {
	case "LineString":
		return GeometryLineString
	case "MultiLineString":
		return GeometryMultiLineString
	default:
		return GeometryOther
	}
}

// HasCoordinates reports whether geometry and coordinates are both present.
func (f RawGeometryFeature) HasCoordinates() bool {
	if f.Geometry == nil {
		return false
	}
	c := f.Geometry.Coordinates
	return len(c) > 0 && string(c) != "null"
}

// RouteProperties carries the optional route-level metrics.
type RouteProperties struct {
	Distance *float64 `json:"distance,omitempty"`
	Time     *float64 `json:"time,omitempty"`
}

// RouteResponse is the GeoJSON-like payload of the routing service.
type RouteResponse struct {
	Features   []RawGeometryFeature `json:"features"`
	Properties *RouteProperties     `json:"properties,omitempty"`
}

// RouteRequest is the ordered parameter set sent to the routing service.
type RouteRequest struct {
	Start     GeoPoint
	End       GeoPoint
	Waypoints []GeoPoint
}

// CandidateRoute is one normalized, renderable coordinate sequence.
// It is immutable: Points returns a copy.
type CandidateRoute struct {
	points             []GeoPoint
	sourceFeatureIndex int
}

// NewCandidateRoute copies points into a new candidate. The sequence must be
// non-empty and every point valid.
func NewCandidateRoute(points []GeoPoint, sourceFeatureIndex int) (CandidateRoute, error) {
	if len(points) == 0 {
		return CandidateRoute{}, fmt.Errorf("candidate route from feature %d has no points", sourceFeatureIndex)
	}
	for i, p := range points {
		if !p.Valid() {
			return CandidateRoute{}, fmt.Errorf("candidate route from feature %d: point %d: %w", sourceFeatureIndex, i, ErrCoordinateOutOfRange)
		}
	}
	cp := make([]GeoPoint, len(points))
	copy(cp, points)
	return CandidateRoute{points: cp, sourceFeatureIndex: sourceFeatureIndex}, nil
}

// Points returns a copy of the route's points.
func (c CandidateRoute) Points() []GeoPoint {
	cp := make([]GeoPoint, len(c.points))
	copy(cp, c.points)
	return cp
}

// Len returns the number of points.
func (c CandidateRoute) Len() int {
	return len(c.points)
}

// SourceFeatureIndex is the position of the originating feature in the response.
func (c CandidateRoute) SourceFeatureIndex() int {
	return c.sourceFeatureIndex
}

// RouteSet is the outcome of one successful routing response.
// The zero value is not usable; build it with NewRouteSet.
type RouteSet struct {
	candidates        []CandidateRoute
	bestIndex         int
	selectedIndex     int
	distanceMeters    *float64
	travelTimeSeconds *float64
}

// NewRouteSet builds a route set with best and selected both set to best.
func NewRouteSet(candidates []CandidateRoute, best int, props *RouteProperties) (RouteSet, error) {
	if len(candidates) == 0 {
		return RouteSet{}, ErrNoRoute
	}
	if best < 0 || best >= len(candidates) {
		return RouteSet{}, fmt.Errorf("%w: best index %d of %d", ErrIndexOutOfRange, best, len(candidates))
	}
	cs := make([]CandidateRoute, len(candidates))
	copy(cs, candidates)
	rs := RouteSet{candidates: cs, bestIndex: best, selectedIndex: best}
	if props != nil {
		rs.distanceMeters = copyFloat(props.Distance)
		rs.travelTimeSeconds = copyFloat(props.Time)
	}
	return rs, nil
}

// WithSelected returns a copy with selectedIndex changed. The receiver is
// never modified, and bestIndex is carried over unchanged.
func (rs RouteSet) WithSelected(i int) (RouteSet, error) {
	if i < 0 || i >= len(rs.candidates) {
		return rs, fmt.Errorf("%w: %d not in [0,%d)", ErrIndexOutOfRange, i, len(rs.candidates))
	}
	out := rs
	out.selectedIndex = i
	return out, nil
}

// Candidates returns a copy of the candidate list.
func (rs RouteSet) Candidates() []CandidateRoute {
	cs := make([]CandidateRoute, len(rs.candidates))
	copy(cs, rs.candidates)
	return cs
}

func (rs RouteSet) Len() int           { return len(rs.candidates) }
func (rs RouteSet) BestIndex() int     { return rs.bestIndex }
func (rs RouteSet) SelectedIndex() int { return rs.selectedIndex }

// DistanceMeters is the backend-reported distance, nil when unknown.
func (rs RouteSet) DistanceMeters() *float64 { return copyFloat(rs.distanceMeters) }

// TravelTimeSeconds is the backend-reported travel time, nil when unknown.
func (rs RouteSet) TravelTimeSeconds() *float64 { return copyFloat(rs.travelTimeSeconds) }

func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}
