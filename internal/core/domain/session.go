package domain

import "fmt"

// SessionState is the state of a RouteSession.
type SessionState int

const (
	StateIdle SessionState = iota
	StateResolvingPlaces
	StateRequestingRoute
	StateReady
	StateFailed
)

func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolvingPlaces:
		return "resolving_places"
	case StateRequestingRoute:
		return "requesting_route"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *SessionState) UnmarshalText(text []byte) error {
	for st := StateIdle; st <= StateFailed; st++ {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown session state %q", text)
}

// InFlight reports whether an attempt is running.
func (s SessionState) InFlight() bool {
	return s == StateResolvingPlaces || s == StateRequestingRoute
}

// RouteSetView is the read-only projection of a RouteSet for renderers.
type RouteSetView struct {
	CandidatePolylines [][]GeoPoint `json:"candidate_polylines"`
	SourceFeatures     []int        `json:"source_features"`
	LengthsMeters      []float64    `json:"lengths_meters"`
	BestIndex          int          `json:"best_index"`
	SelectedIndex      int          `json:"selected_index"`
	DistanceMeters     *float64     `json:"distance_meters,omitempty"`
	TravelTimeSeconds  *float64     `json:"travel_time_seconds,omitempty"`
	Bounds             *Bounds      `json:"bounds,omitempty"`
}

// RouteView is what the rendering layer reads after every transition.
type RouteView struct {
	SessionID        string          `json:"session_id"`
	Version          uint64          `json:"version"`
	State            SessionState    `json:"state"`
	RouteSet         *RouteSetView   `json:"route_set,omitempty"`
	Places           []ResolvedPlace `json:"places,omitempty"`
	DroppedWaypoints []PlaceQuery    `json:"dropped_waypoints,omitempty"`
	ErrorKind        ErrorKind       `json:"error_kind,omitempty"`
	ErrorMessage     string          `json:"error_message,omitempty"`
}
