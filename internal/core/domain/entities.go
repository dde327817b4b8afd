package domain

import "strings"

// PlaceQuery is the free-text place name a user typed (start, end or waypoint).
type PlaceQuery string

// Empty reports whether the query has no non-blank characters.
func (q PlaceQuery) Empty() bool {
	return strings.TrimSpace(string(q)) == ""
}

// PlaceRole tells the session which slot a place fills.
type PlaceRole string

const (
	RoleStart    PlaceRole = "start"
	RoleEnd      PlaceRole = "end"
	RoleWaypoint PlaceRole = "waypoint"
)

// Required reports whether a failure for this role fails the whole attempt.
func (r PlaceRole) Required() bool {
	return r == RoleStart || r == RoleEnd
}

// GeocodeMatch is one candidate returned by the geocoding service.
// Coordinates stay as the raw strings the service sent.
type GeocodeMatch struct {
	Kind        string `json:"type"`
	RawLat      string `json:"lat"`
	RawLon      string `json:"lon"`
	DisplayName string `json:"display_name,omitempty"`
}

// ResolvedPlace is a query that was turned into a coordinate.
type ResolvedPlace struct {
	Query       PlaceQuery `json:"query"`
	Role        PlaceRole  `json:"role"`
	Point       GeoPoint   `json:"point"`
	DisplayName string     `json:"display_name,omitempty"`
}
