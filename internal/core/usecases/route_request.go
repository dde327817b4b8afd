package usecases

import "github.com/samirrijal/routefinder/internal/core/domain"

// BuildRouteRequest assembles the routing parameters. Waypoints keep the
// order they were supplied in; unresolved waypoints must already be dropped.
func BuildRouteRequest(start, end domain.GeoPoint, waypoints []domain.GeoPoint) domain.RouteRequest {
	req := domain.RouteRequest{Start: start, End: end}
	if len(waypoints) > 0 {
		req.Waypoints = make([]domain.GeoPoint, len(waypoints))
		copy(req.Waypoints, waypoints)
	}
	return req
}
