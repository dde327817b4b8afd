// Package geospatial measures and frames polylines on the WGS 84 sphere.
package geospatial

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/routefinder/internal/core/domain"
)

// Haversine calculates the great-circle distance in meters between two points.
func Haversine(a, b domain.GeoPoint) float64 {
	return geo.DistanceHaversine(toOrb(a), toOrb(b))
}

// PolylineLength returns the haversine length of the polyline in meters.
func PolylineLength(points []domain.GeoPoint) float64 {
	if len(points) < 2 {
		return 0
	}
	return geo.LengthHaversine(toLineString(points))
}

// BoundsOf returns the bounding box of all given polylines, or nil if they are all empty.
func BoundsOf(lines ...[]domain.GeoPoint) *domain.Bounds {
	var mp orb.MultiPoint
	for _, line := range lines {
		for _, p := range line {
			mp = append(mp, toOrb(p))
		}
	}
	if len(mp) == 0 {
		return nil
	}
	b := mp.Bound()
	return &domain.Bounds{
		MinLat: b.Min.Lat(),
		MinLon: b.Min.Lon(),
		MaxLat: b.Max.Lat(),
		MaxLon: b.Max.Lon(),
	}
}

// orb stores points as [lon, lat].
func toOrb(p domain.GeoPoint) orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

func toLineString(points []domain.GeoPoint) orb.LineString {
	ls := make(orb.LineString, len(points))
	for i, p := range points {
		ls[i] = toOrb(p)
	}
	return ls
}
