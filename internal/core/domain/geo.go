package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// GeoPoint represents a geographic coordinate (WGS 84).
// Values built through NewGeoPoint or ParseGeoPoint always satisfy Valid.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NewGeoPoint validates lat/lon and returns the point.
func NewGeoPoint(lat, lon float64) (GeoPoint, error) {
	p := GeoPoint{Lat: lat, Lon: lon}
	if !p.Valid() {
		return GeoPoint{}, fmt.Errorf("%w: lat=%v lon=%v", ErrCoordinateOutOfRange, lat, lon)
	}
	return p, nil
}

// ParseGeoPoint parses the string coordinates a geocoder hands back.
// Both values must be finite numbers inside the WGS 84 range.
func ParseGeoPoint(rawLat, rawLon string) (GeoPoint, error) {
	rawLat, rawLon = strings.TrimSpace(rawLat), strings.TrimSpace(rawLon)
	if rawLat == "" || rawLon == "" {
		return GeoPoint{}, fmt.Errorf("%w: missing lat/lon", ErrMalformedCoordinate)
	}
	lat, err := strconv.ParseFloat(rawLat, 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: lat %q", ErrMalformedCoordinate, rawLat)
	}
	lon, err := strconv.ParseFloat(rawLon, 64)
	if err != nil {
		return GeoPoint{}, fmt.Errorf("%w: lon %q", ErrMalformedCoordinate, rawLon)
	}
	return NewGeoPoint(lat, lon)
}

// Valid reports whether the point is finite and inside [-90,90] x [-180,180].
func (p GeoPoint) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// String formats the point as "lat,lon".
func (p GeoPoint) String() string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lon, 'f', -1, 64)
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}
