package usecases

import (
	"encoding/json"
	"fmt"

	"github.com/samirrijal/routefinder/internal/core/domain"
	"github.com/samirrijal/routefinder/internal/pkg/geospatial"
	"github.com/samirrijal/routefinder/internal/pkg/metrics"
)

// MultiLinePolicy decides how a MultiLineString becomes one candidate.
type MultiLinePolicy int

const (
	// MultiLineFlatten concatenates every sub-line in order.
	MultiLineFlatten MultiLinePolicy = iota
	// MultiLineLongest keeps only the sub-line with the greatest haversine
	// length; the earlier sub-line wins ties.
	MultiLineLongest
)

// ParseMultiLinePolicy maps a config value to a policy.
func ParseMultiLinePolicy(s string) (MultiLinePolicy, error) {
	switch s {
	case "", "flatten":
		return MultiLineFlatten, nil
	case "longest":
		return MultiLineLongest, nil
	default:
		return MultiLineFlatten, fmt.Errorf("unknown multiline policy %q", s)
	}
}

// GeometryNormalizer turns raw route geometry into candidate routes.
type GeometryNormalizer struct {
	policy MultiLinePolicy
}

// NewGeometryNormalizer creates a new GeometryNormalizer.
func NewGeometryNormalizer(policy MultiLinePolicy) *GeometryNormalizer {
	return &GeometryNormalizer{policy: policy}
}

// Normalize converts features, in order, into candidate routes. Features that
// are unusable or yield no valid point are omitted; the rest keep their
// original position in SourceFeatureIndex. The input is never modified.
func (n *GeometryNormalizer) Normalize(features []domain.RawGeometryFeature) []domain.CandidateRoute {
	out := make([]domain.CandidateRoute, 0, len(features))

	for i, f := range features {
		if !f.HasCoordinates() {
			metrics.SkippedFeatures.WithLabelValues("missing_geometry").Inc()
			continue
		}

		var points []domain.GeoPoint
		switch f.Kind() {
		case domain.GeometryLineString:
			points = parseLine(f.Geometry.Coordinates)
		case domain.GeometryMultiLineString:
			points = n.parseMultiLine(f.Geometry.Coordinates)
		default:
			metrics.SkippedFeatures.WithLabelValues("unsupported_type").Inc()
			continue
		}

		if len(points) == 0 {
			metrics.SkippedFeatures.WithLabelValues("no_valid_points").Inc()
			continue
		}

		c, err := domain.NewCandidateRoute(points, i)
		if err != nil {
			metrics.SkippedFeatures.WithLabelValues("invalid").Inc()
			continue
		}
		out = append(out, c)
	}

	metrics.CandidatesPerResponse.Observe(float64(len(out)))
	return out
}

func (n *GeometryNormalizer) parseMultiLine(raw json.RawMessage) []domain.GeoPoint {
	var lines []json.RawMessage
	if err := json.Unmarshal(raw, &lines); err != nil {
		return nil
	}

	if n.policy == MultiLineLongest {
		var best []domain.GeoPoint
		bestLen := -1.0
		for _, l := range lines {
			pts := parseLine(l)
			if len(pts) == 0 {
				continue
			}
			if d := geospatial.PolylineLength(pts); d > bestLen {
				best, bestLen = pts, d
			}
		}
		return best
	}

	var points []domain.GeoPoint
	for _, l := range lines {
		points = append(points, parseLine(l)...)
	}
	return points
}

// parseLine decodes an array of [lon, lat] pairs, dropping every pair that is
// malformed or out of range.
func parseLine(raw json.RawMessage) []domain.GeoPoint {
	var pairs []json.RawMessage
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil
	}

	points := make([]domain.GeoPoint, 0, len(pairs))
	for _, pr := range pairs {
		p, ok := parsePair(pr)
		if !ok {
			metrics.DroppedPoints.Inc()
			continue
		}
		points = append(points, p)
	}
	return points
}

func parsePair(raw json.RawMessage) (domain.GeoPoint, bool) {
	var xs []*float64
	if err := json.Unmarshal(raw, &xs); err != nil || len(xs) < 2 || xs[0] == nil || xs[1] == nil {
		return domain.GeoPoint{}, false
	}
	// GeoJSON order is longitude first.
	p, err := domain.NewGeoPoint(*xs[1], *xs[0])
	if err != nil {
		return domain.GeoPoint{}, false
	}
	return p, true
}
