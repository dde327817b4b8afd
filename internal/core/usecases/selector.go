package usecases

import "github.com/samirrijal/routefinder/internal/core/domain"

// SelectBest returns the index of the candidate with the fewest points.
// Ties go to the lowest SourceFeatureIndex.
func SelectBest(candidates []domain.CandidateRoute) (int, error) {
	if len(candidates) == 0 {
		return -1, domain.ErrNoRoute
	}
	best := 0
	for i := 1; i < len(candidates); i++ {
		c, b := candidates[i], candidates[best]
		if c.Len() < b.Len() || (c.Len() == b.Len() && c.SourceFeatureIndex() < b.SourceFeatureIndex()) {
			best = i
		}
	}
	return best, nil
}

// Select builds the RouteSet for a routing response. Route-level distance and
// time are surfaced as-is and do not take part in the choice.
func Select(candidates []domain.CandidateRoute, props *domain.RouteProperties) (domain.RouteSet, error) {
	best, err := SelectBest(candidates)
	if err != nil {
		return domain.RouteSet{}, err
	}
	return domain.NewRouteSet(candidates, best, props)
}

// Reselect changes the selected candidate. On error rs is returned unchanged.
func Reselect(rs domain.RouteSet, index int) (domain.RouteSet, error) {
	return rs.WithSelected(index)
}
