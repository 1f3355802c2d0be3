package matching

import (
	"sort"

	"mechanico/internal/geo"
	"mechanico/internal/modules/provider"
	"mechanico/internal/types"
)

// Rank measures each candidate from origin, drops those beyond radiusKm and
// orders the rest by distance, then rating (descending), then provider ID.
// Candidates without a position are skipped.
func Rank(origin types.Point, radiusKm float64, candidates []provider.Candidate) []RankedCandidate {
	out := make([]RankedCandidate, 0, len(candidates))
	if radiusKm <= 0 {
		return out
	}
	for _, c := range candidates {
		if c.Profile.Position == nil {
			continue
		}
		d := geo.DistanceKm(origin, *c.Profile.Position)
		if d > radiusKm {
			continue
		}
		out = append(out, RankedCandidate{
			Provider:      c.Profile,
			Offering:      c.Offering,
			DistanceKm:    d,
			AverageRating: provider.MeanRating(c.Ratings),
			RatingCount:   len(c.Ratings),
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.DistanceKm != b.DistanceKm {
			return a.DistanceKm < b.DistanceKm
		}
		if a.AverageRating != b.AverageRating {
			return a.AverageRating > b.AverageRating
		}
		return a.Provider.ID < b.Provider.ID
	})
	return out
}
