// README: Ranked nearby candidates for a service request.
package matching

import (
	"errors"

	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/provider"
	"mechanico/internal/types"
)

var ErrInvalidQuery = errors.New("invalid nearby query")

type NearbyQuery struct {
	OfferingID types.ID
	Origin     types.Point
	RadiusKm   float64
}

// RankedCandidate is transient ranking output; it is never persisted.
type RankedCandidate struct {
	Provider      provider.Profile `json:"provider"`
	Offering      catalog.Offering `json:"service"`
	DistanceKm    float64          `json:"distance"`
	AverageRating float64          `json:"averageRating"`
	RatingCount   int              `json:"totalRatings"`
}
