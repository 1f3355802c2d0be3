// README: Provider profile and the candidate read model used for ranking.
package provider

import (
	"errors"
	"time"

	"mechanico/internal/modules/catalog"
	"mechanico/internal/types"
)

var ErrNotFound = errors.New("provider not found")

type Profile struct {
	ID              types.ID     `json:"id"`
	DisplayName     string       `json:"name"`
	BusinessName    string       `json:"businessName,omitempty"`
	Avatar          string       `json:"avatar,omitempty"`
	Specializations []string     `json:"specializations,omitempty"`
	TrustScore      int          `json:"trustScore"`
	Available       bool         `json:"isAvailable"`
	Position        *types.Point `json:"position,omitempty"`
	PositionAt      *time.Time   `json:"positionAt,omitempty"`
}

// Candidate is one provider joined with the offering being searched and the
// raw rating scores. It is assembled by the store in a single read.
type Candidate struct {
	Profile  Profile
	Offering catalog.Offering
	Ratings  []int
}

// MeanRating is 0 for an empty list.
func MeanRating(scores []int) float64 {
	if len(scores) == 0 {
		return 0
	}
	var sum int
	for _, s := range scores {
		sum += s
	}
	return float64(sum) / float64(len(scores))
}
