// README: Latest position sample per provider.
package tracking

import (
	"context"
	"errors"
	"time"

	"mechanico/internal/types"
)

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrNoSample        = errors.New("no position sample")
)

type Sample struct {
	ProviderID types.ID    `json:"providerId"`
	Position   types.Point `json:"position"`
	At         time.Time   `json:"at"`
	// Cell is the geohash of Position.
	Cell string `json:"cell"`
}

// SampleStore keeps only the newest sample per provider. Put is atomic: it
// applies s only when s.At is strictly after the stored sample.
type SampleStore interface {
	Put(ctx context.Context, s Sample) (bool, error)
	Latest(ctx context.Context, providerID types.ID) (*Sample, error)
}
