// README: Provider service owns profile reads, availability and the candidate index.
package provider

import (
	"context"
	"time"

	"mechanico/internal/types"
)

// Repository is implemented by the Postgres Store and the MemoryStore.
type Repository interface {
	Get(ctx context.Context, id types.ID) (*Profile, error)
	// Candidates returns available providers with a known position that are
	// linked to offeringID through an active offering.
	Candidates(ctx context.Context, offeringID types.ID) ([]Candidate, error)
	// UpdatePosition applies only positions newer than the stored one.
	UpdatePosition(ctx context.Context, id types.ID, p types.Point, at time.Time) (bool, error)
	SetAvailability(ctx context.Context, id types.ID, available bool) error
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Profile, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) Candidates(ctx context.Context, offeringID types.ID) ([]Candidate, error) {
	return s.store.Candidates(ctx, offeringID)
}

func (s *Service) UpdatePosition(ctx context.Context, id types.ID, p types.Point, at time.Time) (bool, error) {
	return s.store.UpdatePosition(ctx, id, p, at)
}

func (s *Service) SetAvailability(ctx context.Context, id types.ID, available bool) error {
	return s.store.SetAvailability(ctx, id, available)
}
