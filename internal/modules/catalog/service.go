// README: Catalog service exposes offerings and vehicle ownership to other modules.
package catalog

import (
	"context"

	"mechanico/internal/types"
)

// Repository is implemented by the Postgres Store and the MemoryStore.
type Repository interface {
	GetOffering(ctx context.Context, id types.ID) (*Offering, error)
	ListOfferings(ctx context.Context, f Filter) ([]Offering, error)
	ProviderOffers(ctx context.Context, providerID, offeringID types.ID) (bool, error)
	VehicleOwner(ctx context.Context, vehicleID types.ID) (types.ID, error)
}

type Service struct {
	store Repository
}

func NewService(store Repository) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, f Filter) ([]Offering, error) {
	return s.store.ListOfferings(ctx, f)
}

func (s *Service) GetOffering(ctx context.Context, id types.ID) (*Offering, error) {
	return s.store.GetOffering(ctx, id)
}

func (s *Service) ProviderOffers(ctx context.Context, providerID, offeringID types.ID) (bool, error) {
	return s.store.ProviderOffers(ctx, providerID, offeringID)
}

// VehicleOwnedBy returns ErrVehicleNotFound unless the vehicle exists and
// belongs to customerID.
func (s *Service) VehicleOwnedBy(ctx context.Context, vehicleID, customerID types.ID) error {
	owner, err := s.store.VehicleOwner(ctx, vehicleID)
	if err != nil {
		return err
	}
	if owner != customerID {
		return ErrVehicleNotFound
	}
	return nil
}
