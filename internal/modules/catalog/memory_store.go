// README: In-memory catalog store used by the memory driver and tests.
package catalog

import (
	"context"
	"sort"
	"sync"

	"mechanico/internal/types"
)

type MemoryStore struct {
	mu        sync.RWMutex
	offerings map[types.ID]Offering
	links     map[types.ID]map[types.ID]struct{} // provider -> offerings
	vehicles  map[types.ID]types.ID              // vehicle -> owner
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		offerings: make(map[types.ID]Offering),
		links:     make(map[types.ID]map[types.ID]struct{}),
		vehicles:  make(map[types.ID]types.ID),
	}
}

func (m *MemoryStore) PutOffering(o Offering) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if o.BasePrice.Currency == "" {
		o.BasePrice.Currency = types.DefaultCurrency
	}
	m.offerings[o.ID] = o
	if o.ProviderID != "" {
		m.linkLocked(o.ProviderID, o.ID)
	}
}

// Link records that providerID offers offeringID.
func (m *MemoryStore) Link(providerID, offeringID types.ID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.linkLocked(providerID, offeringID)
}

func (m *MemoryStore) linkLocked(providerID, offeringID types.ID) {
	set, ok := m.links[providerID]
	if !ok {
		set = make(map[types.ID]struct{})
		m.links[providerID] = set
	}
	set[offeringID] = struct{}{}
}

func (m *MemoryStore) PutVehicle(v Vehicle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[v.ID] = v.OwnerID
}

func (m *MemoryStore) GetOffering(_ context.Context, id types.ID) (*Offering, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	o, ok := m.offerings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *MemoryStore) ListOfferings(_ context.Context, f Filter) ([]Offering, error) {
	m.mu.RLock()
	out := make([]Offering, 0, len(m.offerings))
	for _, o := range m.offerings {
		if f.match(o) {
			out = append(out, o)
		}
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return out[i].Category < out[j].Category
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (m *MemoryStore) ProviderOffers(_ context.Context, providerID, offeringID types.ID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.links[providerID][offeringID]
	return ok, nil
}

// ProvidersFor returns the providers linked to offeringID.
func (m *MemoryStore) ProvidersFor(offeringID types.ID) []types.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []types.ID
	for pid, set := range m.links {
		if _, ok := set[offeringID]; ok {
			out = append(out, pid)
		}
	}
	return out
}

func (m *MemoryStore) VehicleOwner(_ context.Context, vehicleID types.ID) (types.ID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owner, ok := m.vehicles[vehicleID]
	if !ok {
		return "", ErrVehicleNotFound
	}
	return owner, nil
}
