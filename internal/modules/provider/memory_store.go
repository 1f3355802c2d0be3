// README: In-memory provider store used by the memory driver and tests.
package provider

import (
	"context"
	"errors"
	"sync"
	"time"

	"mechanico/internal/modules/catalog"
	"mechanico/internal/types"
)

type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[types.ID]Profile
	ratings  map[types.ID][]int
	catalog  catalog.Repository
}

// NewMemoryStore resolves offering links through cat.
func NewMemoryStore(cat catalog.Repository) *MemoryStore {
	return &MemoryStore{
		profiles: make(map[types.ID]Profile),
		ratings:  make(map[types.ID][]int),
		catalog:  cat,
	}
}

func (m *MemoryStore) Put(p Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.ID] = p
}

func (m *MemoryStore) AddRating(providerID types.ID, score int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ratings[providerID] = append(m.ratings[providerID], score)
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.profiles[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *MemoryStore) Candidates(ctx context.Context, offeringID types.ID) ([]Candidate, error) {
	o, err := m.catalog.GetOffering(ctx, offeringID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !o.Active {
		return nil, nil
	}

	m.mu.RLock()
	profiles := make([]Profile, 0, len(m.profiles))
	for _, p := range m.profiles {
		if p.Available && p.Position != nil {
			profiles = append(profiles, p)
		}
	}
	ratings := make(map[types.ID][]int, len(profiles))
	for _, p := range profiles {
		ratings[p.ID] = append([]int(nil), m.ratings[p.ID]...)
	}
	m.mu.RUnlock()

	var out []Candidate
	for _, p := range profiles {
		ok, err := m.catalog.ProviderOffers(ctx, p.ID, offeringID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, Candidate{Profile: p, Offering: *o, Ratings: ratings[p.ID]})
	}
	return out, nil
}

func (m *MemoryStore) UpdatePosition(_ context.Context, id types.ID, pt types.Point, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return false, ErrNotFound
	}
	if p.PositionAt != nil && !at.After(*p.PositionAt) {
		return false, nil
	}
	pos := pt
	p.Position = &pos
	p.PositionAt = &at
	m.profiles[id] = p
	return true, nil
}

func (m *MemoryStore) SetAvailability(_ context.Context, id types.ID, available bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	p.Available = available
	m.profiles[id] = p
	return nil
}
