package tracking

import (
	"context"
	"sync"

	"mechanico/internal/types"
)

type MemoryStore struct {
	mu      sync.Mutex
	samples map[types.ID]Sample
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{samples: make(map[types.ID]Sample)}
}

func (m *MemoryStore) Put(_ context.Context, s Sample) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cur, ok := m.samples[s.ProviderID]; ok && !s.At.After(cur.At) {
		return false, nil
	}
	m.samples[s.ProviderID] = s
	return true, nil
}

func (m *MemoryStore) Latest(_ context.Context, providerID types.ID) (*Sample, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.samples[providerID]
	if !ok {
		return nil, ErrNoSample
	}
	return &s, nil
}
