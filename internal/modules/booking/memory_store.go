// README: In-memory booking store used by the memory driver and tests.
package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"mechanico/internal/types"
)

type MemoryStore struct {
	mu       sync.Mutex
	bookings map[types.ID]Booking
	events   []Event
	nextID   int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{bookings: make(map[types.ID]Booking)}
}

func (m *MemoryStore) Create(_ context.Context, b *Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[b.ID] = *b
	return nil
}

func (m *MemoryStore) Get(_ context.Context, id types.ID) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *MemoryStore) UpdateStatus(_ context.Context, id types.ID, from, to Status, version int, at time.Time, by Role) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.bookings[id]
	if !ok || b.Status != from || b.StatusVersion != version {
		return false, nil
	}
	if to == StatusInProgress && m.inProgressLocked(b.CustomerID, b.ProviderID) {
		return false, ErrConflict
	}
	b.apply(to, at, by)
	m.bookings[id] = b
	return true, nil
}

func (m *MemoryStore) AppendEvent(_ context.Context, e *Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	e.ID = m.nextID
	m.events = append(m.events, *e)
	return nil
}

// Events returns the history recorded for one booking, oldest first.
func (m *MemoryStore) Events(id types.ID) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, e := range m.events {
		if e.BookingID == id {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryStore) List(_ context.Context, q ListQuery) ([]Booking, int, error) {
	m.mu.Lock()
	var all []Booking
	for _, b := range m.bookings {
		if !b.IsParty(q.Actor) {
			continue
		}
		if q.Status != "" && b.Status != q.Status {
			continue
		}
		all = append(all, b)
	}
	m.mu.Unlock()

	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID < all[j].ID
	})
	total := len(all)
	if q.Offset >= total {
		return nil, total, nil
	}
	end := q.Offset + q.Limit
	if end > total {
		end = total
	}
	return all[q.Offset:end], total, nil
}

func (m *MemoryStore) ActiveByProvider(_ context.Context, providerID types.ID) ([]Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Booking
	for _, b := range m.bookings {
		if b.ProviderID == providerID && (b.Status == StatusConfirmed || b.Status == StatusInProgress) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) HasInProgress(_ context.Context, customerID, providerID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inProgressLocked(customerID, providerID), nil
}

func (m *MemoryStore) inProgressLocked(customerID, providerID types.ID) bool {
	for _, b := range m.bookings {
		if b.Status == StatusInProgress && b.CustomerID == customerID && b.ProviderID == providerID {
			return true
		}
	}
	return false
}
