package tracking

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mechanico/internal/config"
	"mechanico/internal/modules/booking"
	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/provider"
	"mechanico/internal/notify"
	"mechanico/internal/types"
)

var (
	t0        = time.Date(2026, 4, 1, 8, 0, 0, 0, time.UTC)
	workshop  = types.Point{Lat: 35.6892, Lng: 51.3890}
	breakdown = types.Point{Lat: 35.6900, Lng: 51.3400}
)

type fixture struct {
	tracker  *Tracker
	bookings *booking.Service
	profiles *provider.Service
	events   *recorder
}

func newFixture(t *testing.T, samples SampleStore) *fixture {
	t.Helper()
	log, _ := test.NewNullLogger()

	cat := catalog.NewMemoryStore()
	cat.PutOffering(catalog.Offering{ID: "O1", Name: "Jump start", BasePrice: types.NewMoney(850000), DurationMin: 30, Active: true})
	cat.Link("P1", "O1")
	cat.PutVehicle(catalog.Vehicle{ID: "V1", OwnerID: "C1"})

	profStore := provider.NewMemoryStore(cat)
	profStore.Put(provider.Profile{ID: "P1", DisplayName: "Ali", Available: true})
	profiles := provider.NewService(profStore)

	events := &recorder{}
	bookings := booking.NewService(booking.NewMemoryStore(), catalog.NewService(cat), events, log)
	tr := NewTracker(samples, profiles, bookings, events, config.TrackingConfig{MinutesPerKm: 2.0}, log)
	return &fixture{tracker: tr, bookings: bookings, profiles: profiles, events: events}
}

func (f *fixture) booking(t *testing.T) *booking.Booking {
	t.Helper()
	b, err := f.bookings.Create(context.Background(), booking.CreateCommand{
		CustomerID: "C1", ProviderID: "P1", OfferingID: "O1", VehicleID: "V1", Position: breakdown,
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) move(t *testing.T, id types.ID, to booking.Status) {
	t.Helper()
	_, err := f.bookings.Transition(context.Background(), booking.TransitionCommand{
		BookingID: id, Actor: booking.Actor{ID: "P1", Role: booking.RoleProvider}, Target: to,
	})
	require.NoError(t, err)
}

func TestReportPosition_AppliesAndWritesThrough(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: workshop, At: t0}))

	s, err := f.tracker.Latest(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, workshop, s.Position)
	assert.Equal(t, "tnke13", s.Cell)

	p, err := f.profiles.Get(ctx, "P1")
	require.NoError(t, err)
	require.NotNil(t, p.Position)
	assert.Equal(t, workshop, *p.Position)
	assert.True(t, f.events.has(notify.ProviderTopic("P1")))
}

func TestReportPosition_StaleSampleIsIgnored(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	older := types.Point{Lat: 35.70, Lng: 51.40}

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: workshop, At: t0}))
	f.events.reset()
	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: older, At: t0.Add(-time.Minute)}))
	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: older, At: t0}))

	s, _ := f.tracker.Latest(ctx, "P1")
	assert.Equal(t, workshop, s.Position)
	p, _ := f.profiles.Get(ctx, "P1")
	assert.Equal(t, workshop, *p.Position)
	assert.Empty(t, f.events.all(), "stale samples must not be published")
}

func TestReportPosition_Validation(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()

	err := f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: types.Point{Lat: -91, Lng: 0}, At: t0})
	assert.ErrorIs(t, err, ErrInvalidPosition)
	err = f.tracker.ReportPosition(ctx, ReportCommand{Position: workshop, At: t0})
	assert.ErrorIs(t, err, ErrInvalidPosition)
	err = f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "ghost", Position: workshop, At: t0})
	assert.ErrorIs(t, err, provider.ErrNotFound)
}

func TestReportPosition_PublishesToActiveBookings(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	pending := f.booking(t)
	confirmed := f.booking(t)
	f.move(t, confirmed.ID, booking.StatusConfirmed)
	f.events.reset()

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: workshop, At: t0}))

	assert.True(t, f.events.has(notify.BookingTopic(confirmed.ID)))
	assert.False(t, f.events.has(notify.BookingTopic(pending.ID)))
	for _, e := range f.events.all() {
		assert.Equal(t, notify.TypeProviderLocation, e.Type)
		if e.Topic == notify.BookingTopic(confirmed.ID) {
			assert.Equal(t, confirmed.ID, e.BookingID)
		}
	}
}

func TestEstimatedArrivalMinutes(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	b := f.booking(t)

	eta, err := f.tracker.EstimatedArrivalMinutes(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, eta, "pending booking has no eta")

	f.move(t, b.ID, booking.StatusConfirmed)
	eta, err = f.tracker.EstimatedArrivalMinutes(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, eta, "unknown provider position has no eta")

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: workshop, At: t0}))
	eta, err = f.tracker.EstimatedArrivalMinutes(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, eta)
	// 4.43 km at 2 min/km
	assert.Equal(t, 9, *eta)

	f.move(t, b.ID, booking.StatusInProgress)
	eta, err = f.tracker.EstimatedArrivalMinutes(ctx, b.ID)
	require.NoError(t, err)
	assert.Nil(t, eta)

	_, err = f.tracker.EstimatedArrivalMinutes(ctx, "missing")
	assert.ErrorIs(t, err, booking.ErrNotFound)
}

func TestEstimatedArrivalMinutes_FallsBackToProfile(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	ctx := context.Background()
	b := f.booking(t)
	f.move(t, b.ID, booking.StatusConfirmed)
	_, err := f.profiles.UpdatePosition(ctx, "P1", workshop, t0)
	require.NoError(t, err)

	eta, err := f.tracker.EstimatedArrivalMinutes(ctx, b.ID)
	require.NoError(t, err)
	require.NotNil(t, eta)
	assert.Equal(t, 9, *eta)
}

func TestMemoryStore_ConcurrentReportsKeepNewest(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Put(ctx, Sample{ProviderID: "P1", Position: types.Point{Lat: float64(i)}, At: t0.Add(time.Duration(i) * time.Second)})
		}(i)
	}
	wg.Wait()
	s, err := store.Latest(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, 49.0, s.Position.Lat)
}

func TestRedisStore_CompareOnTimestamp(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	_, err := store.Latest(ctx, "P1")
	assert.True(t, errors.Is(err, ErrNoSample))

	ok, err := store.Put(ctx, Sample{ProviderID: "P1", Position: workshop, At: t0, Cell: "tnke13"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.Put(ctx, Sample{ProviderID: "P1", Position: breakdown, At: t0})
	require.NoError(t, err)
	assert.False(t, ok, "equal timestamp is not newer")

	ok, err = store.Put(ctx, Sample{ProviderID: "P1", Position: breakdown, At: t0.Add(-time.Second)})
	require.NoError(t, err)
	assert.False(t, ok)

	s, err := store.Latest(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, workshop, s.Position)
	assert.True(t, s.At.Equal(t0))
	assert.Equal(t, "tnke13", s.Cell)
	assert.Equal(t, time.Hour, mr.TTL("tracking:provider:P1"))

	ok, err = store.Put(ctx, Sample{ProviderID: "P1", Position: breakdown, At: t0.Add(time.Second)})
	require.NoError(t, err)
	assert.True(t, ok)
	s, _ = store.Latest(ctx, "P1")
	assert.Equal(t, breakdown, s.Position)
}

func TestTracker_WithRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	f := newFixture(t, NewRedisStore(client, time.Hour))
	ctx := context.Background()

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: workshop, At: t0}))
	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: breakdown, At: t0.Add(-time.Hour)}))

	s, err := f.tracker.Latest(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, workshop, s.Position)
}

func TestTracker_ExpiredSampleDoesNotRepublishOlderPosition(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	f := newFixture(t, NewRedisStore(client, time.Hour))
	ctx := context.Background()

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: workshop, At: t0}))
	mr.FastForward(2 * time.Hour)
	f.events.reset()

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: breakdown, At: t0.Add(-time.Minute)}))
	assert.Empty(t, f.events.all(), "older sample accepted by an expired key must not be published")
	p, err := f.profiles.Get(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, workshop, *p.Position)
}

func TestReportPosition_FutureTimestampUsesReceiveTime(t *testing.T) {
	f := newFixture(t, NewMemoryStore())
	f.tracker.now = func() time.Time { return t0 }
	ctx := context.Background()

	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: breakdown, At: t0.Add(24 * time.Hour)}))
	s, err := f.tracker.Latest(ctx, "P1")
	require.NoError(t, err)
	assert.True(t, s.At.Equal(t0), "far-future timestamp replaced by receive time")

	// A small skew is trusted as reported.
	require.NoError(t, f.tracker.ReportPosition(ctx, ReportCommand{ProviderID: "P1", Position: workshop, At: t0.Add(10 * time.Second)}))
	s, err = f.tracker.Latest(ctx, "P1")
	require.NoError(t, err)
	assert.Equal(t, workshop, s.Position)
	assert.True(t, s.At.Equal(t0.Add(10*time.Second)))
}

type recorder struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recorder) Publish(_ context.Context, e notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) all() []notify.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notify.Event(nil), r.events...)
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func (r *recorder) has(topic string) bool {
	for _, e := range r.all() {
		if e.Topic == topic {
			return true
		}
	}
	return false
}
