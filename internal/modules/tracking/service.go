// README: Tracker ingests provider positions, fans them out and estimates arrival.
package tracking

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"

	"mechanico/internal/config"
	"mechanico/internal/geo"
	"mechanico/internal/modules/booking"
	"mechanico/internal/modules/provider"
	"mechanico/internal/notify"
	"mechanico/internal/observability"
	"mechanico/internal/types"
)

type Profiles interface {
	Get(ctx context.Context, id types.ID) (*provider.Profile, error)
	UpdatePosition(ctx context.Context, id types.ID, p types.Point, at time.Time) (bool, error)
}

// maxClockSkew bounds how far ahead of the server clock a reported timestamp
// may be. Later timestamps are replaced by the receive time.
const maxClockSkew = 30 * time.Second

type Bookings interface {
	Lookup(ctx context.Context, id types.ID) (*booking.Booking, error)
	ActiveByProvider(ctx context.Context, providerID types.ID) ([]booking.Booking, error)
}

type Publisher interface {
	Publish(ctx context.Context, e notify.Event) error
}

type Tracker struct {
	samples  SampleStore
	profiles Profiles
	bookings Bookings
	events   Publisher
	cfg      config.TrackingConfig
	log      logrus.FieldLogger
	now      func() time.Time
}

func NewTracker(samples SampleStore, profiles Profiles, bookings Bookings, events Publisher, cfg config.TrackingConfig, log logrus.FieldLogger) *Tracker {
	if cfg.MinutesPerKm <= 0 {
		cfg.MinutesPerKm = 2.0
	}
	return &Tracker{
		samples:  samples,
		profiles: profiles,
		bookings: bookings,
		events:   events,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type ReportCommand struct {
	ProviderID types.ID
	Position   types.Point
	// At defaults to the receive time when zero or too far in the future.
	At time.Time
}

// ReportPosition records a sample if it is newer than the stored one. Stale
// samples are dropped without error. Subscribers are notified only when the
// profile position moved as well.
func (t *Tracker) ReportPosition(ctx context.Context, cmd ReportCommand) error {
	if cmd.ProviderID == "" {
		return fmt.Errorf("%w: provider id is required", ErrInvalidPosition)
	}
	if !geo.Valid(cmd.Position) {
		return fmt.Errorf("%w: %v out of range", ErrInvalidPosition, cmd.Position)
	}
	if _, err := t.profiles.Get(ctx, cmd.ProviderID); err != nil {
		return err
	}
	now := t.now()
	at := cmd.At
	if at.IsZero() {
		at = now
	}
	if at.After(now.Add(maxClockSkew)) {
		t.log.WithFields(logrus.Fields{
			"provider_id": cmd.ProviderID,
			"reported_at": cmd.At,
		}).Debug("future position timestamp replaced by receive time")
		at = now
	}

	applied, err := t.samples.Put(ctx, Sample{
		ProviderID: cmd.ProviderID,
		Position:   cmd.Position,
		At:         at,
		Cell:       geo.Cell(cmd.Position, 0),
	})
	if err != nil {
		return err
	}
	if applied {
		// An expired sample key accepts anything, so the profile write has
		// the final say on ordering.
		applied, err = t.profiles.UpdatePosition(ctx, cmd.ProviderID, cmd.Position, at)
		if err != nil {
			return err
		}
	}
	if !applied {
		observability.PositionsStale.Inc()
		t.log.WithField("provider_id", cmd.ProviderID).Debug("stale position dropped")
		return nil
	}
	observability.PositionsApplied.Inc()
	t.fanOut(ctx, cmd.ProviderID, cmd.Position, at)
	return nil
}

func (t *Tracker) fanOut(ctx context.Context, providerID types.ID, p types.Point, at time.Time) {
	if t.events == nil {
		return
	}
	out := []notify.Event{notify.ProviderLocationUpdate(notify.ProviderTopic(providerID), providerID, p, at)}

	active, err := t.bookings.ActiveByProvider(ctx, providerID)
	if err != nil {
		t.log.WithError(err).WithField("provider_id", providerID).Warn("load active bookings")
	}
	for _, b := range active {
		e := notify.ProviderLocationUpdate(notify.BookingTopic(b.ID), providerID, p, at)
		e.BookingID = b.ID
		out = append(out, e)
	}
	for _, e := range out {
		if err := t.events.Publish(ctx, e); err != nil {
			t.log.WithError(err).WithField("topic", e.Topic).Warn("publish position")
		}
	}
}

// Latest returns ErrNoSample when the provider never reported.
func (t *Tracker) Latest(ctx context.Context, providerID types.ID) (*Sample, error) {
	return t.samples.Latest(ctx, providerID)
}

// EstimatedArrivalMinutes is a straight-line estimate for CONFIRMED bookings.
// It returns nil when the booking is in any other status or the provider
// position is unknown.
func (t *Tracker) EstimatedArrivalMinutes(ctx context.Context, bookingID types.ID) (*int, error) {
	b, err := t.bookings.Lookup(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.Status != booking.StatusConfirmed {
		return nil, nil
	}

	pos, err := t.lastKnown(ctx, b.ProviderID)
	if err != nil || pos == nil {
		return nil, err
	}
	minutes := int(math.Round(geo.DistanceKm(*pos, b.Position) * t.cfg.MinutesPerKm))
	return &minutes, nil
}

// lastKnown prefers the live sample and falls back to the stored profile.
func (t *Tracker) lastKnown(ctx context.Context, providerID types.ID) (*types.Point, error) {
	s, err := t.samples.Latest(ctx, providerID)
	if err == nil {
		p := s.Position
		return &p, nil
	}
	if !errors.Is(err, ErrNoSample) {
		return nil, err
	}
	prof, err := t.profiles.Get(ctx, providerID)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return prof.Position, nil
}
