// README: Booking service implements creation, role-checked transitions and queries.
package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"mechanico/internal/geo"
	"mechanico/internal/modules/catalog"
	"mechanico/internal/notify"
	"mechanico/internal/observability"
	"mechanico/internal/types"
)

var (
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrNotFound          = errors.New("booking not found")
	ErrConflict          = errors.New("booking state conflict")
	ErrBadRequest        = errors.New("bad request")
	ErrInvalidReference  = errors.New("invalid reference")
	// ErrVehicleNotOwned is also an ErrInvalidReference.
	ErrVehicleNotOwned = fmt.Errorf("vehicle not found: %w", ErrInvalidReference)
)

// Repository is implemented by the Postgres Store and the MemoryStore.
type Repository interface {
	Create(ctx context.Context, b *Booking) error
	Get(ctx context.Context, id types.ID) (*Booking, error)
	// UpdateStatus commits only if the stored status and version still match.
	UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, at time.Time, by Role) (bool, error)
	AppendEvent(ctx context.Context, e *Event) error
	List(ctx context.Context, q ListQuery) ([]Booking, int, error)
	ActiveByProvider(ctx context.Context, providerID types.ID) ([]Booking, error)
	HasInProgress(ctx context.Context, customerID, providerID types.ID) (bool, error)
}

type Catalog interface {
	GetOffering(ctx context.Context, id types.ID) (*catalog.Offering, error)
	ProviderOffers(ctx context.Context, providerID, offeringID types.ID) (bool, error)
	VehicleOwnedBy(ctx context.Context, vehicleID, customerID types.ID) error
}

type Publisher interface {
	Publish(ctx context.Context, e notify.Event) error
}

type Service struct {
	store   Repository
	catalog Catalog
	events  Publisher
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewService(store Repository, cat Catalog, events Publisher, log logrus.FieldLogger) *Service {
	return &Service{store: store, catalog: cat, events: events, log: log, now: time.Now}
}

type CreateCommand struct {
	CustomerID types.ID
	// ProviderID may be empty when the offering has a single owner.
	ProviderID types.ID
	OfferingID types.ID
	VehicleID  types.ID
	Position   types.Point
	Address    string
	Notes      string
}

type TransitionCommand struct {
	BookingID types.ID
	Actor     Actor
	Target    Status
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*Booking, error) {
	if cmd.CustomerID == "" || cmd.OfferingID == "" || cmd.VehicleID == "" {
		return nil, ErrBadRequest
	}
	if !geo.Valid(cmd.Position) {
		return nil, fmt.Errorf("%w: position out of range", ErrBadRequest)
	}

	o, err := s.catalog.GetOffering(ctx, cmd.OfferingID)
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, fmt.Errorf("%w: offering %s", ErrInvalidReference, cmd.OfferingID)
	}
	if err != nil {
		return nil, err
	}
	if !o.Active {
		return nil, fmt.Errorf("%w: offering %s is not active", ErrInvalidReference, cmd.OfferingID)
	}

	providerID := cmd.ProviderID
	if providerID == "" {
		providerID = o.ProviderID
	}
	if providerID == "" {
		return nil, fmt.Errorf("%w: provider is required", ErrBadRequest)
	}
	offers, err := s.catalog.ProviderOffers(ctx, providerID, o.ID)
	if err != nil {
		return nil, err
	}
	if !offers {
		return nil, fmt.Errorf("%w: provider %s does not offer %s", ErrInvalidReference, providerID, o.ID)
	}

	if err := s.catalog.VehicleOwnedBy(ctx, cmd.VehicleID, cmd.CustomerID); err != nil {
		if errors.Is(err, catalog.ErrVehicleNotFound) {
			return nil, ErrVehicleNotOwned
		}
		return nil, err
	}

	now := s.now()
	b := &Booking{
		ID:            types.ID(uuid.NewString()),
		Status:        StatusPending,
		StatusVersion: 0,
		CustomerID:    cmd.CustomerID,
		ProviderID:    providerID,
		OfferingID:    o.ID,
		VehicleID:     cmd.VehicleID,
		Position:      cmd.Position,
		Address:       strings.TrimSpace(cmd.Address),
		Price:         o.BasePrice,
		DurationMin:   o.DurationMin,
		Notes:         strings.TrimSpace(cmd.Notes),
		CreatedAt:     now,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return nil, err
	}
	s.appendEvent(ctx, &Event{
		BookingID:  b.ID,
		FromStatus: StatusNone,
		ToStatus:   StatusPending,
		ActorRole:  RoleCustomer,
		ActorID:    cmd.CustomerID,
		CreatedAt:  now,
	})
	observability.BookingsCreated.Inc()
	s.publishStatus(ctx, b, now)
	return b, nil
}

// Transition moves a booking along one edge of the status graph. When another
// writer commits first, the current booking is returned with ErrConflict.
func (s *Service) Transition(ctx context.Context, cmd TransitionCommand) (*Booking, error) {
	if !cmd.Target.Valid() {
		return nil, fmt.Errorf("%w: unknown target %q", ErrInvalidTransition, cmd.Target)
	}
	b, err := s.store.Get(ctx, cmd.BookingID)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(cmd.Actor) {
		return nil, fmt.Errorf("%w: caller is not a party to this booking", ErrInvalidTransition)
	}
	if b.Status.Terminal() || !CanTransition(b.Status, cmd.Target) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, cmd.Target)
	}
	if !RoleAllowed(b.Status, cmd.Target, cmd.Actor.Role) {
		return nil, fmt.Errorf("%w: %s may not move %s -> %s", ErrInvalidTransition, cmd.Actor.Role, b.Status, cmd.Target)
	}
	if cmd.Target == StatusInProgress {
		busy, err := s.store.HasInProgress(ctx, b.CustomerID, b.ProviderID)
		if err != nil {
			return nil, err
		}
		if busy {
			observability.BookingConflicts.Inc()
			return b, fmt.Errorf("%w: another booking is already in progress", ErrConflict)
		}
	}

	from := b.Status
	now := s.now()
	ok, err := s.store.UpdateStatus(ctx, b.ID, from, cmd.Target, b.StatusVersion, now, cmd.Actor.Role)
	if errors.Is(err, ErrConflict) {
		ok, err = false, nil
	}
	if err != nil {
		return nil, err
	}
	if !ok {
		observability.BookingConflicts.Inc()
		cur, gerr := s.store.Get(ctx, b.ID)
		if gerr != nil {
			return nil, ErrConflict
		}
		return cur, ErrConflict
	}

	b.apply(cmd.Target, now, cmd.Actor.Role)
	s.appendEvent(ctx, &Event{
		BookingID:  b.ID,
		FromStatus: from,
		ToStatus:   cmd.Target,
		ActorRole:  cmd.Actor.Role,
		ActorID:    cmd.Actor.ID,
		CreatedAt:  now,
	})
	observability.BookingTransitions.WithLabelValues(string(cmd.Target)).Inc()
	s.log.WithFields(logrus.Fields{
		"booking_id": b.ID,
		"from":       from,
		"to":         cmd.Target,
		"actor_role": cmd.Actor.Role,
	}).Info("booking transition")
	s.publishStatus(ctx, b, now)
	return b, nil
}

// Get returns ErrNotFound unless the caller is a party to the booking.
func (s *Service) Get(ctx context.Context, id types.ID, actor Actor) (*Booking, error) {
	b, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !b.IsParty(actor) {
		return nil, ErrNotFound
	}
	return b, nil
}

func (s *Service) List(ctx context.Context, q ListQuery) (Page, error) {
	if q.Actor.ID == "" || (q.Actor.Role != RoleCustomer && q.Actor.Role != RoleProvider) {
		return Page{}, ErrBadRequest
	}
	if q.Status != "" && !q.Status.Valid() {
		return Page{}, fmt.Errorf("%w: unknown status %q", ErrBadRequest, q.Status)
	}
	if q.Limit <= 0 {
		q.Limit = defaultPageSize
	}
	if q.Limit > maxPageSize {
		q.Limit = maxPageSize
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	items, total, err := s.store.List(ctx, q)
	if err != nil {
		return Page{}, err
	}
	if items == nil {
		items = []Booking{}
	}
	return Page{
		Bookings: items,
		Total:    total,
		Limit:    q.Limit,
		Offset:   q.Offset,
		HasMore:  q.Offset+q.Limit < total,
	}, nil
}

// Lookup reads a booking without a party check, for internal collaborators.
func (s *Service) Lookup(ctx context.Context, id types.ID) (*Booking, error) {
	return s.store.Get(ctx, id)
}

// ActiveByProvider returns the provider's CONFIRMED and IN_PROGRESS bookings.
func (s *Service) ActiveByProvider(ctx context.Context, providerID types.ID) ([]Booking, error) {
	return s.store.ActiveByProvider(ctx, providerID)
}

func (s *Service) appendEvent(ctx context.Context, e *Event) {
	if err := s.store.AppendEvent(ctx, e); err != nil {
		s.log.WithError(err).WithField("booking_id", e.BookingID).Warn("append booking event")
	}
}

func (s *Service) publishStatus(ctx context.Context, b *Booking, at time.Time) {
	if s.events == nil {
		return
	}
	topics := []string{notify.BookingTopic(b.ID), notify.ProviderTopic(b.ProviderID)}
	for _, topic := range topics {
		e := notify.BookingStatusUpdate(topic, b.ID, b.ProviderID, string(b.Status), at)
		if err := s.events.Publish(ctx, e); err != nil {
			s.log.WithError(err).WithField("topic", topic).Warn("publish booking status")
		}
	}
}
