// README: Booking aggregate, status graph and the role rules on each edge.
package booking

import (
	"time"

	"mechanico/internal/types"
)

type Status string

const (
	StatusNone       Status = "NONE"
	StatusPending    Status = "PENDING"
	StatusConfirmed  Status = "CONFIRMED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusCancelled  Status = "CANCELLED"
)

func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

type Role string

const (
	RoleCustomer Role = "customer"
	RoleProvider Role = "provider"
)

// Actor is the authenticated caller, passed explicitly into every operation.
type Actor struct {
	ID   types.ID
	Role Role
}

type Booking struct {
	ID            types.ID    `json:"id"`
	Status        Status      `json:"status"`
	StatusVersion int         `json:"statusVersion"`
	CustomerID    types.ID    `json:"customerId"`
	ProviderID    types.ID    `json:"providerId"`
	OfferingID    types.ID    `json:"serviceId"`
	VehicleID     types.ID    `json:"vehicleId"`
	Position      types.Point `json:"position"`
	Address       string      `json:"address,omitempty"`
	Price         types.Money `json:"price"`
	DurationMin   int         `json:"durationMin"`
	Notes         string      `json:"notes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	ConfirmedAt   *time.Time  `json:"confirmedAt,omitempty"`
	StartedAt     *time.Time  `json:"startedAt,omitempty"`
	CompletedAt   *time.Time  `json:"completedAt,omitempty"`
	CancelledAt   *time.Time  `json:"cancelledAt,omitempty"`
	CancelledBy   *Role       `json:"cancelledBy,omitempty"`
}

// IsParty reports whether a is the booking's customer or provider.
func (b *Booking) IsParty(a Actor) bool {
	switch a.Role {
	case RoleCustomer:
		return a.ID == b.CustomerID
	case RoleProvider:
		return a.ID == b.ProviderID
	}
	return false
}

// apply moves b to the target status and stamps the matching timestamp.
func (b *Booking) apply(to Status, at time.Time, by Role) {
	b.Status = to
	b.StatusVersion++
	t := at
	switch to {
	case StatusConfirmed:
		b.ConfirmedAt = &t
	case StatusInProgress:
		b.StartedAt = &t
	case StatusCompleted:
		b.CompletedAt = &t
	case StatusCancelled:
		b.CancelledAt = &t
		r := by
		b.CancelledBy = &r
	}
}

type Event struct {
	ID         int64
	BookingID  types.ID
	FromStatus Status
	ToStatus   Status
	ActorRole  Role
	ActorID    types.ID
	CreatedAt  time.Time
}

// AllowedTransitions represents the booking state flow as code.
var AllowedTransitions = map[Status][]Status{
	StatusPending:    {StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusCompleted},
}

type edge struct{ from, to Status }

// edgeRoles lists who may drive each edge.
var edgeRoles = map[edge][]Role{
	{StatusPending, StatusConfirmed}:    {RoleProvider},
	{StatusConfirmed, StatusInProgress}: {RoleProvider},
	{StatusInProgress, StatusCompleted}: {RoleProvider},
	{StatusPending, StatusCancelled}:    {RoleCustomer, RoleProvider},
	{StatusConfirmed, StatusCancelled}:  {RoleCustomer, RoleProvider},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// RoleAllowed reports whether role may drive the from->to edge.
func RoleAllowed(from, to Status, role Role) bool {
	for _, r := range edgeRoles[edge{from, to}] {
		if r == role {
			return true
		}
	}
	return false
}

// ListQuery selects the caller's bookings, newest first.
type ListQuery struct {
	Actor  Actor
	Status Status
	Limit  int
	Offset int
}

type Page struct {
	Bookings []Booking `json:"bookings"`
	Total    int       `json:"total"`
	Limit    int       `json:"limit"`
	Offset   int       `json:"offset"`
	HasMore  bool      `json:"hasMore"`
}

const (
	defaultPageSize = 10
	maxPageSize     = 100
)
