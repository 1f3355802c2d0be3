// README: Service offerings and the vehicle ownership boundary.
package catalog

import (
	"errors"

	"mechanico/internal/types"
)

var (
	ErrNotFound = errors.New("offering not found")
	// ErrVehicleNotFound covers both unknown vehicles and vehicles owned by someone else.
	ErrVehicleNotFound = errors.New("vehicle not found")
)

// Offering is a bookable service type. Price and duration are copied into a
// booking at creation, so later edits never affect existing bookings.
// ProviderID is set when the offering was published by a single provider;
// shared offerings are linked to providers through provider_offerings.
type Offering struct {
	ID          types.ID    `json:"id"`
	ProviderID  types.ID    `json:"providerId,omitempty"`
	Category    string      `json:"category"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	BasePrice   types.Money `json:"basePrice"`
	DurationMin int         `json:"durationMin"`
	Active      bool        `json:"isActive"`
}

// Vehicle is owned by a customer. Registration happens elsewhere; the core
// only needs to know who owns it.
type Vehicle struct {
	ID      types.ID
	OwnerID types.ID
}

type Filter struct {
	Category string
	// Active filters on the active flag when non-nil.
	Active *bool
}

func (f Filter) match(o Offering) bool {
	if f.Category != "" && o.Category != f.Category {
		return false
	}
	if f.Active != nil && o.Active != *f.Active {
		return false
	}
	return true
}
