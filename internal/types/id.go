// README: Identifier and geographic point shared by every module.
package types

// ID is an opaque entity identifier (uuid for bookings, free-form for users).
type ID string

func (id ID) String() string { return string(id) }

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}
