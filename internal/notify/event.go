// README: Event envelope pushed to booking and provider topics.
package notify

import (
	"strings"
	"time"

	"mechanico/internal/types"
)

type EventType string

const (
	TypeBookingStatus    EventType = "booking-status-update"
	TypeProviderLocation EventType = "provider-location-update"
)

const (
	bookingTopicPrefix  = "booking:"
	providerTopicPrefix = "provider:"
)

type Event struct {
	Type       EventType `json:"type"`
	Topic      string    `json:"topic"`
	BookingID  types.ID  `json:"bookingId,omitempty"`
	ProviderID types.ID  `json:"providerId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Lat        *float64  `json:"lat,omitempty"`
	Lng        *float64  `json:"lng,omitempty"`
	At         time.Time `json:"at"`
}

func BookingTopic(id types.ID) string  { return bookingTopicPrefix + string(id) }
func ProviderTopic(id types.ID) string { return providerTopicPrefix + string(id) }

// ParseTopic splits "booking:<id>" or "provider:<id>" into its kind and id.
func ParseTopic(topic string) (kind string, id types.ID, ok bool) {
	switch {
	case strings.HasPrefix(topic, bookingTopicPrefix):
		kind, id = "booking", types.ID(strings.TrimPrefix(topic, bookingTopicPrefix))
	case strings.HasPrefix(topic, providerTopicPrefix):
		kind, id = "provider", types.ID(strings.TrimPrefix(topic, providerTopicPrefix))
	default:
		return "", "", false
	}
	return kind, id, id != ""
}

func BookingStatusUpdate(topic string, bookingID, providerID types.ID, status string, at time.Time) Event {
	return Event{
		Type:       TypeBookingStatus,
		Topic:      topic,
		BookingID:  bookingID,
		ProviderID: providerID,
		Status:     status,
		At:         at,
	}
}

func ProviderLocationUpdate(topic string, providerID types.ID, p types.Point, at time.Time) Event {
	lat, lng := p.Lat, p.Lng
	return Event{
		Type:       TypeProviderLocation,
		Topic:      topic,
		ProviderID: providerID,
		Lat:        &lat,
		Lng:        &lng,
		At:         at,
	}
}
