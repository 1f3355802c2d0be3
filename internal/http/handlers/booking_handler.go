// README: Booking handlers for create, list, get, transition and ETA.
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mechanico/internal/modules/booking"
	"mechanico/internal/modules/tracking"
	"mechanico/internal/types"
)

type BookingHandler struct {
	bookings *booking.Service
	tracker  *tracking.Tracker
}

func NewBookingHandler(svc *booking.Service, tracker *tracking.Tracker) *BookingHandler {
	return &BookingHandler{bookings: svc, tracker: tracker}
}

type createBookingReq struct {
	ProviderID string   `json:"providerId"`
	OfferingID string   `json:"offeringId"`
	VehicleID  string   `json:"vehicleId"`
	Lat        *float64 `json:"lat"`
	Lng        *float64 `json:"lng"`
	Address    string   `json:"address"`
	Notes      string   `json:"notes"`
}

type transitionReq struct {
	TargetState string `json:"targetState"`
}

type paginationResp struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

func (h *BookingHandler) Create(c *gin.Context) {
	var req createBookingReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.OfferingID == "" || req.VehicleID == "" || req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "bad_request", "missing fields")
		return
	}
	actor := callerActor(c)
	b, err := h.bookings.Create(c.Request.Context(), booking.CreateCommand{
		CustomerID: actor.ID,
		ProviderID: types.ID(req.ProviderID),
		OfferingID: types.ID(req.OfferingID),
		VehicleID:  types.ID(req.VehicleID),
		Position:   types.Point{Lat: *req.Lat, Lng: *req.Lng},
		Address:    req.Address,
		Notes:      req.Notes,
	})
	if err != nil {
		writeBookingError(c, err, nil)
		return
	}
	writeJSON(c, http.StatusCreated, gin.H{"booking": b})
}

func (h *BookingHandler) List(c *gin.Context) {
	limit, errLimit := queryInt(c, "limit")
	offset, errOffset := queryInt(c, "offset")
	if errLimit != nil || errOffset != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "limit and offset must be integers")
		return
	}
	page, err := h.bookings.List(c.Request.Context(), booking.ListQuery{
		Actor:  callerActor(c),
		Status: booking.Status(strings.ToUpper(c.Query("status"))),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		writeBookingError(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"bookings": page.Bookings,
		"pagination": paginationResp{
			Total:   page.Total,
			Limit:   page.Limit,
			Offset:  page.Offset,
			HasMore: page.HasMore,
		},
	})
}

func (h *BookingHandler) Get(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id")), callerActor(c))
	if err != nil {
		writeBookingError(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking": b})
}

func (h *BookingHandler) Transition(c *gin.Context) {
	var req transitionReq
	if err := c.ShouldBindJSON(&req); err != nil || req.TargetState == "" {
		writeError(c, http.StatusBadRequest, "bad_request", "targetState is required")
		return
	}
	b, err := h.bookings.Transition(c.Request.Context(), booking.TransitionCommand{
		BookingID: types.ID(c.Param("id")),
		Actor:     callerActor(c),
		Target:    booking.Status(strings.ToUpper(req.TargetState)),
	})
	if err != nil {
		writeBookingError(c, err, b)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"booking": b})
}

// ETA answers null unless the booking is CONFIRMED and the provider position is known.
func (h *BookingHandler) ETA(c *gin.Context) {
	b, err := h.bookings.Get(c.Request.Context(), types.ID(c.Param("id")), callerActor(c))
	if err != nil {
		writeBookingError(c, err, nil)
		return
	}
	minutes, err := h.tracker.EstimatedArrivalMinutes(c.Request.Context(), b.ID)
	if err != nil {
		writeBookingError(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"etaMinutes": minutes})
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
