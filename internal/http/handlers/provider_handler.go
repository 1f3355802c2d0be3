// README: Provider position and availability updates.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"mechanico/internal/geo"
	"mechanico/internal/modules/provider"
	"mechanico/internal/modules/tracking"
	"mechanico/internal/types"
)

type ProviderHandler struct {
	providers *provider.Service
	tracker   *tracking.Tracker
}

func NewProviderHandler(providers *provider.Service, tracker *tracking.Tracker) *ProviderHandler {
	return &ProviderHandler{providers: providers, tracker: tracker}
}

type positionReq struct {
	Lat         *float64   `json:"lat"`
	Lng         *float64   `json:"lng"`
	IsAvailable *bool      `json:"isAvailable"`
	At          *time.Time `json:"at"`
}

func (h *ProviderHandler) UpdatePosition(c *gin.Context) {
	var req positionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "bad_request", "invalid json")
		return
	}
	if req.Lat == nil || req.Lng == nil {
		writeError(c, http.StatusBadRequest, "bad_request", "lat and lng are required")
		return
	}
	pos := types.Point{Lat: *req.Lat, Lng: *req.Lng}
	if !geo.Valid(pos) {
		writeError(c, http.StatusBadRequest, "bad_request", "lat or lng out of range")
		return
	}
	ctx := c.Request.Context()
	id := callerActor(c).ID

	// Availability is written only once the position has been accepted.
	cmd := tracking.ReportCommand{ProviderID: id, Position: pos}
	if req.At != nil {
		cmd.At = *req.At
	}
	if err := h.tracker.ReportPosition(ctx, cmd); err != nil {
		writeBookingError(c, err, nil)
		return
	}
	if req.IsAvailable != nil {
		if err := h.providers.SetAvailability(ctx, id, *req.IsAvailable); err != nil {
			writeBookingError(c, err, nil)
			return
		}
	}
	p, err := h.providers.Get(ctx, id)
	if err != nil {
		writeBookingError(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"profile": p})
}
