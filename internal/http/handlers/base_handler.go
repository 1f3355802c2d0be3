// README: Base handler utilities (JSON helpers, caller identity, error mapping).
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"mechanico/internal/http/middleware"
	"mechanico/internal/modules/booking"
	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/matching"
	"mechanico/internal/modules/provider"
	"mechanico/internal/modules/tracking"
	"mechanico/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

type conflictResponse struct {
	errorResponse
	Booking *booking.Booking `json:"booking,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, code, msg string) {
	writeJSON(c, status, errorResponse{Error: msg, Code: code})
}

// writeInternal hides the cause from the client; the logging middleware picks
// it up from c.Errors.
func writeInternal(c *gin.Context, err error) {
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, "internal", "internal error")
}

func callerActor(c *gin.Context) booking.Actor {
	return booking.Actor{
		ID:   types.ID(middleware.CallerUID(c)),
		Role: booking.Role(middleware.CallerRole(c)),
	}
}

// writeBookingError maps domain errors from any module to a response. cur is
// the committed booking returned alongside ErrConflict, if any.
func writeBookingError(c *gin.Context, err error, cur *booking.Booking) {
	switch {
	case errors.Is(err, booking.ErrVehicleNotOwned):
		writeError(c, http.StatusNotFound, "invalid_reference", err.Error())
	case errors.Is(err, booking.ErrConflict):
		writeJSON(c, http.StatusConflict, conflictResponse{
			errorResponse: errorResponse{Error: err.Error(), Code: "conflicting_transition"},
			Booking:       cur,
		})
	case errors.Is(err, booking.ErrInvalidTransition):
		writeError(c, http.StatusConflict, "invalid_transition", err.Error())
	case errors.Is(err, booking.ErrInvalidReference):
		writeError(c, http.StatusBadRequest, "invalid_reference", err.Error())
	case errors.Is(err, matching.ErrInvalidQuery):
		writeError(c, http.StatusBadRequest, "invalid_query", err.Error())
	case errors.Is(err, booking.ErrBadRequest), errors.Is(err, tracking.ErrInvalidPosition):
		writeError(c, http.StatusBadRequest, "bad_request", err.Error())
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, provider.ErrNotFound), errors.Is(err, catalog.ErrNotFound):
		writeError(c, http.StatusNotFound, "not_found", err.Error())
	default:
		writeInternal(c, err)
	}
}
