package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mechanico/internal/modules/booking"
	"mechanico/internal/modules/matching"
	"mechanico/internal/modules/provider"
	"mechanico/internal/modules/tracking"
)

func TestWriteBookingError_Mapping(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{booking.ErrVehicleNotOwned, http.StatusNotFound, "invalid_reference"},
		{fmt.Errorf("%w: offering x", booking.ErrInvalidReference), http.StatusBadRequest, "invalid_reference"},
		{fmt.Errorf("%w: bad", matching.ErrInvalidQuery), http.StatusBadRequest, "invalid_query"},
		{booking.ErrInvalidTransition, http.StatusConflict, "invalid_transition"},
		{booking.ErrBadRequest, http.StatusBadRequest, "bad_request"},
		{tracking.ErrInvalidPosition, http.StatusBadRequest, "bad_request"},
		{booking.ErrNotFound, http.StatusNotFound, "not_found"},
		{provider.ErrNotFound, http.StatusNotFound, "not_found"},
		{errors.New("connection reset"), http.StatusInternalServerError, "internal"},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		writeBookingError(c, tt.err, nil)

		assert.Equal(t, tt.status, w.Code, tt.err.Error())
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, tt.code, body["code"], tt.err.Error())
	}
}

func TestWriteBookingError_ConflictCarriesCurrentState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	cur := &booking.Booking{ID: "b1", Status: booking.StatusCancelled, StatusVersion: 2}

	writeBookingError(c, booking.ErrConflict, cur)

	assert.Equal(t, http.StatusConflict, w.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "conflicting_transition", body["code"])
	assert.Equal(t, "CANCELLED", body["booking"].(map[string]any)["status"])
}

func TestWriteInternal_HidesCause(t *testing.T) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	writeInternal(c, errors.New("pq: password authentication failed"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "password")
	require.Len(t, c.Errors, 1)
}
