// README: Nearby provider search and the offering catalog.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/matching"
	"mechanico/internal/types"
)

type NearbyHandler struct {
	matching *matching.Service
	catalog  *catalog.Service
}

func NewNearbyHandler(m *matching.Service, cat *catalog.Service) *NearbyHandler {
	return &NearbyHandler{matching: m, catalog: cat}
}

func (h *NearbyHandler) Nearby(c *gin.Context) {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(c, http.StatusBadRequest, "invalid_query", "lat and lng are required")
		return
	}
	radius := h.matching.DefaultRadiusKm()
	if raw := c.Query("radiusKm"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_query", "radiusKm must be a number")
			return
		}
		radius = v
	}

	ranked, err := h.matching.FindNearby(c.Request.Context(), matching.NearbyQuery{
		OfferingID: types.ID(c.Query("offeringId")),
		Origin:     types.Point{Lat: lat, Lng: lng},
		RadiusKm:   radius,
	})
	if err != nil {
		writeBookingError(c, err, nil)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"candidates": ranked})
}

func (h *NearbyHandler) Offerings(c *gin.Context) {
	f := catalog.Filter{Category: c.Query("category")}
	if raw := c.Query("active"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid_query", "active must be true or false")
			return
		}
		f.Active = &v
	}
	items, err := h.catalog.List(c.Request.Context(), f)
	if err != nil {
		writeInternal(c, err)
		return
	}
	if items == nil {
		items = []catalog.Offering{}
	}
	writeJSON(c, http.StatusOK, gin.H{"offerings": items})
}
