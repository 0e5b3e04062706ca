// README: Courier tracking handler: nearby-captain query over the GEO store.
package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"presto/internal/types"
)

// NearbyFinder is the tracking query the handler depends on.
type NearbyFinder interface {
	Nearby(ctx context.Context, p types.Point, radiusKm float64) ([]types.ID, error)
}

type TrackingHandler struct {
	tracking NearbyFinder
}

func NewTrackingHandler(tracking NearbyFinder) *TrackingHandler {
	return &TrackingHandler{tracking: tracking}
}

const defaultNearbyRadiusKm = 5.0

// Nearby lists captains within radius_km of (lat, lng), nearest first.
func (h *TrackingHandler) Nearby(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lng, lngErr := strconv.ParseFloat(c.Query("lng"), 64)
	if latErr != nil || lngErr != nil {
		writeError(c, http.StatusBadRequest, "lat and lng query params required")
		return
	}
	radius := defaultNearbyRadiusKm
	if raw := c.Query("radius_km"); raw != "" {
		r, err := strconv.ParseFloat(raw, 64)
		if err != nil || r <= 0 {
			writeError(c, http.StatusBadRequest, "invalid radius_km")
			return
		}
		radius = r
	}

	ids, err := h.tracking.Nearby(c.Request.Context(), types.Point{Lat: lat, Lng: lng}, radius)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "tracking lookup failed")
		return
	}
	writeJSON(c, http.StatusOK, map[string]any{"captains": ids})
}
