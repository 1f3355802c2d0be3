// README: HTTP router registration.
package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"mechanico/internal/http/handlers"
	"mechanico/internal/http/middleware"
	"mechanico/internal/infra"
	"mechanico/internal/modules/booking"
	"mechanico/internal/modules/catalog"
	"mechanico/internal/modules/matching"
	"mechanico/internal/modules/provider"
	"mechanico/internal/modules/tracking"
	"mechanico/internal/notify"
)

// Check reports whether a dependency is reachable.
type Check func(ctx context.Context) error

type RouterDeps struct {
	Bookings  *booking.Service
	Catalog   *catalog.Service
	Providers *provider.Service
	Matching  *matching.Service
	Tracker   *tracking.Tracker
	Hub       *notify.Hub
	Verifier  infra.TokenVerifier
	Log       logrus.FieldLogger
	// Ready holds named readiness checks, e.g. "postgres" and "redis".
	Ready map[string]Check
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.RequestID(), middleware.Recovery(deps.Log), middleware.Logging(deps.Log), middleware.Metrics())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/ready", readyHandler(deps.Ready))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	nearby := handlers.NewNearbyHandler(deps.Matching, deps.Catalog)
	api.GET("/nearby", nearby.Nearby)
	api.GET("/offerings", nearby.Offerings)

	bookings := handlers.NewBookingHandler(deps.Bookings, deps.Tracker)
	api.POST("/bookings", middleware.RequireRole(string(booking.RoleCustomer)), bookings.Create)
	api.GET("/bookings", bookings.List)
	api.GET("/bookings/:id", bookings.Get)
	api.POST("/bookings/:id/transition", bookings.Transition)
	api.GET("/bookings/:id/eta", bookings.ETA)

	providers := handlers.NewProviderHandler(deps.Providers, deps.Tracker)
	api.POST("/provider/position", middleware.RequireRole(string(booking.RoleProvider)), providers.UpdatePosition)

	events := handlers.NewEventsHandler(deps.Hub, deps.Bookings, deps.Log)
	api.GET("/events/ws", events.Subscribe)

	return r
}

func readyHandler(checks map[string]Check) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		result := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				result[name] = err.Error()
				continue
			}
			result[name] = "ok"
		}
		c.JSON(status, gin.H{"checks": result})
	}
}
