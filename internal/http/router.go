// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"presto/internal/http/handlers"
	"presto/internal/http/middleware"
	"presto/internal/infra"
	"presto/internal/modules/delivery"
	"presto/internal/modules/order"
	"presto/internal/realtime"
)

type RouterDeps struct {
	Verifier infra.TokenVerifier
	Order    *order.Service
	Delivery *delivery.Service
	Tracking handlers.NearbyFinder
	Gateway  *realtime.Gateway
	Log      *zap.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logging(deps.Log), middleware.Recovery(deps.Log))

	// the gateway authenticates the handshake itself (browser websocket
	// clients cannot always set headers)
	r.GET("/ws", deps.Gateway.Handle)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	api := r.Group("/api", middleware.Auth(deps.Verifier))

	orderHandler := handlers.NewOrderHandler(deps.Order)
	api.POST("/orders", orderHandler.Create)
	api.GET("/orders/:id", orderHandler.Get)
	api.PATCH("/orders/:id/status", orderHandler.UpdateStatus)
	api.POST("/orders/:id/cancel", orderHandler.Cancel)

	deliveryHandler := handlers.NewDeliveryHandler(deps.Delivery)
	api.POST("/delivery/orders/:id/accept", deliveryHandler.Accept)
	api.PATCH("/delivery/orders/:id/status", deliveryHandler.UpdateStatus)

	trackingHandler := handlers.NewTrackingHandler(deps.Tracking)
	api.GET("/captains/nearby", trackingHandler.Nearby)

	return r
}
