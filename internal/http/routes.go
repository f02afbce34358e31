package http

import (
	"time"

	"rps_arena/internal/http/handlers"
	"rps_arena/internal/http/middleware"
	"rps_arena/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Routes struct {
	Handler *handlers.Handler
	Health  *handlers.HealthHandler
	Hub     *ws.Hub
	Router  *ws.Router

	APIRateLimit  int
	APIRateWindow time.Duration
}

func RegisterRoutes(r *gin.Engine, rt Routes) {
	h := rt.Handler

	// Health checks (no rate limiting)
	r.GET("/health", rt.Health.Health)
	r.GET("/healthz", rt.Health.Liveness)
	r.GET("/readyz", rt.Health.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Session transport; authenticates with ?token=
	r.GET("/ws", h.WS(rt.Hub, rt.Router))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.Metrics())
	v1.GET("/match/limits", middleware.RedisRateLimit(rt.APIRateLimit, rt.APIRateWindow), h.Limits)

	authed := v1.Group("")
	authed.Use(middleware.JWT(), middleware.RedisRateLimit(rt.APIRateLimit, rt.APIRateWindow))
	{
		authed.GET("/me", h.Me)
		authed.GET("/match/session", h.SessionStatus)
		authed.POST("/match/surrender", h.Surrender)
		authed.GET("/matches", h.Matches)
		authed.GET("/transactions", h.Transactions)
	}
}
