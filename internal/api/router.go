package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"home-sensor-backend/internal/mw"
)

// LiveHub serves the WebSocket push channel.
type LiveHub interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// RouterConfig tunes the router middleware.
type RouterConfig struct {
	// Limiter throttles dashboard routes per client IP. Nil builds one from RateLimit
	// and RateBurst.
	Limiter   *mw.IPRateLimiter
	RateLimit rate.Limit
	RateBurst int
	// Cache is shared with writers outside the router, such as ingestion. Nil builds
	// one from CacheTTL.
	Cache *mw.ResponseCache
	// CacheTTL enables response caching of slow-changing GET routes when positive.
	CacheTTL time.Duration
	// ControlSecret protects state-changing dashboard routes with HS256 bearer tokens.
	ControlSecret string
}

// NewRouter creates and configures a new Gin router.
func NewRouter(h *Handler, live LiveHub, cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(mw.RequestID())

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = mw.NewIPRateLimiter(cfg.RateLimit, cfg.RateBurst)
	}
	switch {
	case cfg.Cache != nil:
		h.cache = cfg.Cache
	case cfg.CacheTTL > 0:
		h.cache = mw.NewResponseCache(cfg.CacheTTL)
	}
	caching := mw.Cache(h.cache)
	authorized := mw.BearerAuth(cfg.ControlSecret)

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if live != nil {
		r.GET("/ws", gin.WrapF(live.ServeWS))
	}

	// Device surface. Devices report and poll on a fixed cadence, so it is not rate limited.
	devices := r.Group("/api")
	{
		devices.POST("/readings", h.PostReading)
		devices.GET("/commands", h.GetCommand)
	}

	api := r.Group("/api")
	api.Use(mw.RateLimiter(limiter))
	{
		api.POST("/control", authorized, h.PostControl)

		api.GET("/logs", h.GetLogs)
		api.GET("/logs/room/:roomId", h.GetRoomLogs)
		api.GET("/logs/search", h.SearchLogs)
		api.GET("/logs/stats", caching, h.GetLogStats)
		api.GET("/logs/export", h.ExportLogs)
		api.POST("/logs", authorized, h.CreateLog)

		api.GET("/alerts/active", h.GetActiveAlerts)
		api.GET("/alerts/recent", h.GetRecentAlerts)
		api.PATCH("/alerts/:id/resolve", authorized, h.ResolveAlert)

		api.GET("/rooms", caching, h.GetRooms)
		api.GET("/rooms/live", h.GetLiveRooms)
		api.GET("/status", h.GetStatus)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
