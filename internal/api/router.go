package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"mute-schedule-backend/config"
	"mute-schedule-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router around a handler.
func NewRouter(h *Handler, srvCfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()

	limit := srvCfg.RateLimitPerSec
	if limit <= 0 {
		limit = 10
	}
	burst := 5
	if int(limit) > burst {
		burst = int(limit)
	}
	rateLimiter := mw.RateLimiter(rate.Limit(limit), burst, srvCfg.RequestIPHeader)

	ttl := time.Duration(srvCfg.CacheTTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	cacheStore := cache.New(ttl, 10*time.Minute)
	caching := mw.Cache(cacheStore, ttl)

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.POST("/heartbeat", h.TriggerHeartbeat)

		api.GET("/entities", caching, h.ListEntityStates)
		api.GET("/entities/:entity_id/state", h.GetEntityState)
		api.GET("/entities/:entity_id/transitions", caching, h.ListTransitions)
		api.POST("/entities/:entity_id/check", h.CheckEntity)

		api.GET("/calendar/:date", caching, h.GetCalendarClassification)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
