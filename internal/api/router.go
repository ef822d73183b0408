package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"hr-scheduling-backend/config"
	"hr-scheduling-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(cfg *config.Config, h *Handler, logger *zap.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(mw.Logger(logger.Named("http")), mw.Recovery(logger))

	if len(cfg.Server.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.Server.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:  []string{"Authorization", "Content-Type"},
			ExposeHeaders: []string{PreviousSlotHeader},
			MaxAge:        12 * time.Hour,
		}))
	}

	r.GET("/healthz", h.Healthz)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)

	responseCache := mw.NewResponseCache(cfg.Server.CacheTTL())
	caching := mw.Cache(responseCache)
	invalidate := mw.Invalidate(responseCache)

	authenticate := mw.Authenticate(cfg.Auth.JWTSecret)
	writer := mw.RequireRole(mw.RoleRecruiter, mw.RoleAdmin)

	api := r.Group(cfg.Server.BasePath)
	api.Use(rateLimiter, authenticate)
	{
		api.GET("/slots", caching, h.ListSlots)
		api.GET("/slots/:id", caching, h.GetSlot)
		api.POST("/slots", writer, invalidate, h.CreateSlot)
		api.POST("/slots/availability", writer, invalidate, h.OpenSlot)
		api.PUT("/slots/:id", writer, invalidate, h.UpdateSlot)
		api.DELETE("/slots/:id", writer, invalidate, h.CancelSlot)

		api.GET("/stats/overview", caching, h.StatsOverview)

		api.GET("/subscriptions", h.GetSubscription)
		api.PUT("/subscriptions", h.PutSubscription)
		api.DELETE("/subscriptions", h.DeleteSubscription)
		api.GET("/vapid_public_key", h.GetVAPIDPublicKey)
	}

	return r
}
