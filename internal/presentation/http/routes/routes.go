package routes

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasbon/kasirsync/internal/config"
	"github.com/kasbon/kasirsync/internal/presentation/http/handler"
	"github.com/kasbon/kasirsync/internal/presentation/http/middleware"
	"github.com/kasbon/kasirsync/pkg/authtoken"
)

// Handlers groups the handlers that serve routes
type Handlers struct {
	Sync *handler.SyncHandler
}

// SetupRoutes configures all application routes
func SetupRoutes(router *gin.Engine, cfg *config.Config, tokens *authtoken.Manager, h Handlers) {
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.CORSMiddleware(&cfg.CORS))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	limiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimit.Requests > 0 && cfg.RateLimit.Duration > 0 {
		limiterCfg.RequestsPerSecond = float64(cfg.RateLimit.Requests) / float64(cfg.RateLimit.Duration)
		limiterCfg.BurstSize = cfg.RateLimit.Requests
	}
	rateLimiter := middleware.NewCompanyRateLimiter(limiterCfg)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.AuthMiddleware(tokens))
	v1.Use(rateLimiter.Middleware())
	{
		sync := v1.Group("/sync")
		{
			sync.POST("/push", h.Sync.Push)
			sync.GET("/pull", h.Sync.Pull)
		}
	}
}
