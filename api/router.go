package api

import (
	"github.com/gin-gonic/gin"
	"github.com/use-agent/quotegrab/api/handler"
	"github.com/use-agent/quotegrab/api/middleware"
	"github.com/use-agent/quotegrab/config"
	"github.com/use-agent/quotegrab/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	Batch:   RateLimit
//
// Health stays outside the rate limit so monitoring probes always work.
func NewRouter(sc *scraper.Scraper, cfg *config.Config) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	limited := middleware.RateLimit(cfg.RateLimit)
	quotes := handler.Quotes(sc, cfg.Scraper.MaxTargets)

	// Legacy single-route form accepted by older clients.
	r.POST("/scrap", limited, quotes)

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(sc))

	batch := v1.Group("")
	batch.Use(limited)
	batch.POST("/quotes", quotes)
	batch.POST("/jobs", handler.PostJob(sc, cfg.Scraper.MaxTargets, cfg.Webhook.Secret))
	batch.GET("/jobs/:id", handler.GetJob())

	return r
}
