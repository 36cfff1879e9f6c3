// Package api wires the authscout HTTP routes and middleware.
package api

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/use-agent/authscout/api/handler"
	"github.com/use-agent/authscout/api/middleware"
	"github.com/use-agent/authscout/config"
	"github.com/use-agent/authscout/metrics"
	"github.com/use-agent/authscout/scraper"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → CORS → Metrics
//	API:     Auth (if enabled) → RateLimit
//
// Health, metrics and the banner sit outside auth so probes always work.
// stats may be nil when the browser is disabled.
func NewRouter(d handler.Detector, stats handler.StatsFunc, cfg *config.Config, m *metrics.Metrics, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	if len(cfg.CORS.AllowOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}
	if cfg.Metrics.Enabled {
		r.Use(middleware.Metrics(m))
		r.GET(cfg.Metrics.Path, gin.WrapH(m.Handler()))
	}

	r.GET("/", handler.Banner())

	v := r.Group("/api")

	// Health: no auth required.
	v.GET("/health", handler.Health(stats, startTime))

	// Protected group: auth + rate limit.
	protected := v.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit))

	protected.POST("/scrape", handler.Scrape(d))
	protected.GET("/scrape", handler.Scrape(d))
	protected.POST("/scrape/batch", handler.PostBatch(d, cfg.Batch.MaxURLs))
	protected.GET("/predefined", handler.Predefined(d, scraper.Predefined()))

	return r
}
