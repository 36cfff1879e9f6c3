package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/authscout/models"
)

// Version is reported by the health endpoint and the banner.
const Version = "0.1.0"

// StatsFunc reports the state of the shared browser.
type StatsFunc func() models.BrowserStats

// Health returns a handler for GET /api/health.
//
// Status degrades when more than 80% of the browser contexts are in use.
func Health(stats StatsFunc, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		var bs models.BrowserStats
		if stats != nil {
			bs = stats()
		}

		status := "healthy"
		if bs.MaxContexts > 0 && bs.ActiveContexts > int(float64(bs.MaxContexts)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:       status,
			Uptime:       time.Since(startTime).Round(time.Second).String(),
			BrowserStats: bs,
			Version:      Version,
		})
	}
}

// Banner returns a handler for GET /.
func Banner() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"service": "authscout",
			"version": Version,
			"docs":    "POST /api/scrape {\"url\": \"https://example.com/login\"}",
		})
	}
}
