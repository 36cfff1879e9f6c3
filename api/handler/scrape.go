// Package handler holds the gin handlers of the authscout HTTP API.
package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/authscout/models"
)

// Detector is the scraping surface the handlers depend on.
// *scraper.Scraper satisfies it.
type Detector interface {
	Scrape(ctx context.Context, rawURL string) *models.ScrapeResult
	ScrapeBatch(ctx context.Context, urls []string) []*models.ScrapeResult
}

// Scrape returns a handler for POST /api/scrape and GET /api/scrape.
//
// POST reads {"url": "..."} from the body, GET reads ?url=. A scrape that
// fails still answers 200: the failure is reported in the ScrapeResult.
func Scrape(d Detector) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ScrapeRequest

		var err error
		if c.Request.Method == http.MethodGet {
			err = c.ShouldBindQuery(&req)
		} else {
			err = c.ShouldBindJSON(&req)
		}
		if err != nil {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "url is required")
			return
		}

		c.JSON(http.StatusOK, d.Scrape(c.Request.Context(), req.URL))
	}
}

// respondError writes a structured JSON error response.
func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error: &models.ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}
