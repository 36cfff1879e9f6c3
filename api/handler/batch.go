package handler

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/authscout/models"
	"github.com/use-agent/authscout/webhook"
)

// PostBatch returns a handler for POST /api/scrape/batch.
//
// Every URL is scraped concurrently and the results are returned in input
// order. When webhookUrl is set the same results are also delivered as a
// signed batch.completed event.
func PostBatch(d Detector, maxURLs int) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.BatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput, "urls is required and must be a non-empty list")
			return
		}

		if maxURLs > 0 && len(req.URLs) > maxURLs {
			respondError(c, http.StatusBadRequest, models.ErrCodeInvalidInput,
				fmt.Sprintf("maximum %d URLs per batch", maxURLs))
			return
		}

		start := time.Now()
		resp := models.BatchResponse{Results: d.ScrapeBatch(c.Request.Context(), req.URLs)}

		found := 0
		for _, r := range resp.Results {
			if r.AuthComponent != nil && r.AuthComponent.Found {
				found++
			}
		}

		if req.WebhookURL != "" {
			resp.BatchID = "batch-" + randomID()
			webhook.DeliverAsync(req.WebhookURL, req.WebhookSecret, &webhook.Event{
				Type:      webhook.EventBatchCompleted,
				BatchID:   resp.BatchID,
				Timestamp: time.Now().Unix(),
				Data:      resp,
			})
		}

		slog.Info("batch finished",
			"batchId", resp.BatchID,
			"total", len(resp.Results),
			"found", found,
			"ms", time.Since(start).Milliseconds(),
		)
		c.JSON(http.StatusOK, resp)
	}
}

// Predefined returns a handler for GET /api/predefined, which scrapes the
// given fixed list of login URLs.
func Predefined(d Detector, urls []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.BatchResponse{
			Results: d.ScrapeBatch(c.Request.Context(), urls),
		})
	}
}

// randomID generates a short random hex string for batch IDs.
func randomID() string {
	b := make([]byte, 8)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
