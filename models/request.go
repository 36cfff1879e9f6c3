package models

// ScrapeRequest is the payload for POST /api/scrape.
type ScrapeRequest struct {
	// URL is the page to inspect. Required. A missing scheme is treated
	// as https.
	URL string `json:"url" form:"url" binding:"required"`
}
