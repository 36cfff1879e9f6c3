package models

// BatchRequest is the payload for POST /api/scrape/batch.
type BatchRequest struct {
	// URLs is the list of pages to inspect. Required.
	URLs []string `json:"urls" binding:"required,min=1"`

	// WebhookURL, if set, receives a signed batch.completed event once
	// every URL has been processed.
	WebhookURL string `json:"webhookUrl,omitempty" binding:"omitempty,url"`

	// WebhookSecret is used for HMAC-SHA256 signing of the webhook payload.
	WebhookSecret string `json:"webhookSecret,omitempty"`
}
