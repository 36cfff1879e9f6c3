package models

// ScrapeResult is the per-URL outcome returned by every surface
// (HTTP API, CLI, MCP).
type ScrapeResult struct {
	// URL echoes the URL as given by the caller.
	URL string `json:"url"`

	// Success is false when no HTML could be obtained or the URL was invalid.
	Success bool `json:"success"`

	// Error is a short human-readable message, set only when Success is false.
	Error string `json:"error,omitempty"`

	// ErrorCode is the machine-readable counterpart of Error.
	ErrorCode string `json:"errorCode,omitempty"`

	// AuthComponent is present whenever Success is true.
	AuthComponent *AuthComponent `json:"authComponent,omitempty"`

	// FetchMethod reports which fetch produced the analysed HTML
	// ("static" or "rendered").
	FetchMethod string `json:"fetchMethod,omitempty"`

	// Timing breaks down where the time went.
	Timing *TimingInfo `json:"timing,omitempty"`
}

// AuthComponent describes the login form found on a page.
// When Found is false every other field is empty.
type AuthComponent struct {
	Found         bool   `json:"found"`
	HTMLSnippet   string `json:"htmlSnippet,omitempty"`
	FormElement   string `json:"formElement,omitempty"`
	UsernameInput string `json:"usernameInput,omitempty"`
	PasswordInput string `json:"passwordInput,omitempty"`
	SubmitButton  string `json:"submitButton,omitempty"`
	Method        string `json:"method,omitempty"`
	Action        string `json:"action,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"totalMs"`

	// StaticMs is the time spent on the plain HTTP fetch.
	StaticMs int64 `json:"staticMs"`

	// RenderedMs is the time spent in the headless browser, zero when
	// the browser was not needed.
	RenderedMs int64 `json:"renderedMs,omitempty"`
}

// BatchResponse wraps the per-URL results, in input order.
type BatchResponse struct {
	// BatchID identifies the batch in webhook events. Set only when a
	// webhook was requested.
	BatchID string          `json:"batchId,omitempty"`
	Results []*ScrapeResult `json:"results"`
}

// HealthResponse is the response for GET /api/health.
type HealthResponse struct {
	Status       string       `json:"status"` // "healthy" or "degraded"
	Uptime       string       `json:"uptime"`
	BrowserStats BrowserStats `json:"browserStats"`
	Version      string       `json:"version"`
}

// BrowserStats reports the state of the shared headless browser.
type BrowserStats struct {
	Enabled        bool `json:"enabled"`
	Running        bool `json:"running"`
	MaxContexts    int  `json:"maxContexts"`
	ActiveContexts int  `json:"activeContexts"`
}
