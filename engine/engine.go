package engine

import (
	"context"
	"time"
)

// Engine is the interface that all fetch engines must implement.
type Engine interface {
	// Name returns the engine identifier ("static" or "rendered").
	Name() string

	// Fetch retrieves the page for the given request. A non-nil outcome
	// is returned even on failure when the engine could classify it
	// (e.g. a 403 yields Status=ERROR with the body attached).
	Fetch(ctx context.Context, req *FetchRequest) (*FetchOutcome, error)
}

// StatusClass classifies how a fetch went.
type StatusClass string

const (
	StatusOK      StatusClass = "OK"
	StatusBlocked StatusClass = "BLOCKED"
	StatusError   StatusClass = "ERROR"
	StatusTimeout StatusClass = "TIMEOUT"
)

// SourceMethod names the fetcher that produced an outcome.
type SourceMethod string

const (
	MethodStatic   SourceMethod = "static"
	MethodRendered SourceMethod = "rendered"
)

func (m SourceMethod) String() string { return string(m) }

// FetchRequest contains everything an engine needs to fetch a page.
// URL must already be normalised.
type FetchRequest struct {
	URL     string
	Headers map[string]string
	Timeout time.Duration
}

// FetchOutcome is the result of one fetch attempt. Treat it as immutable;
// use WithStatus to derive a reclassified copy.
type FetchOutcome struct {
	HTML       string
	Status     StatusClass
	Method     SourceMethod
	StatusCode int
	FinalURL   string
	Elapsed    time.Duration
}

// WithStatus returns a copy of o carrying status s.
func (o *FetchOutcome) WithStatus(s StatusClass) *FetchOutcome {
	c := *o
	c.Status = s
	return &c
}

// Usable reports whether the outcome carries HTML worth analysing.
func (o *FetchOutcome) Usable(minLen int) bool {
	return o != nil && o.Status == StatusOK && len(o.HTML) > minLen
}
