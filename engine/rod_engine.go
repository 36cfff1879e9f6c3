package engine

import (
	"context"
	"time"

	"github.com/use-agent/authscout/models"
)

// RodFetchFunc is the callback that drives the shared browser. It is
// injected from main.go so that engine/ never imports scraper/.
type RodFetchFunc func(ctx context.Context, req *FetchRequest) (html, finalURL string, err error)

// RodEngine is the rendered fetcher. It wraps the browser callback and
// turns its result into a FetchOutcome.
type RodEngine struct {
	fetchFunc RodFetchFunc
}

// NewRodEngine creates a RodEngine. A nil fetchFunc yields an engine that
// always reports RENDER_UNAVAILABLE.
func NewRodEngine(fetchFunc RodFetchFunc) *RodEngine {
	return &RodEngine{fetchFunc: fetchFunc}
}

func (e *RodEngine) Name() string { return string(MethodRendered) }

func (e *RodEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchOutcome, error) {
	start := time.Now()
	outcome := &FetchOutcome{Method: MethodRendered, FinalURL: req.URL}

	if e.fetchFunc == nil {
		outcome.Status = StatusError
		return outcome, models.NewScrapeError(models.ErrCodeRenderUnavailable, "browser disabled", nil)
	}

	html, finalURL, err := e.fetchFunc(ctx, req)
	outcome.Elapsed = time.Since(start)
	if err != nil {
		outcome.Status = StatusError
		if ctx.Err() != nil {
			outcome.Status = StatusTimeout
		}
		return outcome, models.NewScrapeError(models.ErrCodeRenderUnavailable, "rendered fetch failed", err)
	}

	outcome.HTML = html
	outcome.Status = StatusOK
	if finalURL != "" {
		outcome.FinalURL = finalURL
	}
	return outcome, nil
}
