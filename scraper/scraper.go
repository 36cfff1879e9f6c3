// Package scraper turns a URL into a ScrapeResult: it normalises the URL,
// fetches it statically, decides whether the static HTML can be trusted,
// falls back to the shared headless browser and runs the login-form
// locator on the best HTML available.
package scraper

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/use-agent/authscout/engine"
	"github.com/use-agent/authscout/locator"
	"github.com/use-agent/authscout/metrics"
	"github.com/use-agent/authscout/models"
)

// minUsableLen is the body length below which fetched HTML is not analysed
// on its own merits.
const minUsableLen = 500

// predefinedURLs are well-known login pages used for demos and benchmarks.
var predefinedURLs = []string{
	"https://github.com/login",
	"https://stackoverflow.com/users/login",
	"https://www.linkedin.com/login",
	"https://www.quora.com/login",
	"https://www.dropbox.com/login",
}

// Predefined returns a copy of the predefined login URLs.
func Predefined() []string {
	out := make([]string, len(predefinedURLs))
	copy(out, predefinedURLs)
	return out
}

// Scraper sequences the static fetch, the classifier, the rendered fetch
// and the locator. It is safe for concurrent use.
type Scraper struct {
	static   engine.Engine
	rendered engine.Engine
	metrics  *metrics.Metrics
}

// New creates a Scraper. rendered may be nil, in which case every scrape
// is static-only.
func New(static, rendered engine.Engine, m *metrics.Metrics) *Scraper {
	return &Scraper{static: static, rendered: rendered, metrics: m}
}

// Scrape inspects one URL. It never returns nil and never panics on bad
// input; failures are reported through Success=false.
//
// Flow (numbered steps match the inline comments):
//
//  1. Normalise      – invalid input fails fast, no network
//  2. Static fetch   – one GET; failures escalate with no static HTML
//  3. Classify       – locate on static HTML, keep it unless suspicious
//  4. Rendered fetch – supersedes static unless clearly worse
//  5. Degrade        – fall back to any static HTML
//  6. Fail           – BOTH_METHODS_FAILED
func (s *Scraper) Scrape(ctx context.Context, rawURL string) *models.ScrapeResult {
	start := time.Now()

	// ── 1. Normalise ────────────────────────────────────────────────
	target, err := NormalizeURL(rawURL)
	if err != nil {
		result := models.FailedResult(rawURL, err)
		s.metrics.ObserveScrape(false, false, "", time.Since(start))
		return result
	}
	log := slog.With("url", target)
	timing := &models.TimingInfo{}

	// ── 2. Static fetch ─────────────────────────────────────────────
	var static *engine.FetchOutcome
	var staticComp *models.AuthComponent

	out, err := s.static.Fetch(ctx, &engine.FetchRequest{URL: target})
	if out != nil {
		timing.StaticMs = out.Elapsed.Milliseconds()
		s.metrics.ObserveFetch(out.Method.String(), string(out.Status), out.Elapsed)
	}
	switch {
	case err != nil || out == nil:
		log.Info("static fetch failed, escalating", "error", err)
	case len(out.HTML) <= minUsableLen:
		static = out
		s.metrics.ObserveEscalation("short_body")
		log.Info("static body too short, escalating", "bytes", len(out.HTML))
	default:
		// ── 3. Classify ─────────────────────────────────────────────
		comp := locator.Locate(out.HTML, baseFor(out, target))
		verdict := Classify(out.HTML, target, comp.Found)
		if !verdict.Escalate {
			return s.finish(target, out, comp, timing, start)
		}
		static = out.WithStatus(engine.StatusBlocked)
		staticComp = &comp
		s.metrics.ObserveEscalation(verdict.Reason)
		log.Info("static result not trusted, escalating",
			"reason", verdict.Reason,
			"title", engine.ExtractTitle(out.HTML),
			"found", comp.Found,
		)
	}

	// ── 4. Rendered fetch ───────────────────────────────────────────
	if rendered := s.fetchRendered(ctx, target, timing); rendered.Usable(minUsableLen) {
		if static != nil && clearlyWorse(rendered.HTML, static.HTML) {
			log.Info("rendered DOM worse than static body, keeping static",
				"renderedBytes", len(rendered.HTML),
				"staticBytes", len(static.HTML),
			)
		} else {
			comp := locator.Locate(rendered.HTML, baseFor(rendered, target))
			return s.finish(target, rendered, comp, timing, start)
		}
	}

	// ── 5. Degrade to static ────────────────────────────────────────
	if static != nil && static.HTML != "" {
		comp := locateOnce(staticComp, static, target)
		return s.finish(target, static, comp, timing, start)
	}

	// ── 6. Fail ─────────────────────────────────────────────────────
	log.Warn("both fetch methods failed")
	result := models.FailedResult(target, models.NewScrapeError(
		models.ErrCodeBothMethodsFailed, models.MsgBothMethodsFailed, nil,
	))
	timing.TotalMs = time.Since(start).Milliseconds()
	result.Timing = timing
	s.metrics.ObserveScrape(false, false, "", time.Since(start))
	return result
}

// fetchRendered runs the rendered engine, returning nil when it is
// disabled or produced nothing.
func (s *Scraper) fetchRendered(ctx context.Context, target string, timing *models.TimingInfo) *engine.FetchOutcome {
	if s.rendered == nil {
		return nil
	}
	out, err := s.rendered.Fetch(ctx, &engine.FetchRequest{URL: target})
	if out != nil {
		timing.RenderedMs = out.Elapsed.Milliseconds()
		s.metrics.ObserveFetch(out.Method.String(), string(out.Status), out.Elapsed)
	}
	if err != nil {
		slog.Warn("rendered fetch unavailable", "url", target, "error", err)
		return nil
	}
	return out
}

// ScrapeBatch scrapes every URL concurrently. Results are positional: the
// i-th result belongs to the i-th URL.
func (s *Scraper) ScrapeBatch(ctx context.Context, urls []string) []*models.ScrapeResult {
	results := make([]*models.ScrapeResult, len(urls))

	var wg sync.WaitGroup
	for i, u := range urls {
		wg.Add(1)
		go func(idx int, target string) {
			defer wg.Done()
			results[idx] = s.Scrape(ctx, target)
		}(i, u)
	}
	wg.Wait()

	return results
}

func (s *Scraper) finish(target string, out *engine.FetchOutcome, comp models.AuthComponent, timing *models.TimingInfo, start time.Time) *models.ScrapeResult {
	elapsed := time.Since(start)
	timing.TotalMs = elapsed.Milliseconds()
	s.metrics.ObserveScrape(true, comp.Found, out.Method.String(), elapsed)

	slog.Info("scrape finished",
		"url", target,
		"method", out.Method,
		"found", comp.Found,
		"ms", timing.TotalMs,
	)
	return &models.ScrapeResult{
		URL:           target,
		Success:       true,
		AuthComponent: &comp,
		FetchMethod:   out.Method.String(),
		Timing:        timing,
	}
}

// clearlyWorse reports whether the rendered DOM is shorter than the static
// body and lacks any password signal.
func clearlyWorse(rendered, static string) bool {
	return len(rendered) < len(static) && !strings.Contains(strings.ToLower(rendered), "password")
}

// baseFor picks the URL form actions are resolved against.
func baseFor(out *engine.FetchOutcome, target string) string {
	if out.FinalURL != "" {
		return out.FinalURL
	}
	return target
}

func locateOnce(cached *models.AuthComponent, out *engine.FetchOutcome, target string) models.AuthComponent {
	if cached != nil {
		return *cached
	}
	return locator.Locate(out.HTML, baseFor(out, target))
}
