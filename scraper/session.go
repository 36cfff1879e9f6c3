package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/authscout/config"
	"github.com/ysmood/gson"
)

// Session is one incognito browser context with a single page. It
// implements the tab interface used by the navigation heuristic.
type Session struct {
	incognito *rod.Browser
	page      *rod.Page
	router    *rod.HijackRouter
	release   func()
	closeOnce sync.Once
}

// configure prepares the page before its first navigation.
//
// Order matters: stealth scripts, extra headers and the hijack router only
// apply to navigations started after they are installed.
func (s *Session) configure(cfg config.BrowserConfig, headers map[string]string, blocked map[proto.NetworkResourceType]struct{}) error {
	// ── 1. Viewport, user agent, locale ─────────────────────────────
	if err := s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:             cfg.ViewportWidth,
		Height:            cfg.ViewportHeight,
		DeviceScaleFactor: 1,
	}); err != nil {
		return fmt.Errorf("set viewport: %w", err)
	}
	if err := s.page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      cfg.UserAgent,
		AcceptLanguage: cfg.Locale,
	}); err != nil {
		return fmt.Errorf("set user agent: %w", err)
	}
	if err := (proto.EmulationSetLocaleOverride{Locale: cfg.Locale}).Call(s.page); err != nil {
		slog.Debug("locale override rejected", "locale", cfg.Locale, "error", err)
	}

	// ── 2. Stealth (opt-in) ─────────────────────────────────────────
	if cfg.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// ── 3. Extra headers ────────────────────────────────────────────
	extra := map[string]string{"DNT": "1"}
	for k, v := range headers {
		extra[k] = v
	}
	if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(extra)}).Call(s.page); err != nil {
		return fmt.Errorf("set extra headers: %w", err)
	}

	// ── 4. Resource blocking ────────────────────────────────────────
	s.router = setupHijack(s.page, blocked)
	return nil
}

// Navigate loads url and waits for DOMContentLoaded.
func (s *Session) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	p := s.page.Context(navCtx)
	wait := p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	if err := navCtx.Err(); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// Click clicks the first element matching sel when it is visible. Lookup
// never waits for the element to appear.
func (s *Session) Click(ctx context.Context, sel LinkSelector, timeout time.Duration) (bool, error) {
	p := s.page.Context(ctx)

	var (
		has bool
		el  *rod.Element
		err error
	)
	if sel.Text == "" {
		has, el, err = p.Has(sel.CSS)
	} else {
		has, el, err = p.HasR(sel.CSS, sel.Text)
	}
	if err != nil {
		return false, fmt.Errorf("query %s: %w", sel.CSS, err)
	}
	if !has {
		return false, nil
	}

	visible, err := el.Visible()
	if err != nil {
		return false, fmt.Errorf("visibility %s: %w", sel.CSS, err)
	}
	if !visible {
		return false, nil
	}

	if err := el.Timeout(timeout).Click(proto.InputMouseButtonLeft, 1); err != nil {
		return false, fmt.Errorf("click %s: %w", sel.CSS, err)
	}
	return true, nil
}

// WaitFor waits up to timeout for selector to match.
func (s *Session) WaitFor(ctx context.Context, selector string, timeout time.Duration) error {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := s.page.Context(waitCtx).Element(selector); err != nil {
		return fmt.Errorf("wait for %q: %w", selector, err)
	}
	return nil
}

// HTML returns the rendered DOM.
func (s *Session) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// URL returns the page's current URL.
func (s *Session) URL(ctx context.Context) string {
	info, err := s.page.Context(ctx).Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close closes the page and disposes the incognito context. It is safe to
// call more than once and does not depend on the fetch context.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if s.router != nil {
			_ = s.router.Stop()
		}
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				slog.Debug("page close failed", "error", err)
			}
		}
		if err := s.incognito.Close(); err != nil {
			slog.Warn("browser context dispose failed", "error", err)
		}
		s.release()
	})
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
