package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/use-agent/authscout/config"
	"github.com/use-agent/authscout/engine"
)

// fieldSelector matches anything a login form would ask a user to fill in.
const fieldSelector = `input[type="password"], input[type="email"], input[name*="email"], input[name*="user"], input[id*="email"]`

// LinkSelector locates a login link. Text, when set, is a JS regex the
// element's text must match.
type LinkSelector struct {
	CSS  string
	Text string
}

// loginLinkSelectors are tried in order on the origin page.
var loginLinkSelectors = []LinkSelector{
	{CSS: `a[href*="login"]`},
	{CSS: `a[href*="signin"]`},
	{CSS: `a[href*="sign-in"]`},
	{CSS: `a[href*="auth"]`},
	{CSS: "a", Text: "Sign in"},
	{CSS: "a", Text: "Sign In"},
	{CSS: "a", Text: "Login"},
	{CSS: "a", Text: "Log in"},
	{CSS: "a", Text: "Log In"},
	{CSS: "button", Text: "Sign in"},
	{CSS: "button", Text: "Login"},
}

// commonLoginPaths are probed on the origin when no link could be clicked.
var commonLoginPaths = []string{"/login", "/signin", "/sign-in", "/auth/login"}

var errNothingLoaded = errors.New("no navigation succeeded")

// tab is the slice of a browser page the navigation heuristic needs.
type tab interface {
	// Navigate loads url and waits for DOMContentLoaded within timeout.
	Navigate(ctx context.Context, url string, timeout time.Duration) error

	// Click clicks the first element matching sel if it is visible.
	// It reports false without error when nothing suitable is present.
	Click(ctx context.Context, sel LinkSelector, timeout time.Duration) (bool, error)

	// WaitFor blocks until selector matches or timeout elapses.
	WaitFor(ctx context.Context, selector string, timeout time.Duration) error

	// HTML returns the current rendered DOM.
	HTML(ctx context.Context) (string, error)

	// URL returns the current page URL, or "" when unknown.
	URL(ctx context.Context) string
}

// navigator drives a tab towards the login page of a site.
type navigator struct {
	cfg   config.NavigationConfig
	sleep func(ctx context.Context, d time.Duration) error
	log   *slog.Logger
}

func newNavigator(cfg config.NavigationConfig) *navigator {
	return &navigator{cfg: cfg, sleep: sleepCtx, log: slog.Default()}
}

// Run navigates t for target and returns the rendered DOM and final URL.
// Steps (first success wins):
//
//  1. Login URL: warm up on the site homepage when the site needs it,
//     otherwise go straight to target.
//  2. Other URL: visit the origin and click a login link.
//  3. Probe common login paths on the origin.
//  4. Navigate directly to target.
//
// Failures of individual steps are logged and fall through to the next
// tier. An error is returned only if nothing could be loaded at all.
func (n *navigator) Run(ctx context.Context, t tab, target string) (string, string, error) {
	site, _ := engine.LookupSiteURL(target)
	origin := originOf(target)
	log := n.log.With("url", target)

	loaded := false
	var err error
	if engine.IsLoginURL(target) {
		loaded, err = n.loginURL(ctx, t, target, site)
	} else {
		loaded, err = n.discover(ctx, t, target, origin, site)
	}
	if err != nil {
		log.Debug("navigation step failed", "error", err)
	}
	if !loaded {
		return "", "", fmt.Errorf("render %s: %w", target, errNothingLoaded)
	}

	// ── Settle and wait for credential inputs ──────────────────────
	if ctx.Err() != nil {
		log.Debug("render deadline reached, capturing current page")
		return n.capture(ctx, t, target)
	}
	if err := n.sleep(ctx, n.cfg.RenderSettle); err != nil {
		return n.capture(ctx, t, target)
	}
	if err := t.WaitFor(ctx, fieldSelector, n.cfg.FieldWait); err != nil {
		log.Debug("no credential inputs appeared", "error", err)
	} else {
		_ = n.sleep(ctx, n.cfg.FieldSettle)
	}
	return n.capture(ctx, t, target)
}

// loginURL handles targets that already look like a login page.
func (n *navigator) loginURL(ctx context.Context, t tab, target string, site engine.SiteStrategy) (bool, error) {
	if site.WarmupURL != "" {
		clicked, err := n.warmup(ctx, t, site)
		if clicked {
			return true, nil
		}
		if err != nil {
			n.log.Debug("warm-up failed", "url", target, "site", site.Domain, "error", err)
		}
	}
	return n.direct(ctx, t, target)
}

// warmup visits the site homepage so the session carries its cookies, then
// tries to reach the login page through a link.
func (n *navigator) warmup(ctx context.Context, t tab, site engine.SiteStrategy) (bool, error) {
	if err := t.Navigate(ctx, site.WarmupURL, n.cfg.NavTimeout); err != nil {
		return false, err
	}
	if err := n.sleep(ctx, n.cfg.SettleDelay); err != nil {
		return false, err
	}
	return n.clickLoginLink(ctx, t, site)
}

// discover handles targets that are not login URLs.
func (n *navigator) discover(ctx context.Context, t tab, target, origin string, site engine.SiteStrategy) (bool, error) {
	// ── 1. Origin ───────────────────────────────────────────────────
	if err := t.Navigate(ctx, origin, n.cfg.NavTimeout); err != nil {
		n.log.Debug("origin unreachable, navigating directly", "origin", origin, "error", err)
		return n.direct(ctx, t, target)
	}
	if err := n.sleep(ctx, n.cfg.SettleDelay); err != nil {
		return true, err
	}

	// ── 2. Login link ───────────────────────────────────────────────
	clicked, err := n.clickLoginLink(ctx, t, site)
	if clicked {
		return true, nil
	}
	if err != nil {
		n.log.Debug("login link not activated", "origin", origin, "error", err)
	}

	// ── 3. Common login paths ───────────────────────────────────────
	if ok := n.probePaths(ctx, t, origin); ok {
		return true, nil
	}

	// ── 4. Original URL ─────────────────────────────────────────────
	if ok, err := n.direct(ctx, t, target); ok {
		return true, nil
	} else if err != nil {
		n.log.Debug("direct navigation failed, keeping last page", "url", target, "error", err)
	}
	// The origin (or the last probed path) is still loaded.
	return true, nil
}

// clickLoginLink clicks the first visible login link: generic selectors
// first, then the site's own. A selector that errors is skipped.
func (n *navigator) clickLoginLink(ctx context.Context, t tab, site engine.SiteStrategy) (bool, error) {
	selectors := loginLinkSelectors
	if len(site.LinkSelectors) > 0 {
		selectors = make([]LinkSelector, 0, len(loginLinkSelectors)+len(site.LinkSelectors))
		selectors = append(selectors, loginLinkSelectors...)
		for _, css := range site.LinkSelectors {
			selectors = append(selectors, LinkSelector{CSS: css})
		}
	}

	var lastErr error
	for _, sel := range selectors {
		if ctx.Err() != nil {
			return false, ctx.Err()
		}
		clicked, err := t.Click(ctx, sel, n.cfg.ClickTimeout)
		if err != nil {
			lastErr = err
			continue
		}
		if clicked {
			n.log.Debug("clicked login link", "selector", sel.CSS, "text", sel.Text)
			_ = n.sleep(ctx, n.cfg.SettleDelay)
			return true, nil
		}
	}
	return false, lastErr
}

// probePaths tries the common login paths and keeps the first page that
// mentions a password or a login.
func (n *navigator) probePaths(ctx context.Context, t tab, origin string) bool {
	for _, path := range commonLoginPaths {
		if ctx.Err() != nil {
			return false
		}
		candidate := origin + path
		if err := t.Navigate(ctx, candidate, n.cfg.NavTimeout); err != nil {
			n.log.Debug("login path failed", "url", candidate, "error", err)
			continue
		}
		_ = n.sleep(ctx, n.cfg.SettleDelay)

		page, err := t.HTML(ctx)
		if err != nil {
			continue
		}
		lower := strings.ToLower(page)
		if strings.Contains(lower, "password") || strings.Contains(lower, "login") {
			n.log.Debug("found login page by path", "url", candidate)
			return true
		}
	}
	return false
}

func (n *navigator) direct(ctx context.Context, t tab, target string) (bool, error) {
	if err := t.Navigate(ctx, target, n.cfg.DirectNavTimeout); err != nil {
		return false, err
	}
	return true, nil
}

// captureGrace bounds the DOM read once the render deadline has passed.
const captureGrace = 5 * time.Second

// capture reads the current DOM. A page that already loaded is still read
// after ctx is done, on a short context detached from its cancellation.
func (n *navigator) capture(ctx context.Context, t tab, target string) (string, string, error) {
	if ctx.Err() != nil {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.WithoutCancel(ctx), captureGrace)
		defer cancel()
	}
	page, err := t.HTML(ctx)
	if err != nil {
		return "", "", fmt.Errorf("capture %s: %w", target, err)
	}
	final := t.URL(ctx)
	if final == "" {
		final = target
	}
	return page, final, nil
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
