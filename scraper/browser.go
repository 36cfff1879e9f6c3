package scraper

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/authscout/config"
	"github.com/use-agent/authscout/engine"
	"github.com/use-agent/authscout/metrics"
	"github.com/use-agent/authscout/models"
)

var errBrowserClosed = errors.New("browser closed")

// Browser owns the single headless Chrome shared by all rendered fetches.
// Chrome is launched on first use (or by Start) and killed by Close. Every
// fetch runs in its own incognito context. Browser is safe for concurrent
// use.
type Browser struct {
	cfg     config.BrowserConfig
	navCfg  config.NavigationConfig
	nav     *navigator
	metrics *metrics.Metrics
	blocked map[proto.NetworkResourceType]struct{}

	mu      sync.Mutex
	browser *rod.Browser
	closed  bool

	slots  chan struct{}
	active atomic.Int32
}

// NewBrowser prepares the shared browser without launching it.
func NewBrowser(cfg config.BrowserConfig, navCfg config.NavigationConfig, m *metrics.Metrics) *Browser {
	maxContexts := cfg.MaxContexts
	if maxContexts <= 0 {
		maxContexts = 1
	}
	return &Browser{
		cfg:     cfg,
		navCfg:  navCfg,
		nav:     newNavigator(navCfg),
		metrics: m,
		blocked: blockedSet(cfg.BlockedResourceTypes),
		slots:   make(chan struct{}, maxContexts),
	}
}

// Start launches Chrome now instead of on the first rendered fetch.
func (b *Browser) Start() error {
	_, err := b.connection()
	return err
}

// connection returns the running browser, launching it if needed.
func (b *Browser) connection() (*rod.Browser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errBrowserClosed
	}
	if b.browser != nil {
		return b.browser, nil
	}

	l := launcher.New().
		Headless(b.cfg.Headless).
		NoSandbox(b.cfg.NoSandbox)
	if b.cfg.BrowserBin != "" {
		l = l.Bin(b.cfg.BrowserBin)
	}
	if b.cfg.Proxy != "" {
		l = l.Proxy(b.cfg.Proxy)
	}

	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("no-first-run"))
	l.Set(flags.Flag("lang"), b.cfg.Locale)
	if b.cfg.Stealth {
		l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
		l.Delete(flags.Flag("enable-automation"))
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeRenderUnavailable, "failed to launch browser", err)
	}
	slog.Info("browser launched", "controlURL", controlURL, "maxContexts", cap(b.slots))

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, models.NewScrapeError(models.ErrCodeRenderUnavailable, "failed to connect to browser", err)
	}
	b.browser = browser
	return browser, nil
}

// Fetch renders req.URL through the navigation heuristic. It satisfies
// engine.RodFetchFunc.
func (b *Browser) Fetch(ctx context.Context, req *engine.FetchRequest) (string, string, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = b.navCfg.RenderTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	s, err := b.acquire(ctx, req.Headers)
	if err != nil {
		slog.Warn("rendered fetch unavailable", "url", req.URL, "error", err)
		return "", "", err
	}
	defer s.Close()

	return b.nav.Run(ctx, s, req.URL)
}

// acquire opens a fresh incognito context with one configured page. The
// caller must Close the session.
func (b *Browser) acquire(ctx context.Context, headers map[string]string) (*Session, error) {
	select {
	case b.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release := func() { <-b.slots }

	rb, err := b.connection()
	if err != nil {
		release()
		return nil, err
	}

	incognito, err := rb.Incognito()
	if err != nil {
		release()
		return nil, models.NewScrapeError(models.ErrCodeRenderUnavailable, "failed to create browser context", err)
	}

	b.active.Add(1)
	b.metrics.ContextOpened()
	s := &Session{
		incognito: incognito,
		release: func() {
			b.active.Add(-1)
			b.metrics.ContextClosed()
			release()
		},
	}

	page, err := incognito.Page(proto.TargetCreateTarget{})
	if err != nil {
		s.Close()
		return nil, models.NewScrapeError(models.ErrCodeRenderUnavailable, "failed to open page", err)
	}
	s.page = page

	if err := s.configure(b.cfg, headers, b.blocked); err != nil {
		s.Close()
		return nil, models.NewScrapeError(models.ErrCodeRenderUnavailable, "failed to configure page", err)
	}
	return s, nil
}

// Stats returns a snapshot of the browser's state.
func (b *Browser) Stats() models.BrowserStats {
	b.mu.Lock()
	running := b.browser != nil
	b.mu.Unlock()

	return models.BrowserStats{
		Enabled:        b.cfg.Enabled,
		Running:        running,
		MaxContexts:    cap(b.slots),
		ActiveContexts: int(b.active.Load()),
	}
}

// Close kills Chrome. Later fetches fail with RENDER_UNAVAILABLE.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	if b.browser == nil {
		return
	}
	slog.Info("browser shutting down")
	if err := b.browser.Close(); err != nil {
		slog.Warn("browser close failed", "error", err)
	}
	b.browser = nil
	slog.Info("browser shutdown complete")
}
