package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Browser    BrowserConfig
	Fetch      FetchConfig
	Navigation NavigationConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	CORS       CORSConfig
	Batch      BatchConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string // default: "0.0.0.0"
	Port int    // default: 8000
	Mode string // "debug", "release", "test"; default: "release"
}

// BrowserConfig controls the shared headless browser.
type BrowserConfig struct {
	// Enabled toggles the rendered fetch. When false every scrape is
	// static-only.
	Enabled bool // default: true

	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxContexts bounds the number of concurrent incognito contexts.
	MaxContexts int // default: 10

	// Proxy is passed to the browser launcher.
	Proxy string

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// Stealth injects go-rod/stealth patches into every page.
	Stealth bool // default: false

	// ViewportWidth and ViewportHeight fix the page size.
	ViewportWidth  int // default: 1920
	ViewportHeight int // default: 1080

	// UserAgent is the spoofed browser user agent.
	UserAgent string

	// Locale is sent as Accept-Language and emulated in the page.
	Locale string // default: "en-US"

	// BlockedResourceTypes lists resource types to block.
	// default: ["Image", "Font", "Media"]
	BlockedResourceTypes []string
}

// FetchConfig controls the static HTTP fetch.
type FetchConfig struct {
	// StaticTimeout bounds the single static GET.
	StaticTimeout time.Duration // default: 15s

	// TLSFingerprint dials with a Chrome ClientHello (utls).
	TLSFingerprint bool // default: false

	// Proxy routes static fetches through an HTTP proxy.
	Proxy string

	// UserAgent is sent with every static request.
	UserAgent string
}

// NavigationConfig holds the timings of the rendered-fetch heuristic.
type NavigationConfig struct {
	// NavTimeout bounds each navigation of the heuristic.
	NavTimeout time.Duration // default: 15s

	// DirectNavTimeout bounds the direct navigation to the original URL.
	DirectNavTimeout time.Duration // default: 20s

	// SettleDelay follows origin visits and link clicks.
	SettleDelay time.Duration // default: 2s

	// RenderSettle follows the final navigation.
	RenderSettle time.Duration // default: 3s

	// FieldWait bounds the wait for credential inputs.
	FieldWait time.Duration // default: 8s

	// FieldSettle follows a successful field wait.
	FieldSettle time.Duration // default: 1s

	// ClickTimeout bounds a single login-link click.
	ClickTimeout time.Duration // default: 10s

	// RenderTimeout bounds the whole rendered fetch.
	RenderTimeout time.Duration // default: 150s
}

// AuthConfig controls API key authentication.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool // default: false

	// APIKeys is the list of valid API keys.
	APIKeys []string
}

// RateLimitConfig controls per-key ingress rate limiting.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 // default: 5

	// Burst is the maximum burst size per API key.
	Burst int // default: 10
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowOrigins []string // default: ["http://localhost:5173", "http://localhost:3000"]
}

// BatchConfig bounds batch requests.
type BatchConfig struct {
	// MaxURLs is the largest accepted batch.
	MaxURLs int // default: 100
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   // default: true
	Path    string // default: "/metrics"
}

// DefaultUserAgent is the desktop Chrome user agent sent by both fetchers.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	proxy := os.Getenv("AUTHSCOUT_PROXY")
	userAgent := envOr("AUTHSCOUT_USER_AGENT", DefaultUserAgent)

	return &Config{
		Server: ServerConfig{
			Host: envOr("AUTHSCOUT_HOST", "0.0.0.0"),
			Port: envIntOr("AUTHSCOUT_PORT", 8000),
			Mode: envOr("AUTHSCOUT_MODE", "release"),
		},
		Browser: BrowserConfig{
			Enabled:        envBoolOr("AUTHSCOUT_BROWSER_ENABLED", true),
			Headless:       envBoolOr("AUTHSCOUT_HEADLESS", true),
			MaxContexts:    envIntOr("AUTHSCOUT_MAX_CONTEXTS", 10),
			Proxy:          proxy,
			NoSandbox:      envBoolOr("AUTHSCOUT_NO_SANDBOX", false),
			BrowserBin:     os.Getenv("AUTHSCOUT_BROWSER_BIN"),
			Stealth:        envBoolOr("AUTHSCOUT_STEALTH", false),
			ViewportWidth:  envIntOr("AUTHSCOUT_VIEWPORT_WIDTH", 1920),
			ViewportHeight: envIntOr("AUTHSCOUT_VIEWPORT_HEIGHT", 1080),
			UserAgent:      userAgent,
			Locale:         envOr("AUTHSCOUT_LOCALE", "en-US"),
			BlockedResourceTypes: envSliceOr("AUTHSCOUT_BLOCKED_RESOURCES", []string{
				"Image", "Font", "Media",
			}),
		},
		Fetch: FetchConfig{
			StaticTimeout:  envDurationOr("AUTHSCOUT_STATIC_TIMEOUT", 15*time.Second),
			TLSFingerprint: envBoolOr("AUTHSCOUT_TLS_FINGERPRINT", false),
			Proxy:          proxy,
			UserAgent:      userAgent,
		},
		Navigation: DefaultNavigation(),
		Auth: AuthConfig{
			Enabled: envBoolOr("AUTHSCOUT_AUTH_ENABLED", false),
			APIKeys: envSliceOr("AUTHSCOUT_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("AUTHSCOUT_RATE_RPS", 5.0),
			Burst:             envIntOr("AUTHSCOUT_RATE_BURST", 10),
		},
		CORS: CORSConfig{
			AllowOrigins: envSliceOr("AUTHSCOUT_CORS_ORIGINS", []string{
				"http://localhost:5173", "http://localhost:3000",
			}),
		},
		Batch: BatchConfig{
			MaxURLs: envIntOr("AUTHSCOUT_BATCH_MAX_URLS", 100),
		},
		Log: LogConfig{
			Level:  envOr("AUTHSCOUT_LOG_LEVEL", "info"),
			Format: envOr("AUTHSCOUT_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: envBoolOr("AUTHSCOUT_METRICS_ENABLED", true),
			Path:    envOr("AUTHSCOUT_METRICS_PATH", "/metrics"),
		},
	}
}

// DefaultNavigation returns the navigation timings, honouring the
// AUTHSCOUT_NAV_* overrides.
func DefaultNavigation() NavigationConfig {
	return NavigationConfig{
		NavTimeout:       envDurationOr("AUTHSCOUT_NAV_TIMEOUT", 15*time.Second),
		DirectNavTimeout: envDurationOr("AUTHSCOUT_NAV_DIRECT_TIMEOUT", 20*time.Second),
		SettleDelay:      envDurationOr("AUTHSCOUT_NAV_SETTLE", 2*time.Second),
		RenderSettle:     envDurationOr("AUTHSCOUT_NAV_RENDER_SETTLE", 3*time.Second),
		FieldWait:        envDurationOr("AUTHSCOUT_NAV_FIELD_WAIT", 8*time.Second),
		FieldSettle:      envDurationOr("AUTHSCOUT_NAV_FIELD_SETTLE", 1*time.Second),
		ClickTimeout:     envDurationOr("AUTHSCOUT_NAV_CLICK_TIMEOUT", 10*time.Second),
		RenderTimeout:    envDurationOr("AUTHSCOUT_RENDER_TIMEOUT", 150*time.Second),
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
