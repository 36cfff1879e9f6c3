package engine

import (
	"bufio"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	tls "github.com/refraction-networking/utls"
	"github.com/use-agent/authscout/config"
	"github.com/use-agent/authscout/models"
	"golang.org/x/net/html"
)

// maxBody caps how much of a response body is read.
const maxBody = 10 << 20

// acceptedStatus lists the final status codes treated as a successful fetch.
var acceptedStatus = map[int]struct{}{
	http.StatusOK:                {},
	http.StatusMovedPermanently:  {},
	http.StatusFound:             {},
	http.StatusSeeOther:          {},
	http.StatusTemporaryRedirect: {},
	http.StatusPermanentRedirect: {},
}

// HTTPEngine is the static fetcher: one GET with a browser-like header set,
// no JavaScript.
type HTTPEngine struct {
	client    *http.Client
	timeout   time.Duration
	userAgent string
}

// chromeH1Spec is a Chrome-like TLS ClientHello with ALPN forced to http/1.1
// only. Computed once at init time and reused for every connection.
var chromeH1Spec tls.ClientHelloSpec

func init() {
	spec, err := tls.UTLSIdToSpec(tls.HelloChrome_Auto)
	if err != nil {
		return
	}
	// Go's http.Transport cannot speak h2 over a utls connection.
	for i, ext := range spec.Extensions {
		if alpn, ok := ext.(*tls.ALPNExtension); ok {
			alpn.AlpnProtocols = []string{"http/1.1"}
			spec.Extensions[i] = alpn
			break
		}
	}
	chromeH1Spec = spec
}

// NewHTTPEngine creates the static fetcher. With cfg.TLSFingerprint the
// TLS handshake mimics Chrome; otherwise the standard Go TLS stack is used.
func NewHTTPEngine(cfg config.FetchConfig) *HTTPEngine {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 4,
		IdleConnTimeout:     90 * time.Second,
	}
	if cfg.Proxy != "" {
		if proxyURL, err := url.Parse(cfg.Proxy); err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	if cfg.TLSFingerprint {
		transport.DialTLSContext = dialTLSChrome
		transport.ForceAttemptHTTP2 = false
	}

	timeout := cfg.StaticTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ua := cfg.UserAgent
	if ua == "" {
		ua = config.DefaultUserAgent
	}

	return &HTTPEngine{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("too many redirects")
				}
				return nil
			},
		},
		timeout:   timeout,
		userAgent: ua,
	}
}

// dialTLSChrome establishes a TLS connection using the Chrome h1 ClientHello.
func dialTLSChrome(ctx context.Context, network, addr string) (net.Conn, error) {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	host, _, _ := net.SplitHostPort(addr)
	tlsConn := tls.UClient(conn, &tls.Config{ServerName: host}, tls.HelloCustom)
	if err := tlsConn.ApplyPreset(&chromeH1Spec); err != nil {
		conn.Close()
		return nil, fmt.Errorf("http_engine: apply tls spec: %w", err)
	}
	if err := tlsConn.HandshakeContext(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	return tlsConn, nil
}

func (e *HTTPEngine) Name() string { return string(MethodStatic) }

// Fetch performs a single GET. It always returns a non-nil outcome; the
// error is non-nil whenever Status is not OK.
func (e *HTTPEngine) Fetch(ctx context.Context, req *FetchRequest) (*FetchOutcome, error) {
	start := time.Now()
	outcome := &FetchOutcome{Method: MethodStatic, FinalURL: req.URL}

	timeout := req.Timeout
	if timeout <= 0 {
		timeout = e.timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		outcome.Status = StatusError
		return outcome, models.NewScrapeError(models.ErrCodeTransportError, "invalid request", err)
	}
	e.setBrowserHeaders(httpReq)
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := e.client.Do(httpReq)
	if err != nil {
		outcome.Elapsed = time.Since(start)
		return classifyTransportError(outcome, err)
	}
	defer resp.Body.Close()

	outcome.StatusCode = resp.StatusCode
	outcome.FinalURL = resp.Request.URL.String()

	body, err := readBody(resp)
	outcome.Elapsed = time.Since(start)
	if err != nil {
		return classifyTransportError(outcome, err)
	}
	outcome.HTML = body

	if _, ok := acceptedStatus[resp.StatusCode]; !ok {
		outcome.Status = StatusError
		return outcome, models.NewScrapeError(
			models.ErrCodeTransportError,
			fmt.Sprintf("HTTP %d", resp.StatusCode),
			nil,
		)
	}

	outcome.Status = StatusOK
	return outcome, nil
}

// setBrowserHeaders applies the header set of a desktop Chrome navigation.
func (e *HTTPEngine) setBrowserHeaders(r *http.Request) {
	h := r.Header
	h.Set("User-Agent", e.userAgent)
	h.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	h.Set("Accept-Language", "en-US,en;q=0.9")
	h.Set("Accept-Encoding", "gzip, deflate, br")
	h.Set("DNT", "1")
	h.Set("Connection", "keep-alive")
	h.Set("Upgrade-Insecure-Requests", "1")
	h.Set("Sec-Fetch-Dest", "document")
	h.Set("Sec-Fetch-Mode", "navigate")
	h.Set("Sec-Fetch-Site", "none")
	h.Set("Sec-Fetch-User", "?1")
	h.Set("Cache-Control", "max-age=0")
}

// readBody decodes the body according to Content-Encoding. Setting
// Accept-Encoding by hand disables net/http's transparent gzip, so every
// advertised encoding is handled here.
func readBody(resp *http.Response) (string, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("http_engine: gzip: %w", err)
		}
		defer gz.Close()
		r = gz
	case "deflate":
		// Servers disagree on zlib-wrapped vs raw deflate.
		br := bufio.NewReader(resp.Body)
		if hdr, err := br.Peek(2); err == nil && isZlibHeader(hdr) {
			zr, err := zlib.NewReader(br)
			if err != nil {
				return "", fmt.Errorf("http_engine: deflate: %w", err)
			}
			defer zr.Close()
			r = zr
		} else {
			r = flate.NewReader(br)
		}
	case "br":
		r = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(r, maxBody))
	if err != nil {
		return "", fmt.Errorf("http_engine: read body: %w", err)
	}
	return string(body), nil
}

// isZlibHeader checks the RFC 1950 CMF/FLG pair.
func isZlibHeader(b []byte) bool {
	return b[0]&0x0f == 8 && (uint16(b[0])<<8|uint16(b[1]))%31 == 0
}

// classifyTransportError fills in the status class of a failed fetch.
func classifyTransportError(outcome *FetchOutcome, err error) (*FetchOutcome, error) {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		outcome.Status = StatusTimeout
		return outcome, models.NewScrapeError(models.ErrCodeTransportTimeout, models.MsgTimeout, err)
	}
	outcome.Status = StatusError
	return outcome, models.NewScrapeError(models.ErrCodeTransportError, "request failed", err)
}

// ExtractTitle uses the Go HTML tokenizer to find the first <title> element.
func ExtractTitle(htmlStr string) string {
	tokenizer := html.NewTokenizer(strings.NewReader(htmlStr))
	inTitle := false
	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return ""
		case html.StartTagToken:
			tn, _ := tokenizer.TagName()
			if string(tn) == "title" {
				inTitle = true
			}
		case html.TextToken:
			if inTitle {
				return strings.TrimSpace(string(tokenizer.Text()))
			}
		case html.EndTagToken:
			if inTitle {
				return ""
			}
		}
	}
}
