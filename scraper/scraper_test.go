package scraper

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/use-agent/authscout/engine"
	"github.com/use-agent/authscout/models"
)

// fakeEngine returns canned outcomes per URL and counts calls.
type fakeEngine struct {
	method engine.SourceMethod
	pages  map[string]string
	err    error
	delay  time.Duration
	calls  atomic.Int32
}

func (f *fakeEngine) Name() string { return string(f.method) }

func (f *fakeEngine) Fetch(ctx context.Context, req *engine.FetchRequest) (*engine.FetchOutcome, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	out := &engine.FetchOutcome{Method: f.method, FinalURL: req.URL}
	if f.err != nil {
		out.Status = engine.StatusError
		return out, f.err
	}
	body, ok := f.pages[req.URL]
	if !ok {
		out.Status = engine.StatusError
		return out, models.NewScrapeError(models.ErrCodeTransportError, "HTTP 404", nil)
	}
	out.HTML = body
	out.Status = engine.StatusOK
	out.StatusCode = 200
	return out, nil
}

const filler = `<p>Welcome back. Use the account you registered with to continue to the dashboard.</p>`

func loginHTML(extra string) string {
	return `<html><head><title>Sign in</title></head><body>` + strings.Repeat(filler, 15) + `
<form method="post" action="/session">
  <input type="email" name="email">
  <input type="password" name="password">
  <button type="submit">Sign in</button>
</form>` + extra + `</body></html>`
}

func homeHTML() string {
	return `<html><body>` + strings.Repeat(filler, 20) + `<a href="/pricing">Pricing</a></body></html>`
}

func TestScrapeStaticOnly(t *testing.T) {
	static := &fakeEngine{method: engine.MethodStatic, pages: map[string]string{
		"https://x.com/login": loginHTML(""),
	}}
	rendered := &fakeEngine{method: engine.MethodRendered}

	res := New(static, rendered, nil).Scrape(context.Background(), "x.com/login")

	if !res.Success {
		t.Fatalf("Success = false: %s", res.Error)
	}
	if res.URL != "https://x.com/login" {
		t.Errorf("URL = %q, want the normalised URL", res.URL)
	}
	if res.FetchMethod != "static" {
		t.Errorf("FetchMethod = %q, want static", res.FetchMethod)
	}
	c := res.AuthComponent
	if c == nil || !c.Found || c.Method != "POST" || c.Action != "https://x.com/session" {
		t.Errorf("AuthComponent = %+v", c)
	}
	if n := rendered.calls.Load(); n != 0 {
		t.Errorf("rendered engine called %d times, want 0", n)
	}
}

func TestScrapeInvalidURL(t *testing.T) {
	static := &fakeEngine{method: engine.MethodStatic}
	rendered := &fakeEngine{method: engine.MethodRendered}

	res := New(static, rendered, nil).Scrape(context.Background(), "ftp://x.com")

	if res.Success || res.ErrorCode != models.ErrCodeInvalidURL || res.Error != models.MsgInvalidURL {
		t.Errorf("result = %+v", res)
	}
	if res.AuthComponent != nil {
		t.Error("failed result must not carry an AuthComponent")
	}
	if res.URL != "ftp://x.com" {
		t.Errorf("URL = %q, want the caller's input", res.URL)
	}
	if static.calls.Load()+rendered.calls.Load() != 0 {
		t.Error("invalid URL must not touch the network")
	}
}

func TestScrapeEscalatesWhenNoForm(t *testing.T) {
	static := &fakeEngine{method: engine.MethodStatic, pages: map[string]string{
		"https://x.com": homeHTML(),
	}}
	rendered := &fakeEngine{method: engine.MethodRendered, pages: map[string]string{
		"https://x.com": loginHTML(strings.Repeat(filler, 10)),
	}}

	res := New(static, rendered, nil).Scrape(context.Background(), "https://x.com")

	if !res.Success || res.FetchMethod != "rendered" {
		t.Fatalf("result = %+v", res)
	}
	if !res.AuthComponent.Found {
		t.Error("rendered DOM should yield a form")
	}
	if rendered.calls.Load() != 1 {
		t.Errorf("rendered calls = %d, want 1", rendered.calls.Load())
	}
}

func TestScrapeEscalatesOnStaticFailure(t *testing.T) {
	static := &fakeEngine{method: engine.MethodStatic, err: models.NewScrapeError(models.ErrCodeTransportTimeout, models.MsgTimeout, context.DeadlineExceeded)}
	rendered := &fakeEngine{method: engine.MethodRendered, pages: map[string]string{
		"https://x.com/login": loginHTML(""),
	}}

	res := New(static, rendered, nil).Scrape(context.Background(), "https://x.com/login")

	if !res.Success || res.FetchMethod != "rendered" || !res.AuthComponent.Found {
		t.Errorf("result = %+v", res)
	}
}

func TestScrapeKeepsStaticWhenRenderedWorse(t *testing.T) {
	blocked := loginHTML("<p>captcha</p>")
	static := &fakeEngine{method: engine.MethodStatic, pages: map[string]string{
		"https://x.com/login": blocked,
	}}
	rendered := &fakeEngine{method: engine.MethodRendered, pages: map[string]string{
		"https://x.com/login": `<html><body>` + strings.Repeat(filler, 7) + `</body></html>`,
	}}

	res := New(static, rendered, nil).Scrape(context.Background(), "https://x.com/login")

	if !res.Success || res.FetchMethod != "static" {
		t.Fatalf("result = %+v, want static", res)
	}
	if !res.AuthComponent.Found {
		t.Error("static form should be kept")
	}
}

func TestScrapeRenderedSupersedesStatic(t *testing.T) {
	static := &fakeEngine{method: engine.MethodStatic, pages: map[string]string{
		"https://x.com/login": loginHTML("<p>checking your browser by Cloudflare</p>"),
	}}
	rendered := &fakeEngine{method: engine.MethodRendered, pages: map[string]string{
		"https://x.com/login": `<html><body>` + strings.Repeat(filler, 7) + `<div>password reset link</div></body></html>`,
	}}

	res := New(static, rendered, nil).Scrape(context.Background(), "https://x.com/login")

	if res.FetchMethod != "rendered" {
		t.Fatalf("FetchMethod = %q, want rendered", res.FetchMethod)
	}
	if res.AuthComponent.Found {
		t.Error("rendered DOM has no password input")
	}
}

func TestScrapeDegradesToStatic(t *testing.T) {
	static := &fakeEngine{method: engine.MethodStatic, pages: map[string]string{
		"https://x.com": homeHTML(),
	}}

	tests := []struct {
		name     string
		rendered engine.Engine
	}{
		{"browser disabled", nil},
		{"browser failing", &fakeEngine{method: engine.MethodRendered, err: errors.New("no chrome")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := New(static, tt.rendered, nil).Scrape(context.Background(), "https://x.com")

			if !res.Success || res.FetchMethod != "static" {
				t.Fatalf("result = %+v", res)
			}
			if res.AuthComponent == nil || res.AuthComponent.Found {
				t.Errorf("AuthComponent = %+v, want found=false", res.AuthComponent)
			}
		})
	}
}

func TestScrapeShortStaticBodyIsKeptAsLastResort(t *testing.T) {
	short := `<form><input type="password"></form>`
	static := &fakeEngine{method: engine.MethodStatic, pages: map[string]string{
		"https://x.com/login": short,
	}}
	rendered := &fakeEngine{method: engine.MethodRendered, pages: map[string]string{
		"https://x.com/login": "<html></html>",
	}}

	res := New(static, rendered, nil).Scrape(context.Background(), "https://x.com/login")

	if !res.Success || res.FetchMethod != "static" || !res.AuthComponent.Found {
		t.Errorf("result = %+v", res)
	}
}

func TestScrapeBothMethodsFailed(t *testing.T) {
	static := &fakeEngine{method: engine.MethodStatic, err: errors.New("dns")}
	rendered := &fakeEngine{method: engine.MethodRendered, err: errors.New("no chrome")}

	res := New(static, rendered, nil).Scrape(context.Background(), "https://x.com")

	if res.Success || res.ErrorCode != models.ErrCodeBothMethodsFailed {
		t.Errorf("result = %+v", res)
	}
	if res.Error != models.MsgBothMethodsFailed {
		t.Errorf("Error = %q", res.Error)
	}
	if res.AuthComponent != nil {
		t.Error("failed result must not carry an AuthComponent")
	}
}

func TestScrapeBatchPreservesOrder(t *testing.T) {
	pages := make(map[string]string)
	var urls []string
	for i := 0; i < 8; i++ {
		u := fmt.Sprintf("https://site%d.com/login", i)
		pages[u] = loginHTML("")
		urls = append(urls, u)
	}
	urls = append(urls, "not a url at all")
	static := &fakeEngine{method: engine.MethodStatic, pages: pages, delay: 5 * time.Millisecond}

	results := New(static, nil, nil).ScrapeBatch(context.Background(), urls)

	if len(results) != len(urls) {
		t.Fatalf("len = %d, want %d", len(results), len(urls))
	}
	for i, r := range results {
		if r.URL != urls[i] {
			t.Errorf("results[%d].URL = %q, want %q", i, r.URL, urls[i])
		}
	}
	if results[len(results)-1].Success {
		t.Error("invalid URL in a batch must fail on its own")
	}
}

func TestPredefined(t *testing.T) {
	got := Predefined()
	if len(got) != 5 || got[0] != "https://github.com/login" {
		t.Fatalf("Predefined = %v", got)
	}
	got[0] = "mutated"
	if Predefined()[0] != "https://github.com/login" {
		t.Error("Predefined must return a copy")
	}
}
