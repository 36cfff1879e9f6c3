package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveScrape(t *testing.T) {
	m := New()
	m.ObserveScrape(true, true, "static", 200*time.Millisecond)
	m.ObserveScrape(true, false, "rendered", time.Second)
	m.ObserveScrape(false, false, "", time.Second)

	if got := testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("success", "static")); got != 1 {
		t.Errorf("success/static = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ScrapesTotal.WithLabelValues("failure", "none")); got != 1 {
		t.Errorf("failure/none = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.FormsFound.WithLabelValues("false")); got != 1 {
		t.Errorf("forms found=false = %v, want 1", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveScrape(true, true, "static", time.Second)
	m.ObserveFetch("static", "OK", time.Second)
	m.ObserveEscalation("captcha")
	m.ContextOpened()
	m.ContextClosed()
	m.ObserveHTTP("GET", "/api/health", "200", time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 404 {
		t.Errorf("nil handler status = %d, want 404", rec.Code)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveFetch("static", "OK", 50*time.Millisecond)
	m.ObserveEscalation("short_body")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	for _, want := range []string{
		`authscout_fetches_total{method="static",status="OK"} 1`,
		`authscout_escalations_total{reason="short_body"} 1`,
		"go_goroutines",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
