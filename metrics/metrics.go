// Package metrics holds the Prometheus collectors of the service.
//
// All methods are safe on a nil *Metrics so callers that run without
// metrics (CLI, tests) need no special casing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	// Scrapes
	ScrapesTotal   *prometheus.CounterVec
	ScrapeDuration *prometheus.HistogramVec
	FormsFound     *prometheus.CounterVec
	Escalations    *prometheus.CounterVec

	// Fetches
	FetchesTotal  *prometheus.CounterVec
	FetchDuration *prometheus.HistogramVec

	// Browser
	ActiveContexts prometheus.Gauge

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates the collectors on a dedicated registry, together with the
// Go runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ScrapesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authscout_scrapes_total",
				Help: "Total number of scrapes by outcome",
			},
			[]string{"outcome", "method"},
		),
		ScrapeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authscout_scrape_duration_seconds",
				Help:    "End-to-end duration of a scrape",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			},
			[]string{"method"},
		),
		FormsFound: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authscout_forms_total",
				Help: "Successful scrapes split by whether a login form was found",
			},
			[]string{"found"},
		),
		Escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authscout_escalations_total",
				Help: "Static results escalated to the rendered fetch, by reason",
			},
			[]string{"reason"},
		),
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authscout_fetches_total",
				Help: "Fetch attempts by method and status class",
			},
			[]string{"method", "status"},
		),
		FetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authscout_fetch_duration_seconds",
				Help:    "Duration of a single fetch attempt",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
			},
			[]string{"method"},
		),
		ActiveContexts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "authscout_browser_active_contexts",
				Help: "Incognito browser contexts currently open",
			},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "authscout_http_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "authscout_http_request_duration_seconds",
				Help:    "Duration of API requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveScrape records a finished scrape.
func (m *Metrics) ObserveScrape(success, found bool, method string, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
		m.FormsFound.WithLabelValues(boolLabel(found)).Inc()
	}
	if method == "" {
		method = "none"
	}
	m.ScrapesTotal.WithLabelValues(outcome, method).Inc()
	m.ScrapeDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveFetch records one fetch attempt.
func (m *Metrics) ObserveFetch(method, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(method, status).Inc()
	m.FetchDuration.WithLabelValues(method).Observe(d.Seconds())
}

// ObserveEscalation records why a static result was not trusted.
func (m *Metrics) ObserveEscalation(reason string) {
	if m == nil {
		return
	}
	m.Escalations.WithLabelValues(reason).Inc()
}

// ContextOpened and ContextClosed track browser contexts.
func (m *Metrics) ContextOpened() {
	if m != nil {
		m.ActiveContexts.Inc()
	}
}

func (m *Metrics) ContextClosed() {
	if m != nil {
		m.ActiveContexts.Dec()
	}
}

// ObserveHTTP records one API request.
func (m *Metrics) ObserveHTTP(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path, status).Observe(d.Seconds())
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
