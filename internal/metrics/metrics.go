// Package metrics exposes Prometheus collectors for HTTP traffic, upstream
// calls and report normalization.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"go-radiology-reporter/internal/observer"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var breakerStates = []string{"closed", "half-open", "open"}

// Metrics owns a private registry so several instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	analysesTotal     *prometheus.CounterVec
	analysisDuration  prometheus.Histogram
	upstreamResponses *prometheus.CounterVec
	upstreamDuration  prometheus.Histogram
	schemaRecords     *prometheus.CounterVec
	impressionForms   *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
	rateLimited       prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		httpRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .05, .1, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),
		analysesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "report_analyses_total",
				Help: "Analyses by outcome (success or error type)",
			},
			[]string{"outcome"},
		),
		analysisDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "report_analysis_duration_seconds",
				Help:    "End-to-end duration of successful analyses",
				Buckets: []float64{1, 2.5, 5, 10, 20, 30, 60, 90, 120},
			},
		),
		upstreamResponses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "upstream_responses_total",
				Help: "Responses received from the analysis workflow by status code",
			},
			[]string{"status"},
		),
		upstreamDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upstream_request_duration_seconds",
				Help:    "Analysis workflow round-trip time",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 20, 30, 60, 90},
			},
		),
		schemaRecords: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normalizer_records_total",
				Help: "Normalized records by kind and schema generation",
			},
			[]string{"kind", "schema"},
		),
		impressionForms: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "normalizer_impression_forms_total",
				Help: "Impression sections by input form",
			},
			[]string{"form"},
		),
		breakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "upstream_circuit_breaker_state",
				Help: "1 for the current circuit breaker state, 0 otherwise",
			},
			[]string{"state"},
		),
		rateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Name: "http_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter",
			},
		),
	}
	m.SetBreakerState("closed")
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus metrics HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RequestStarted increments the in-flight gauge and returns the matching decrement.
func (m *Metrics) RequestStarted() func() {
	m.httpRequestsInFlight.Inc()
	return m.httpRequestsInFlight.Dec
}

// ObserveRequest records a finished HTTP request. path should be the route
// template, not the raw URL.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}

// RateLimited counts a rejected request.
func (m *Metrics) RateLimited() {
	m.rateLimited.Inc()
}

// SetBreakerState marks state as current.
func (m *Metrics) SetBreakerState(state string) {
	for _, s := range breakerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.breakerState.WithLabelValues(s).Set(v)
	}
}

// Observer returns an observer.Observer that feeds analysis events into m.
func (m *Metrics) Observer() observer.Observer {
	return &eventObserver{m: m}
}

type eventObserver struct {
	m *Metrics
}

func (o *eventObserver) GetObserverName() string {
	return "prometheus_observer"
}

func (o *eventObserver) OnEvent(_ context.Context, event observer.AnalysisEvent) {
	m := o.m
	switch event.EventType {
	case observer.UpstreamResponded:
		m.upstreamResponses.WithLabelValues(strconv.Itoa(event.UpstreamStatus)).Inc()
		m.upstreamDuration.Observe(event.ProcessingTime.Seconds())
	case observer.AnalysisCompleted:
		m.analysesTotal.WithLabelValues("success").Inc()
		m.analysisDuration.Observe(event.ProcessingTime.Seconds())
		if s := event.Schema; s != nil {
			m.schemaRecords.WithLabelValues("finding", "legacy").Add(float64(s.LegacyFindings))
			m.schemaRecords.WithLabelValues("finding", "current").Add(float64(s.CurrentFindings))
			m.schemaRecords.WithLabelValues("recommendation", "legacy").Add(float64(s.LegacyRecommendations))
			m.schemaRecords.WithLabelValues("recommendation", "current").Add(float64(s.CurrentRecommendations))
			m.impressionForms.WithLabelValues(string(s.Impression)).Inc()
		}
	case observer.AnalysisFailed:
		outcome := event.ErrorType
		if outcome == "" {
			outcome = "unknown"
		}
		m.analysesTotal.WithLabelValues(outcome).Inc()
	}
}
