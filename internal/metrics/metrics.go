// Package metrics exposes Prometheus instrumentation for the wiki.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the wiki's collectors on a dedicated registry.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	EditsTotal      *prometheus.CounterVec
	ParseDuration   prometheus.Histogram
	ParseErrors     prometheus.Counter
	CronRunsTotal   *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ottmwiki_http_requests_total",
			Help: "HTTP requests served, by route and status class.",
		}, []string{"route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ottmwiki_http_request_duration_seconds",
			Help:    "HTTP request latency, by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		EditsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ottmwiki_edits_total",
			Help: "Page edits, by outcome.",
		}, []string{"outcome"}),
		ParseDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ottmwiki_parse_duration_seconds",
			Help:    "Wikicode parse latency.",
			Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
		}),
		ParseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ottmwiki_parse_errors_total",
			Help: "Parses that produced at least one inline error marker.",
		}),
		CronRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ottmwiki_cron_runs_total",
			Help: "Background job executions, by job and outcome.",
		}, []string{"job", "outcome"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestsTotal,
		m.RequestDuration,
		m.EditsTotal,
		m.ParseDuration,
		m.ParseErrors,
		m.CronRunsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(route string, status int, elapsed time.Duration) {
	class := "2xx"
	switch {
	case status >= 500:
		class = "5xx"
	case status >= 400:
		class = "4xx"
	case status >= 300:
		class = "3xx"
	}
	m.RequestsTotal.WithLabelValues(route, class).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveParse records one parse run.
func (m *Metrics) ObserveParse(elapsed time.Duration, hadError bool) {
	m.ParseDuration.Observe(elapsed.Seconds())
	if hadError {
		m.ParseErrors.Inc()
	}
}
