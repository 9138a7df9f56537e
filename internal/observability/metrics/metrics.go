package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes application-level instruments.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	submissions  *prometheus.CounterVec
	artifacts    prometheus.Counter
	ledgerWrites *prometheus.CounterVec
	wsClients    prometheus.Gauge
}

// New configures the metrics instruments on a dedicated registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashchain_http_requests_total",
			Help: "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "status_code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "crashchain_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashchain_submissions_total",
			Help: "Crash report submissions by outcome.",
		}, []string{"outcome"}),
		artifacts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "crashchain_artifacts_pinned_total",
			Help: "Artifacts pinned to the content-addressed backend.",
		}),
		ledgerWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "crashchain_ledger_writes_total",
			Help: "Ledger write attempts by outcome.",
		}, []string{"outcome"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "crashchain_ws_clients",
			Help: "Currently connected dashboard subscribers.",
		}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.submissions,
		m.artifacts,
		m.ledgerWrites,
		m.wsClients,
	)

	return m
}

// Registry returns the registry backing the /metrics endpoint.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if strings.TrimSpace(route) == "" {
			route = "unknown"
		}
		m.httpRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		m.httpDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

// RecordSubmission increments submission counts by outcome.
func (m *Metrics) RecordSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(strings.TrimSpace(outcome)).Inc()
}

// RecordArtifactPinned increments the pinned-artifact count.
func (m *Metrics) RecordArtifactPinned() {
	if m == nil {
		return
	}
	m.artifacts.Inc()
}

// RecordLedgerWrite increments ledger write counts by outcome.
func (m *Metrics) RecordLedgerWrite(outcome string) {
	if m == nil {
		return
	}
	m.ledgerWrites.WithLabelValues(strings.TrimSpace(outcome)).Inc()
}

// WSClientConnected tracks a subscriber connecting.
func (m *Metrics) WSClientConnected() {
	if m == nil {
		return
	}
	m.wsClients.Inc()
}

// WSClientDisconnected tracks a subscriber disconnecting.
func (m *Metrics) WSClientDisconnected() {
	if m == nil {
		return
	}
	m.wsClients.Dec()
}
