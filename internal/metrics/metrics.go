// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the categorization pipeline.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the registry and collectors for one process.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	classifierCalls     *prometheus.CounterVec
	receiptMatches      *prometheus.CounterVec
	auditChainConflicts prometheus.Counter
}

// New creates a metrics bundle with its own registry.
func New(service string) *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerpilot",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ledgerpilot",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	classifierCalls := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerpilot",
			Subsystem: "classifier",
			Name:      "calls_total",
			Help:      "Classifier calls by mode and outcome.",
		},
		[]string{"service", "mode", "outcome"},
	)
	receiptMatches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ledgerpilot",
			Subsystem: "matcher",
			Name:      "receipt_matches_total",
			Help:      "Receipt match decisions by confidence tier.",
		},
		[]string{"service", "tier"},
	)
	auditChainConflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ledgerpilot",
			Subsystem: "audit",
			Name:      "chain_conflicts_total",
			Help:      "Audit chain append conflicts that triggered a retry.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		classifierCalls,
		receiptMatches,
		auditChainConflicts,
	)

	return &Metrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		classifierCalls:     classifierCalls,
		receiptMatches:      receiptMatches,
		auditChainConflicts: auditChainConflicts,
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records request counts and latency per route.
func (m *Metrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			r.URL.Path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordClassifierCall counts one classifier call.
func (m *Metrics) RecordClassifierCall(service, mode, outcome string) {
	m.classifierCalls.WithLabelValues(service, mode, outcome).Inc()
}

// RecordReceiptMatch counts one match decision by tier.
func (m *Metrics) RecordReceiptMatch(service, tier string) {
	m.receiptMatches.WithLabelValues(service, tier).Inc()
}

// RecordAuditConflict counts one chain append conflict.
func (m *Metrics) RecordAuditConflict() {
	m.auditChainConflicts.Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
