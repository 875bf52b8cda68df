// Package metrics provides Prometheus metrics for the attrition scoring service.
package metrics

import (
	"context"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the scoring service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	refreshInterval  time.Duration
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Scoring
	predictions      *prometheus.CounterVec
	predictionErrors *prometheus.CounterVec
	scoringLatency   prometheus.Histogram
	confidence       prometheus.Histogram
	modelInputWidth  prometheus.Gauge

	// Audit store
	auditAppends  prometheus.Counter
	auditErrors   *prometheus.CounterVec
	auditLatency  *prometheus.HistogramVec
	auditRecords  prometheus.Gauge
	auditReadRows prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "attrition",
		subsystem:        "scoring",
		histogramBuckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		refreshInterval:  defaultRefreshInterval,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of metric definitions
	auto := promauto.With(m.registry)

	m.predictions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "predictions_total",
		Help:        "Total number of scored requests by predicted label",
		ConstLabels: m.constLabels,
	}, []string{"label"})

	m.predictionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "prediction_errors_total",
		Help:        "Total number of failed scoring requests by failure kind",
		ConstLabels: m.constLabels,
	}, []string{"kind"})

	m.scoringLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "latency_milliseconds",
		Help:        "Encode plus classify latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.confidence = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "confidence",
		Help:        "Distribution of the winning class probability",
		Buckets:     []float64{0.5, 0.6, 0.7, 0.8, 0.9, 0.95, 0.99, 1},
		ConstLabels: m.constLabels,
	})

	m.modelInputWidth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "model_input_width",
		Help:        "Feature vector width expected by the loaded classifier (0 when none is loaded)",
		ConstLabels: m.constLabels,
	})

	m.auditAppends = auto.NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "audit",
		Name:        "appends_total",
		Help:        "Total number of records written to the audit store",
		ConstLabels: m.constLabels,
	})

	m.auditErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "audit",
		Name:        "errors_total",
		Help:        "Total number of audit store failures by operation",
		ConstLabels: m.constLabels,
	}, []string{"op"})

	m.auditLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "audit",
		Name:        "latency_milliseconds",
		Help:        "Audit store operation latency in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"op"})

	m.auditRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "audit",
		Name:        "records",
		Help:        "Number of records in the audit store at last count",
		ConstLabels: m.constLabels,
	})

	m.auditReadRows = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "audit",
		Name:        "history_rows",
		Help:        "Rows returned per history read",
		Buckets:     []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   "http",
		Name:        "errors_total",
		Help:        "Total number of HTTP error responses by endpoint, method and error kind",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "memory_bytes",
		Help:        "Heap bytes in use",
		ConstLabels: m.constLabels,
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "goroutines",
		Help:        "Number of goroutines",
		ConstLabels: m.constLabels,
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   "system",
		Name:        "gc_pause_milliseconds",
		Help:        "Most recent GC pause in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RecordPrediction counts one scored request and its confidence.
func (m *Manager) RecordPrediction(label string, confidence float64, latencyMs float64) {
	m.predictions.WithLabelValues(label).Inc()
	m.confidence.Observe(confidence)
	m.scoringLatency.Observe(latencyMs)
}

// RecordPredictionError counts a failed scoring request.
func (m *Manager) RecordPredictionError(kind string) {
	m.predictionErrors.WithLabelValues(kind).Inc()
}

// SetModelInputWidth records the loaded classifier's input width.
func (m *Manager) SetModelInputWidth(width int) {
	m.modelInputWidth.Set(float64(width))
}

// RecordAuditAppend counts a successful append.
func (m *Manager) RecordAuditAppend(latencyMs float64) {
	m.auditAppends.Inc()
	m.auditLatency.WithLabelValues("append").Observe(latencyMs)
}

// RecordAuditRead observes a history read.
func (m *Manager) RecordAuditRead(rows int, latencyMs float64) {
	m.auditReadRows.Observe(float64(rows))
	m.auditLatency.WithLabelValues("recent").Observe(latencyMs)
}

// RecordAuditError counts a failed audit operation.
func (m *Manager) RecordAuditError(op string) {
	m.auditErrors.WithLabelValues(op).Inc()
}

// SetAuditRecords sets the audit record gauge.
func (m *Manager) SetAuditRecords(n int64) {
	m.auditRecords.Set(float64(n))
}

// RecordHTTPRequest records one HTTP request and its duration.
func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordHTTPError records an error response.
func (m *Manager) RecordHTTPError(endpoint, method, errorType string) {
	m.httpErrors.WithLabelValues(endpoint, method, errorType).Inc()
}

// SampleRuntime reads Go runtime statistics into the system gauges.
func (m *Manager) SampleRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	m.systemMemoryUsage.Set(float64(ms.HeapAlloc))
	m.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
	if ms.NumGC > 0 {
		last := ms.PauseNs[(ms.NumGC+255)%256]
		m.systemGCPauseTime.Observe(float64(last) / float64(time.Millisecond))
	}
}

// RunRuntimeSampler samples runtime statistics every refresh interval until
// ctx is done.
func (m *Manager) RunRuntimeSampler(ctx context.Context) {
	ticker := time.NewTicker(m.refreshInterval)
	defer ticker.Stop()
	m.SampleRuntime()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.SampleRuntime()
		}
	}
}

// Package-level helpers record on the global manager.

// Default returns the global manager.
func Default() *Manager { return globalManager }

// RecordPrediction records on the global manager.
func RecordPrediction(label string, confidence, latencyMs float64) {
	globalManager.RecordPrediction(label, confidence, latencyMs)
}

// RecordPredictionError records on the global manager.
func RecordPredictionError(kind string) { globalManager.RecordPredictionError(kind) }

// SetModelInputWidth records on the global manager.
func SetModelInputWidth(width int) { globalManager.SetModelInputWidth(width) }

// RecordAuditAppend records on the global manager.
func RecordAuditAppend(latencyMs float64) { globalManager.RecordAuditAppend(latencyMs) }

// RecordAuditRead records on the global manager.
func RecordAuditRead(rows int, latencyMs float64) { globalManager.RecordAuditRead(rows, latencyMs) }

// RecordAuditError records on the global manager.
func RecordAuditError(op string) { globalManager.RecordAuditError(op) }

// SetAuditRecords records on the global manager.
func SetAuditRecords(n int64) { globalManager.SetAuditRecords(n) }

// RecordHTTPRequest records on the global manager.
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}

// RecordHTTPError records on the global manager.
func RecordHTTPError(endpoint, method, errorType string) {
	globalManager.RecordHTTPError(endpoint, method, errorType)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
