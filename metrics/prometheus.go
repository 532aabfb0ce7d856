package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements the Metrics interface using Prometheus.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	// Sample metrics
	samplesRecorded *prometheus.CounterVec
	samplesDropped  *prometheus.CounterVec
	lastValue       *prometheus.GaugeVec
	latency         prometheus.Histogram

	// Storage metrics
	storageErrors *prometheus.CounterVec
	queueDepth    prometheus.Gauge

	// Hook metrics
	hookRegistrations   *prometheus.CounterVec
	configurationErrors prometheus.Counter
}

// NewPrometheusMetrics creates a new PrometheusMetrics instance.
func NewPrometheusMetrics(namespace string) *PrometheusMetrics {
	registry := prometheus.NewRegistry()

	m := &PrometheusMetrics{
		registry: registry,

		// Sample metrics
		samplesRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_recorded_total",
				Help:      "Total number of telemetry samples persisted",
			},
			[]string{"metric"},
		),
		samplesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "samples_dropped_total",
				Help:      "Total number of telemetry samples dropped before persistence",
			},
			[]string{"metric", "reason"},
		),
		lastValue: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "sample_last_value",
				Help:      "Value of the latest persisted sample",
			},
			[]string{"metric", "contact"},
		),
		latency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_latency_seconds",
				Help:      "Round trip time of matched requests",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
		),

		// Storage metrics
		storageErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "storage_errors_total",
				Help:      "Total number of persistence errors",
			},
			[]string{"op"},
		),
		queueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "write_queue_depth",
				Help:      "Number of samples waiting for the persistence writer",
			},
		),

		// Hook metrics
		hookRegistrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "hook_registrations_total",
				Help:      "Total number of metric hooks subscribed to transports",
			},
			[]string{"metric", "event"},
		),
		configurationErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "configuration_errors_total",
				Help:      "Total number of transport opens rejected for invalid metric configuration",
			},
		),
	}

	m.registerMetrics()
	return m
}

func (m *PrometheusMetrics) registerMetrics() {
	m.registry.MustRegister(
		// Sample metrics
		m.samplesRecorded,
		m.samplesDropped,
		m.lastValue,
		m.latency,

		// Storage metrics
		m.storageErrors,
		m.queueDepth,

		// Hook metrics
		m.hookRegistrations,
		m.configurationErrors,
	)
}

// Sample metrics implementation

func (m *PrometheusMetrics) IncSamplesRecorded(metric string) {
	m.samplesRecorded.WithLabelValues(metric).Inc()
}

func (m *PrometheusMetrics) IncSamplesDropped(metric, reason string) {
	m.samplesDropped.WithLabelValues(metric, reason).Inc()
}

func (m *PrometheusMetrics) SetLastValue(metric, contact string, value float64) {
	m.lastValue.WithLabelValues(metric, contact).Set(value)
}

func (m *PrometheusMetrics) ObserveLatency(latency time.Duration) {
	m.latency.Observe(latency.Seconds())
}

// Storage metrics implementation

func (m *PrometheusMetrics) IncStorageErrors(op string) {
	m.storageErrors.WithLabelValues(op).Inc()
}

func (m *PrometheusMetrics) SetQueueDepth(depth int) {
	m.queueDepth.Set(float64(depth))
}

// Hook metrics implementation

func (m *PrometheusMetrics) IncHookRegistrations(metric, event string) {
	m.hookRegistrations.WithLabelValues(metric, event).Inc()
}

func (m *PrometheusMetrics) IncConfigurationErrors() {
	m.configurationErrors.Inc()
}

// Registry returns the underlying Prometheus registry.
func (m *PrometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// HTTPHandler returns an HTTP handler for serving metrics.
func (m *PrometheusMetrics) HTTPHandler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		Registry: m.registry,
	})
}

// Ensure PrometheusMetrics implements Metrics.
var _ Metrics = (*PrometheusMetrics)(nil)
