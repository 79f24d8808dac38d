// Package metrics exports widget runtime telemetry in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter owns the widget's metric instruments and their registry.
type Exporter struct {
	registry *prometheus.Registry

	// API client metrics
	apiRequests *prometheus.CounterVec
	apiRetries  *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec

	// Chat metrics
	messages *prometheus.CounterVec

	// Recovery poller metrics
	recoveryPolls *prometheus.CounterVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.apiRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reva",
			Subsystem: "widget",
			Name:      "api_requests_total",
			Help:      "Total number of API requests by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	e.apiRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reva",
			Subsystem: "widget",
			Name:      "api_retries_total",
			Help:      "Total number of API retry attempts",
		},
		[]string{"operation"},
	)

	e.apiLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "reva",
			Subsystem: "widget",
			Name:      "api_latency_seconds",
			Help:      "API request latency in seconds, retries included",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	e.messages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reva",
			Subsystem: "widget",
			Name:      "messages_total",
			Help:      "Total number of chat messages by role",
		},
		[]string{"role"},
	)

	e.recoveryPolls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "reva",
			Subsystem: "widget",
			Name:      "recovery_polls_total",
			Help:      "Total number of recovery poll cycles by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(e.apiRequests, e.apiRetries, e.apiLatency, e.messages, e.recoveryPolls)
	return e
}

// ObserveRequest records one finished logical API request.
func (e *Exporter) ObserveRequest(operation, outcome string, duration time.Duration) {
	e.apiRequests.WithLabelValues(operation, outcome).Inc()
	e.apiLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// CountRetry records one retry attempt of an API operation.
func (e *Exporter) CountRetry(operation string) {
	e.apiRetries.WithLabelValues(operation).Inc()
}

// CountMessage records one chat message by role.
func (e *Exporter) CountMessage(role string) {
	e.messages.WithLabelValues(role).Inc()
}

// CountRecoveryPoll records one recovery poll cycle. Results: "shown",
// "hidden", "skipped", "error".
func (e *Exporter) CountRecoveryPoll(result string) {
	e.recoveryPolls.WithLabelValues(result).Inc()
}

// Handler returns the scrape handler for the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
