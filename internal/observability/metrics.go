package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of an HTTP host.
type Metrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	activeRequests  prometheus.Gauge
	registry        *prometheus.Registry
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avaroute"
	}

	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by outcome",
		},
		[]string{"method", "outcome", "status"},
	)

	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets: []float64{
				.0005, .001, .005, .01, .025, .05,
				.1, .25, .5, 1, 2.5,
			},
		},
		[]string{"method", "outcome"},
	)

	m.activeRequests = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "active_requests",
			Help:      "Number of requests being served",
		},
	)

	m.registry.MustRegister(
		m.requestsTotal,
		m.requestDuration,
		m.activeRequests,
	)

	return m
}

// RecordRequest records a served request.
func (m *Metrics) RecordRequest(method, outcome string, status int, duration time.Duration) {
	m.requestsTotal.WithLabelValues(method, outcome, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, outcome).Observe(duration.Seconds())
}

// RequestStarted increments the active request gauge.
func (m *Metrics) RequestStarted() {
	m.activeRequests.Inc()
}

// RequestFinished decrements the active request gauge.
func (m *Metrics) RequestFinished() {
	m.activeRequests.Dec()
}

// Registry returns the host registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the host registry merged with the default registry, which
// carries the Go runtime and process collectors.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(
		prometheus.Gatherers{m.registry, prometheus.DefaultGatherer},
		promhttp.HandlerOpts{},
	)
}
