package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Lookup results.
const (
	resultHit  = "hit"
	resultMiss = "miss"
)

// CacheMetrics holds the link cache collectors. They are shared by every
// cache of the process and labeled by backend.
type CacheMetrics struct {
	lookups   *prometheus.CounterVec
	evictions *prometheus.CounterVec
	entries   *prometheus.GaugeVec
	latency   *prometheus.HistogramVec
	failures  *prometheus.CounterVec
	breaker   *prometheus.CounterVec
}

var (
	cacheMetricsInstance *CacheMetrics
	cacheMetricsOnce     sync.Once
)

// GetCacheMetrics returns the process wide link cache metrics.
func GetCacheMetrics() *CacheMetrics {
	cacheMetricsOnce.Do(func() {
		cacheMetricsInstance = newCacheMetrics(prometheus.DefaultRegisterer)
	})
	return cacheMetricsInstance
}

// Init exports every backend and operation series before first use.
func (m *CacheMetrics) Init() {
	for _, backend := range []string{TypeMemory, TypeRedis} {
		m.lookups.WithLabelValues(backend, resultHit)
		m.lookups.WithLabelValues(backend, resultMiss)
		m.evictions.WithLabelValues(backend)
		m.entries.WithLabelValues(backend)
		for _, op := range []string{"get", "set", "delete", "exists"} {
			m.latency.WithLabelValues(backend, op)
			m.failures.WithLabelValues(backend, op)
		}
	}
}

func (m *CacheMetrics) recordLookup(backend string, hit bool) {
	result := resultMiss
	if hit {
		result = resultHit
	}
	m.lookups.WithLabelValues(backend, result).Inc()
}

func (m *CacheMetrics) recordEviction(backend string) {
	m.evictions.WithLabelValues(backend).Inc()
}

func (m *CacheMetrics) setEntries(backend string, n int) {
	m.entries.WithLabelValues(backend).Set(float64(n))
}

func (m *CacheMetrics) observe(backend, op string, start time.Time) {
	m.latency.WithLabelValues(backend, op).Observe(time.Since(start).Seconds())
}

func (m *CacheMetrics) recordFailure(backend, op string) {
	m.failures.WithLabelValues(backend, op).Inc()
}

func (m *CacheMetrics) recordBreakerTransition(from, to string) {
	m.breaker.WithLabelValues(from, to).Inc()
}

func newCacheMetrics(reg prometheus.Registerer) *CacheMetrics {
	factory := promauto.With(reg)
	opts := func(name, help string) prometheus.CounterOpts {
		return prometheus.CounterOpts{Namespace: "avaroute", Subsystem: "link_cache", Name: name, Help: help}
	}

	return &CacheMetrics{
		lookups: factory.NewCounterVec(
			opts("lookups_total", "Link cache lookups by result"),
			[]string{"backend", "result"},
		),
		evictions: factory.NewCounterVec(
			opts("evictions_total", "Links evicted from the memory cache to respect its size bound"),
			[]string{"backend"},
		),
		entries: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "avaroute",
				Subsystem: "link_cache",
				Name:      "entries",
				Help:      "Links held by the memory cache",
			},
			[]string{"backend"},
		),
		latency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "avaroute",
				Subsystem: "link_cache",
				Name:      "operation_duration_seconds",
				Help:      "Duration of link cache operations",
				Buckets:   []float64{.0001, .0005, .001, .005, .01, .025, .05, .1},
			},
			[]string{"backend", "operation"},
		),
		failures: factory.NewCounterVec(
			opts("failures_total", "Link cache operations that failed"),
			[]string{"backend", "operation"},
		),
		breaker: factory.NewCounterVec(
			opts("circuit_breaker_transitions_total", "Redis circuit breaker state changes"),
			[]string{"from", "to"},
		),
	}
}
