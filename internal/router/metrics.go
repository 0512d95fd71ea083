package router

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// routerMetrics contains Prometheus metrics for resolution, dispatch and
// link building.
type routerMetrics struct {
	resolutions      *prometheus.CounterVec
	dispatches       *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	hookInvocations  *prometheus.CounterVec
	signals          *prometheus.CounterVec
	links            *prometheus.CounterVec
	linkUnranked     prometheus.Counter
}

var (
	routerMetricsInstance *routerMetrics
	routerMetricsOnce     sync.Once
)

// getRouterMetrics returns the singleton router metrics instance.
func getRouterMetrics() *routerMetrics {
	routerMetricsOnce.Do(func() {
		routerMetricsInstance = &routerMetrics{
			resolutions: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaroute",
					Subsystem: "router",
					Name:      "resolutions_total",
					Help:      "Total number of route resolutions by result",
				},
				[]string{"result"},
			),
			dispatches: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaroute",
					Subsystem: "router",
					Name:      "dispatches_total",
					Help:      "Total number of dispatches by outcome",
				},
				[]string{"outcome"},
			),
			dispatchDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "avaroute",
					Subsystem: "router",
					Name:      "dispatch_duration_seconds",
					Help:      "Dispatch duration in seconds",
					Buckets:   prometheus.DefBuckets,
				},
				[]string{"outcome"},
			),
			hookInvocations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaroute",
					Subsystem: "router",
					Name:      "hook_invocations_total",
					Help:      "Total number of hook invocations by stage",
				},
				[]string{"stage"},
			),
			signals: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaroute",
					Subsystem: "router",
					Name:      "signals_total",
					Help:      "Total number of control signals consumed while serving",
				},
				[]string{"signal"},
			),
			links: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "avaroute",
					Subsystem: "router",
					Name:      "links_total",
					Help:      "Total number of link builds by result",
				},
				[]string{"result"},
			),
			linkUnranked: promauto.NewCounter(
				prometheus.CounterOpts{
					Namespace: "avaroute",
					Subsystem: "router",
					Name:      "link_ranking_unresolved_total",
					Help:      "Link candidates rejected although they improved on the selected route in some score",
				},
			),
		}
	})
	return routerMetricsInstance
}
