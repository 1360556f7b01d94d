// Package metrics exposes Prometheus collectors for the framework.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the framework's Prometheus collectors.
type Metrics struct {
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge
	ProxyErrorsTotal *prometheus.CounterVec
	UpstreamDuration prometheus.Histogram
}

var (
	instance *Metrics
	once     sync.Once
)

// Init initializes the singleton metrics instance against the given
// registry. A nil registry uses the default registerer. Must be called
// before Get; subsequent calls are no-ops.
func Init(registry *prometheus.Registry) {
	once.Do(func() {
		var registerer prometheus.Registerer
		if registry != nil {
			registerer = registry
		} else {
			registerer = prometheus.DefaultRegisterer
		}
		factory := promauto.With(registerer)
		instance = &Metrics{
			RequestsTotal: factory.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "vireo",
					Subsystem: "http",
					Name:      "requests_total",
					Help:      "Total number of dispatched requests",
				},
				[]string{"method", "status"},
			),
			RequestDuration: factory.NewHistogramVec(
				prometheus.HistogramOpts{
					Namespace: "vireo",
					Subsystem: "http",
					Name:      "request_duration_seconds",
					Help:      "Duration of request dispatch",
					Buckets: []float64{
						.001, .005, .01, .025, .05,
						.1, .25, .5, 1, 2.5, 5, 10,
					},
				},
				[]string{"method"},
			),
			RequestsInFlight: factory.NewGauge(
				prometheus.GaugeOpts{
					Namespace: "vireo",
					Subsystem: "http",
					Name:      "requests_in_flight",
					Help:      "Number of requests currently being dispatched",
				},
			),
			ProxyErrorsTotal: factory.NewCounterVec(
				prometheus.CounterOpts{
					Namespace: "vireo",
					Subsystem: "proxy",
					Name:      "errors_total",
					Help:      "Total number of proxy errors",
				},
				[]string{"error_type"},
			),
			UpstreamDuration: factory.NewHistogram(
				prometheus.HistogramOpts{
					Namespace: "vireo",
					Subsystem: "proxy",
					Name:      "upstream_duration_seconds",
					Help:      "Duration of upstream proxy requests",
					Buckets: []float64{
						.001, .005, .01, .025, .05,
						.1, .25, .5, 1, 2.5, 5, 10,
					},
				},
			),
		}
	})
}

// Get returns the singleton metrics instance, initializing it with the
// default registerer if needed.
func Get() *Metrics {
	Init(nil)
	return instance
}
