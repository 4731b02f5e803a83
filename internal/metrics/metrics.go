// Package metrics collects dispatch counters and latency histograms on
// a private Prometheus registry, exposed by the status server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

// Metrics holds the daemon's collectors.
type Metrics struct {
	registry        *prometheus.Registry
	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
}

// New creates a registry with the dispatch collectors registered.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.dispatchTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "verceld",
		Subsystem: "rpc",
		Name:      "dispatch_total",
		Help:      "Count of dispatched RPC methods",
	}, []string{"method", "outcome"})

	m.dispatchLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "verceld",
		Subsystem: "rpc",
		Name:      "dispatch_duration_seconds",
		Help:      "Latency distribution of dispatched RPC methods",
		Buckets:   latencyBuckets,
	}, []string{"method"})

	m.registry.MustRegister(m.dispatchTotal, m.dispatchLatency)
	return m
}

// ObserveDispatch records one dispatched call.
func (m *Metrics) ObserveDispatch(method, outcome string, duration time.Duration) {
	m.dispatchTotal.WithLabelValues(method, outcome).Inc()
	m.dispatchLatency.WithLabelValues(method).Observe(duration.Seconds())
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
