// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evalgate/internal/auth"
)

// Collector records gate decisions and identity provider calls.
type Collector struct {
	decisions       *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalgate_gate_decisions_total",
			Help: "Request gate decisions by resolution path.",
		}, []string{"path"}),
		providerCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evalgate_provider_calls_total",
			Help: "Identity provider calls by operation and result.",
		}, []string{"operation", "result"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "evalgate_provider_latency_seconds",
			Help:    "Identity provider call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
	}

	reg.MustRegister(c.decisions, c.providerCalls, c.providerLatency)
	return c
}

// RecordDecision counts one gate decision.
func (c *Collector) RecordDecision(path string) {
	c.decisions.WithLabelValues(path).Inc()
}

// ObserveProviderCall implements auth.CallObserver.
func (c *Collector) ObserveProviderCall(operation string, reason auth.FailureReason, elapsed time.Duration) {
	result := "ok"
	if reason != "" {
		result = string(reason)
	}
	c.providerCalls.WithLabelValues(operation, result).Inc()
	c.providerLatency.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
