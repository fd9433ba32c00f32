package resilience

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "mayorista"

// Upstream resilience collectors. They are usable before RegisterMetrics;
// registering only exposes them on /metrics.
var (
	// BreakerState is 0 closed, 1 open, 2 half-open.
	BreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace, Subsystem: "breaker", Name: "state",
		Help: "Circuit breaker state per upstream (0 closed, 1 open, 2 half-open).",
	}, []string{"target"})
	BreakerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "breaker", Name: "transitions_total",
		Help: "Circuit breaker state changes per upstream.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "breaker", Name: "opened_total",
		Help: "Times a circuit breaker opened per upstream.",
	}, []string{"target"})
	RetryAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace, Subsystem: "retry", Name: "attempts_total",
		Help: "Retried operations by name and outcome.",
	}, []string{"op", "outcome"})

	registerOnce sync.Once
)

// RegisterMetrics registers the collectors on reg, or the default registerer
// when nil. Only the first call has any effect.
func RegisterMetrics(reg prometheus.Registerer) {
	registerOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		for _, c := range []prometheus.Collector{BreakerState, BreakerTransitions, BreakerOpenedTotal, RetryAttempts} {
			var dup prometheus.AlreadyRegisteredError
			if err := reg.Register(c); err != nil && !errors.As(err, &dup) {
				panic(err)
			}
		}
	})
}
