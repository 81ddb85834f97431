// Package gateway adapts the geocode and storesearch clients to the locator
// ports, guarding each upstream with a circuit breaker and recording metrics.
package gateway

import (
	"time"

	"github.com/sells-group/store-locator/internal/metrics"
	"github.com/sells-group/store-locator/internal/resilience"
)

// Upstream service names used for breakers and metric labels.
const (
	ServiceGeocode = "geocode"
	ServiceSearch  = "search"
)

// NewBreaker creates a circuit breaker for service whose state is mirrored in
// the circuit_state gauge.
func NewBreaker(service string, cfg resilience.BreakerConfig) *resilience.CircuitBreaker {
	next := cfg.OnStateChange
	cfg.OnStateChange = func(svc string, from, to resilience.CircuitState) {
		metrics.CircuitState.WithLabelValues(svc).Set(float64(to))
		if next != nil {
			next(svc, from, to)
		}
	}
	metrics.CircuitState.WithLabelValues(service).Set(float64(resilience.CircuitClosed))
	return resilience.NewCircuitBreaker(service, cfg)
}

func observe(service, result string, start time.Time) {
	metrics.UpstreamRequestsTotal.WithLabelValues(service, result).Inc()
	metrics.UpstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}
