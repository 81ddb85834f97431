// Package metrics exposes Prometheus collectors for the store locator on a
// private registry.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "store_locator"

// Registry holds every store locator collector.
var Registry = prometheus.NewRegistry()

// AppInfo exposes the build version as a label (value is always 1).
var AppInfo = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "app_info",
		Help:      "Application version information (always set to 1, version info in labels)",
	},
	[]string{"version"},
)

// SearchesTotal counts settled searches by outcome.
var SearchesTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_total",
		Help:      "Total number of settled searches",
	},
	[]string{"outcome"}, // outcome: ready|empty|no_location_found|geocoding_unavailable|invalid_search_response|search_unavailable|unknown
)

// SupersededTotal counts invocations discarded because a newer one started.
var SupersededTotal = promauto.With(Registry).NewCounter(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "superseded_total",
		Help:      "Total number of search or geocode invocations discarded as stale",
	},
)

// UpstreamRequestsTotal counts calls to the geocoder and the store search
// service by result.
var UpstreamRequestsTotal = promauto.With(Registry).NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "upstream_requests_total",
		Help:      "Total number of upstream requests",
	},
	[]string{"service", "result"}, // service: geocode|search, result: ok|not_found|invalid|error|circuit_open
)

// UpstreamDuration records upstream latency in seconds.
var UpstreamDuration = promauto.With(Registry).NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "upstream_request_duration_seconds",
		Help:      "Upstream request latency in seconds",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	},
	[]string{"service"},
)

// CircuitState tracks breaker state per service (0=closed, 1=open, 2=half-open).
var CircuitState = promauto.With(Registry).NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "circuit_state",
		Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
	},
	[]string{"service"},
)

// ActiveSessions tracks the number of live HTTP sessions.
var ActiveSessions = promauto.With(Registry).NewGauge(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Current number of locator sessions held by the server",
	},
)

var initOnce sync.Once

// Init registers the runtime collectors and records the build version. Safe
// to call more than once.
func Init(version string) {
	initOnce.Do(func() {
		Registry.MustRegister(collectors.NewGoCollector())
		Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
	AppInfo.WithLabelValues(version).Set(1)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}
