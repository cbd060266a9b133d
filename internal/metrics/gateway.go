package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Gateway metrics
var (
	// GatewayRequestsTotal counts outbound API calls by domain, method, and outcome
	GatewayRequestsTotal = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_requests_total",
			Help:      "Total number of outbound API requests",
		},
		[]string{"domain", "method", "outcome"}, // outcome: success|no_session|unauthenticated|forbidden|not_found|server_error|network_error|rejected|malformed
	)

	// GatewayRequestDuration records outbound request latency in seconds
	GatewayRequestDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_request_duration_seconds",
			Help:      "Outbound API request latency in seconds",
			// Buckets: 5ms, 10ms, 25ms, 50ms, 100ms, 250ms, 500ms, 1s, 2.5s, 5s, 10s, 30s
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"domain", "method"},
	)

	// GatewayRequestsInFlight tracks requests that have been dispatched but not answered
	GatewayRequestsInFlight = promauto.With(Registry).NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "gateway_requests_in_flight",
			Help:      "Current number of outbound API requests awaiting a response",
		},
	)

	// CatalogStaleResultsTotal counts catalog responses discarded because a newer fetch superseded them
	CatalogStaleResultsTotal = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_stale_results_total",
			Help:      "Total number of catalog responses discarded as superseded",
		},
	)
)

// ObserveGatewayRequest records the outcome and latency of one gateway call.
func ObserveGatewayRequest(domain, method, outcome string, elapsed time.Duration) {
	GatewayRequestsTotal.WithLabelValues(domain, method, outcome).Inc()
	GatewayRequestDuration.WithLabelValues(domain, method).Observe(elapsed.Seconds())
}
