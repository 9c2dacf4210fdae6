package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	InvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_invocations_total",
			Help: "Tier invocations by outcome",
		},
		[]string{"task", "tier", "provider", "outcome"},
	)

	InvocationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "model_router_invocation_latency_seconds",
			Help:    "Latency of single tier invocations in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"task", "tier", "provider"},
	)

	EscalationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_escalations_total",
			Help: "Escalations away from a failed tier",
		},
		[]string{"task", "from_tier"},
	)

	UnavailableAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_unavailable_attempts_total",
			Help: "Tier attempts made while the provider was reported unavailable",
		},
		[]string{"provider", "tier"},
	)

	ExhaustedChainsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_exhausted_chains_total",
			Help: "Call chains where every configured tier failed",
		},
		[]string{"task"},
	)

	ParseFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_parse_fallbacks_total",
			Help: "Structured outputs replaced by the caller fallback value",
		},
		[]string{"task", "model"},
	)

	ProviderAvailable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "model_router_provider_available",
			Help: "Last probe result per provider (1 available, 0 unavailable)",
		},
		[]string{"provider"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "model_router_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "model_router_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)
)

// Handler exposes the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// BoolValue converts availability into a gauge value
func BoolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
