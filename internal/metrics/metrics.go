// Package metrics provides Prometheus metrics for the SVG cache service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "svgcache"

var (
	// RequestsTotal counts total requests by method, route, and status.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// RequestDuration measures request latency in seconds.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"method", "route"},
	)

	// CacheOperations counts store lookups.
	CacheOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_operations_total",
			Help:      "Total cache operations.",
		},
		[]string{"layer", "result"}, // layer: "memory" or "store", result: "hit" or "miss"
	)

	// GenerationsTotal counts generation attempts by outcome.
	GenerationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_total",
			Help:      "Total SVG generation attempts.",
		},
		[]string{"result"}, // "ok", "invalid_content", "upstream_error"
	)

	// GenerationDuration measures upstream generation latency.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_duration_seconds",
			Help:      "Upstream generation duration in seconds.",
			Buckets:   []float64{.25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"model"},
	)

	// SharedGenerations counts misses that shared one generation with a concurrent miss for the same key.
	SharedGenerations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "generations_shared_total",
			Help:      "Cache misses that shared an in-flight generation for the same key.",
		},
	)

	// ErrorsTotal counts errors by kind.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Total errors by kind.",
		},
		[]string{"kind"},
	)

	// ActiveGenerations tracks generate requests currently holding a limiter slot.
	ActiveGenerations = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_generations",
			Help:      "Current number of generate requests holding a worker slot.",
		},
	)

	// BreakerState reports the upstream circuit breaker state (0 closed, 1 half-open, 2 open).
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "upstream_breaker_state",
			Help:      "Upstream circuit breaker state.",
		},
		[]string{"name"},
	)
)
