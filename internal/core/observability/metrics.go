// Package observability centralises the Prometheus metrics emitted
// across the tile pipeline: HTTP edge, store fan-out, and the
// metastore watcher's invalidation lag.
package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
		},
		[]string{"method", "route", "status"},
	)

	upstreamLatencySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_latency_seconds",
			Help:    "Latency of upstream calls in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
		},
		[]string{"upstream"},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_build_info",
			Help: "Build information for the binary.",
		},
		[]string{"version"},
	)

	cacheOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cache_op_duration_seconds",
			Help:    "Duration of store backend operations.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 10),
		},
		[]string{"op", "outcome"},
	)

	cacheResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_results_total",
			Help: "L1/backend lookups by outcome.",
		},
		[]string{"outcome"},
	)

	tilesAssembledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tiles_assembled_total",
			Help: "Tiles assembled by endpoint and result.",
		},
		[]string{"endpoint", "result"},
	)

	saltLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "salt_lookups_total",
			Help: "Per-salt-bucket store lookups issued during tile/point fan-out.",
		},
		[]string{"outcome"},
	)

	regressionCellsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "regression_cells_total",
			Help: "Cells folded into a regression surface across all requests.",
		},
	)

	invalidationLagSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "metastore_invalidation_lag_seconds",
			Help: "Age of the most recently applied metastore table-mapping update.",
		},
	)
)

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	st := strconv.Itoa(status)
	httpRequestsTotal.WithLabelValues(method, route, st).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route, st).Observe(durationSeconds)
}

func ObserveUpstreamLatency(upstream string, durationSeconds float64) {
	upstreamLatencySeconds.WithLabelValues(upstream).Observe(durationSeconds)
}

// ObserveCacheOp records the latency of a single backend call (get,
// mget, ping, ...) bucketed by whether it errored.
func ObserveCacheOp(op string, err error, durationSeconds float64) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	cacheOpDuration.WithLabelValues(op, outcome).Observe(durationSeconds)
}

func AddCacheHits(n int) {
	if n <= 0 {
		return
	}
	cacheResults.WithLabelValues("hit").Add(float64(n))
}

func AddCacheMisses(n int) {
	if n <= 0 {
		return
	}
	cacheResults.WithLabelValues("miss").Add(float64(n))
}

func IncTileAssembled(endpoint, result string) {
	tilesAssembledTotal.WithLabelValues(endpoint, result).Inc()
}

func AddSaltLookups(outcome string, n int) {
	if n <= 0 {
		return
	}
	saltLookupsTotal.WithLabelValues(outcome).Add(float64(n))
}

func AddRegressionCells(n int) {
	if n <= 0 {
		return
	}
	regressionCellsTotal.Add(float64(n))
}

func SetInvalidationLagSeconds(seconds float64) {
	invalidationLagSeconds.Set(seconds)
}

func ExposeBuildInfo(version string) {
	if version == "" {
		version = "dev"
	}
	buildInfo.WithLabelValues(version).Set(1)
}
