package postgres

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	queryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datacore_query_duration_seconds",
			Help:    "Duration of executed queries in seconds.",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"action", "pool"},
	)

	queryErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datacore_query_errors_total",
			Help: "Total number of failed queries.",
		},
		[]string{"action", "pool"},
	)

	poolOpenConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datacore_pool_open_connections",
			Help: "Open connections per pool.",
		},
		[]string{"pool"},
	)

	poolIdleConns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datacore_pool_idle_connections",
			Help: "Idle connections per pool.",
		},
		[]string{"pool"},
	)

	poolWaitCount = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datacore_pool_wait_count",
			Help: "Cumulative number of connection acquisitions that had to wait.",
		},
		[]string{"pool"},
	)

	poolHealthy = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datacore_pool_healthy",
			Help: "Whether the last health probe of the pool succeeded (1) or failed (0).",
		},
		[]string{"pool"},
	)
)
