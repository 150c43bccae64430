package auditlog

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	entriesLogged = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datacore_audit_entries_total",
			Help: "Total number of audit entries logged.",
		},
		[]string{"category"},
	)

	entriesFlushed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datacore_audit_entries_flushed_total",
			Help: "Total number of audit entries persisted.",
		},
	)

	flushFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "datacore_audit_flush_failures_total",
			Help: "Total number of failed flush attempts; failed batches are requeued.",
		},
	)

	bufferDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "datacore_audit_buffer_depth",
			Help: "Current number of audit entries waiting to be flushed.",
		},
	)
)
