package moodb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are registered on the default registry via promauto; embedding
// applications expose them through their own /metrics handler.
var (
	metricOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moodb_operations_total",
			Help: "Total number of table operations",
		},
		[]string{"table", "op", "status"},
	)

	metricFlushDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "moodb_flush_duration_seconds",
			Help: "Duration of full-table flushes in seconds",
			// Local filesystem writes: sub-millisecond on a warm cache up to
			// seconds on contended disks.
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"table"},
	)

	metricRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "moodb_records",
			Help: "Number of records currently held per table",
		},
		[]string{"table"},
	)
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// countOp records one operation outcome.
func countOp(table, op string, err error) {
	status := statusOK
	if err != nil {
		status = statusError
	}
	metricOps.WithLabelValues(table, op, status).Inc()
}
