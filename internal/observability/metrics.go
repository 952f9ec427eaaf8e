package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	rowsFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescan_rows_fetched_total",
			Help: "Total number of rows fetched from scanned tables.",
		},
	)
	batchesFetchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescan_batches_fetched_total",
			Help: "Total number of row batches fetched from scanned tables.",
		},
	)
	scanDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tablescan_scan_duration_seconds",
			Help:    "Wall time of a table scan by result status.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)
	sessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tablescan_sessions_total",
			Help: "Total number of sessions by outcome.",
		},
		[]string{"outcome"},
	)
	rowsWrittenTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tablescan_rows_written_total",
			Help: "Total number of rows written to text dumps.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		rowsFetchedTotal,
		batchesFetchedTotal,
		scanDurationSeconds,
		sessionsTotal,
		rowsWrittenTotal,
	)
}

func ObserveBatch(rows int) {
	batchesFetchedTotal.Inc()
	if rows > 0 {
		rowsFetchedTotal.Add(float64(rows))
	}
}

// ObserveScan records a finished scan; status is "completed", "cancelled" or "failed".
func ObserveScan(status string, elapsed time.Duration) {
	scanDurationSeconds.WithLabelValues(status).Observe(elapsed.Seconds())
}

func ObserveSession(outcome string) {
	sessionsTotal.WithLabelValues(outcome).Inc()
}

func ObserveRowsWritten(rows int) {
	if rows > 0 {
		rowsWrittenTotal.Add(float64(rows))
	}
}

// WriteTextfile dumps every registered metric in the textfile-collector format.
func WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}
