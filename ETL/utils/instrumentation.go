package utils

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ministry",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Total number of ingest runs broken down by final status.",
	}, []string{"status"})

	ingestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "ministry",
		Subsystem: "ingest",
		Name:      "duration_seconds",
		Help:      "Wall time of ingest runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
	})

	ingestFacts = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ministry",
		Subsystem: "ingest",
		Name:      "facts_loaded",
		Help:      "Number of service facts written by the last successful ingest run.",
	})

	ingestSkippedRows = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "ministry",
		Subsystem: "ingest",
		Name:      "rows_skipped",
		Help:      "Rows dropped by the last ingest run because of an unparseable date.",
	})

	queryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ministry",
		Subsystem: "metrics",
		Name:      "query_failures_total",
		Help:      "Total number of failed dashboard queries broken down by query.",
	}, []string{"query"})
)

// RecordIngestRun records the outcome of one ingest run
func RecordIngestRun(status string, started time.Time, factsLoaded, rowsSkipped int) {
	ingestRuns.WithLabelValues(status).Inc()
	ingestDuration.Observe(time.Since(started).Seconds())
	if status == "success" {
		ingestFacts.Set(float64(factsLoaded))
		ingestSkippedRows.Set(float64(rowsSkipped))
	}
}

// RecordQueryFailure counts a failed read through the metrics facade
func RecordQueryFailure(query string) {
	queryFailures.WithLabelValues(query).Inc()
}
