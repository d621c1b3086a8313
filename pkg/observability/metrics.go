package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

//nolint:gochecknoglobals // Prometheus metrics must be global for registration
var (
	// RunsTotal tracks pipeline runs per stage and outcome
	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chimera_runs_total",
			Help: "Total number of pipeline runs",
		},
		[]string{"stage", "status"}, // stage: ingest, alignment, correlation; status: success, failed
	)

	// RunDuration measures run duration per stage in seconds
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chimera_run_duration_seconds",
			Help:    "Pipeline run duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~100s
		},
		[]string{"stage"},
	)

	// RunSkipsTotal counts non-fatal skips per stage. Normalization,
	// alignment and compute skips are counted, never fatal.
	RunSkipsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chimera_run_skips_total",
			Help: "Total number of non-fatal skips during pipeline runs",
		},
		[]string{"stage"},
	)

	// AlignmentEntitiesMerged tracks entities merged in the last alignment run
	AlignmentEntitiesMerged = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chimera_alignment_entities_merged",
			Help: "Entities merged into the aligned dataset in the last run",
		},
	)

	// AlignmentColumnsProduced tracks derived columns in the last alignment run
	AlignmentColumnsProduced = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chimera_alignment_columns_produced",
			Help: "Derived columns produced by the last alignment run",
		},
	)

	// CorrelationsFound tracks qualifying correlations in the last analysis run
	CorrelationsFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "chimera_correlations_found",
			Help: "Qualifying correlations found by the last analysis run",
		},
	)

	// IngestFetchesTotal counts upstream fetches per source and outcome
	IngestFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chimera_ingest_fetches_total",
			Help: "Total number of upstream dataset fetches",
		},
		[]string{"source", "status"},
	)

	// TasksEnqueued counts tasks enqueued per type and trigger
	TasksEnqueued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chimera_tasks_enqueued_total",
			Help: "Total number of tasks enqueued",
		},
		[]string{"type", "trigger"}, // trigger: schedule, manual
	)
)

// RecordRun records the outcome and duration of one pipeline run.
func RecordRun(stage, status string, seconds float64) {
	RunsTotal.WithLabelValues(stage, status).Inc()
	RunDuration.WithLabelValues(stage).Observe(seconds)
}
