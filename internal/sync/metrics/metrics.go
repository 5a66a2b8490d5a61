package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// JobRuns tracks job executions per job and outcome.
	JobRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsync_job_runs_total",
			Help: "Total number of job executions",
		},
		[]string{"job", "status"},
	)

	// JobDuration tracks end-to-end job duration.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsync_job_duration_seconds",
			Help:    "Job execution duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
		[]string{"job"},
	)

	// FetchDuration tracks the latency-sensitive source fetch stage.
	FetchDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsync_fetch_duration_seconds",
			Help:    "Source fetch and merge duration in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"job"},
	)

	// RowsSynced tracks the row count written per job in the last tick.
	RowsSynced = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetsync_rows_synced",
			Help: "Rows written to the destination in the last run",
		},
		[]string{"job"},
	)

	// RetryAttempts tracks backoff retries per operation.
	RetryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsync_retry_attempts_total",
			Help: "Total number of retry attempts",
		},
		[]string{"op"},
	)

	// PartnerRecords tracks enrichment records received per job.
	PartnerRecords = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sheetsync_partner_records",
			Help: "Enrichment records received in the last run",
		},
		[]string{"job"},
	)

	// TickDuration tracks the duration of a full scheduler iteration.
	TickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetsync_tick_duration_seconds",
			Help:    "Duration of one full scheduler iteration",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		},
	)
)
