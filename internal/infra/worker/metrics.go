package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	jobRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_cron_job_runs_total",
			Help: "Cron job runs by job and status (success, failure, skipped)",
		},
		[]string{"job", "status"},
	)

	jobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worker_cron_job_duration_seconds",
			Help:    "Duration of cron job runs in seconds",
			Buckets: []float64{.01, .05, .1, .5, 1, 5, 30, 60, 300},
		},
		[]string{"job"},
	)

	jobLastSuccess = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_cron_job_last_success_timestamp",
			Help: "Unix timestamp of the last successful run per job",
		},
		[]string{"job"},
	)
)

// RecordJobRun counts one run and, unless it was skipped, its duration.
func RecordJobRun(job, status string, d time.Duration) {
	jobRunsTotal.WithLabelValues(job, status).Inc()
	if status == statusSkipped {
		return
	}
	jobDuration.WithLabelValues(job).Observe(d.Seconds())
	if status == statusSuccess {
		jobLastSuccess.WithLabelValues(job).SetToCurrentTime()
	}
}
