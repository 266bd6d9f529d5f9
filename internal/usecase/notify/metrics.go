package notify

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for notification monitoring
var (
	// pingAttemptsTotal tracks attempts per target and outcome
	pingAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_ping_attempts_total",
			Help: "Total number of notification attempts",
		},
		[]string{"target", "outcome"}, // outcome: success|failure|circuit_open
	)

	// pingDuration tracks target call duration
	pingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notify_ping_duration_seconds",
			Help:    "Notification target call duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"target"},
	)

	// burstsTotal tracks dispatched bursts per trigger
	burstsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notify_bursts_total",
			Help: "Total number of notification bursts",
		},
		[]string{"trigger"}, // trigger: event|deferred|sweep|manual|batch
	)

	// deferralsTotal tracks items queued behind the throttle
	deferralsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_deferrals_total",
			Help: "Total number of items deferred by the throttle",
		},
	)

	// sweepRetriesTotal tracks items re-evaluated by the retry sweep
	sweepRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "notify_sweep_retries_total",
			Help: "Total number of items retried by the sweep",
		},
	)

	deferredPending = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_deferred_pending",
			Help: "Number of items waiting in the deferred queue",
		},
	)

	lifetimePings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_lifetime_pings",
			Help: "Number of notification bursts since process start",
		},
	)

	targetsConfigured = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "notify_targets_configured",
			Help: "Number of enabled and configured notification targets",
		},
	)
)

// RecordAttempt records one target call.
//
// Parameters:
//   - target: The target ID
//   - outcome: success, failure or circuit_open
//   - duration: The time the call took
func RecordAttempt(target, outcome string, duration time.Duration) {
	pingAttemptsTotal.WithLabelValues(target, outcome).Inc()
	pingDuration.WithLabelValues(target).Observe(duration.Seconds())
}

// RecordBurst records a finished burst.
func RecordBurst(trigger string) {
	burstsTotal.WithLabelValues(trigger).Inc()
}

// RecordDeferral records an item newly queued behind the throttle.
func RecordDeferral() {
	deferralsTotal.Inc()
}

// RecordSweepRetry records one item re-evaluated by the sweep.
func RecordSweepRetry() {
	sweepRetriesTotal.Inc()
}

// SetPending sets the deferred queue length.
func SetPending(n int) {
	deferredPending.Set(float64(n))
}

// SetLifetimePings sets the lifetime burst count.
func SetLifetimePings(n int64) {
	lifetimePings.Set(float64(n))
}

// SetTargetsConfigured sets the number of targets a burst will call.
func SetTargetsConfigured(n int) {
	targetsConfigured.Set(float64(n))
}
