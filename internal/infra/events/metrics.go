package events

import (
	"newsmap/internal/usecase/notify"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// eventsTotal tracks processed events per change kind and notify outcome
	eventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "events_processed_total",
			Help: "Total number of content-change events processed",
		},
		[]string{"change", "outcome"}, // outcome is "none" when no notification ran
	)

	// eventsRejected tracks payloads that failed to decode
	eventsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "events_rejected_total",
			Help: "Total number of malformed content-change events",
		},
	)
)

// RecordEvent records a processed event.
func RecordEvent(change Change, outcome notify.Outcome) {
	label := string(outcome)
	if label == "" {
		label = "none"
	}
	eventsTotal.WithLabelValues(string(change), label).Inc()
}

// RecordRejected records a malformed event.
func RecordRejected() {
	eventsRejected.Inc()
}
