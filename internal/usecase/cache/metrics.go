package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	lookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_cache_lookups_total",
			Help: "Total number of cache lookups",
		},
		[]string{"backend", "result"}, // result: hit|miss
	)

	errorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_cache_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"backend", "op"},
	)

	probeFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_cache_probe_failures_total",
			Help: "Total number of failed cache backend probes",
		},
		[]string{"backend"},
	)

	// activeBackend is 1 for the backend currently in use
	activeBackend = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "sitemap_cache_active_backend",
			Help: "Active cache backend (1 = active)",
		},
		[]string{"backend"},
	)
)

// RecordLookup counts a hit or miss on backend.
func RecordLookup(backend string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	lookupsTotal.WithLabelValues(backend, result).Inc()
}

// RecordError counts a failed backend operation.
func RecordError(backend, op string) {
	errorsTotal.WithLabelValues(backend, op).Inc()
}

// RecordProbeFailure counts an unreachable backend during selection.
func RecordProbeFailure(backend string) {
	probeFailuresTotal.WithLabelValues(backend).Inc()
}

// SetActiveBackend marks backend as the one in use.
func SetActiveBackend(backend string) {
	activeBackend.Reset()
	activeBackend.WithLabelValues(backend).Set(1)
}
