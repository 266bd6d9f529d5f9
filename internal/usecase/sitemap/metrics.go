package sitemap

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the generation pipeline
var (
	// generationDuration tracks full pipeline runs (select, validate, build, cache)
	generationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitemap_generation_duration_seconds",
			Help:    "Sitemap generation duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
	)

	// generationTotal counts pipeline runs by outcome
	generationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_generation_total",
			Help: "Total number of sitemap generations",
		},
		[]string{"outcome"}, // outcome: success|upstream_error
	)

	// requestsTotal counts document reads by kind and cache result
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_document_requests_total",
			Help: "Total number of sitemap document reads",
		},
		[]string{"kind", "cache"}, // kind: page|index, cache: hit|miss
	)

	// eligibleItems is the size of the last generated corpus
	eligibleItems = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sitemap_eligible_items",
			Help: "Number of items in the most recently generated sitemap",
		},
	)

	// ineligibleItemsTotal counts selected items rejected by the validator
	ineligibleItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitemap_ineligible_items_total",
			Help: "Total number of selected items rejected during validation",
		},
	)

	// complianceViolationsTotal counts violations found in freshly built documents
	complianceViolationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitemap_compliance_violations_total",
			Help: "Total number of compliance violations in generated documents",
		},
		[]string{"kind"},
	)
)

// RecordGeneration records one pipeline run.
func RecordGeneration(outcome string, duration time.Duration) {
	generationTotal.WithLabelValues(outcome).Inc()
	generationDuration.Observe(duration.Seconds())
}

// RecordRequest records a document read.
func RecordRequest(kind string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	requestsTotal.WithLabelValues(kind, result).Inc()
}

// RecordCorpus records the eligible and rejected counts of a generation.
func RecordCorpus(eligible, rejected int) {
	eligibleItems.Set(float64(eligible))
	ineligibleItemsTotal.Add(float64(rejected))
}

// RecordViolations records compliance violations for a document kind.
func RecordViolations(kind string, count int) {
	complianceViolationsTotal.WithLabelValues(kind).Add(float64(count))
}
