// Package slo publishes service level indicators derived from the daily
// analytics, so alerting can compare them with the objectives below.
package slo

import (
	"newsmap/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Objectives.
const (
	// PingSuccessSLO is the share of notification attempts that must succeed.
	PingSuccessSLO = 0.95

	// CacheHitSLO is the share of document reads that must be served from cache.
	CacheHitSLO = 0.90
)

var (
	// PingSuccessRatio is successful / total pings for the current day.
	PingSuccessRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_ping_success_ratio",
			Help: "Share of today's notification attempts that succeeded, target: 0.95",
		},
	)

	// CacheHitRatio is hits / (hits + misses) for the current day.
	CacheHitRatio = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "slo_cache_hit_ratio",
			Help: "Share of today's document reads served from cache, target: 0.90",
		},
	)
)

// Update sets the indicators from one day of analytics. A ratio without
// any observations is reported as 1 so idle days do not alert.
func Update(day entity.DailyStats) {
	PingSuccessRatio.Set(ratio(day.SuccessfulPings, day.TotalPings))
	CacheHitRatio.Set(ratio(day.CacheHits, day.CacheHits+day.CacheMisses))
}

func ratio(part, total int) float64 {
	if total <= 0 {
		return 1
	}
	return float64(part) / float64(total)
}
