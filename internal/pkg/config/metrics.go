package config

import (
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loadTimestamp = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "newsmap_config_load_timestamp_seconds",
		Help: "Unix timestamp of the last configuration load",
	}, []string{"component"})

	validationErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsmap_config_validation_errors_total",
		Help: "Total number of rejected configuration values",
	}, []string{"component", "field"})

	fallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "newsmap_config_fallbacks_total",
		Help: "Total number of configuration values replaced by their default",
	}, []string{"component", "field"})

	fallbackActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "newsmap_config_fallback_active",
		Help: "1 if the last configuration load fell back to a default, 0 otherwise",
	}, []string{"component"})
)

// ConfigMetrics records configuration loads for one component ("newsmap_api",
// "newsmap_scheduler"). Several instances may share a component name.
type ConfigMetrics struct {
	component string
	pending   atomic.Int32
}

func NewConfigMetrics(component string) *ConfigMetrics {
	return &ConfigMetrics{component: component}
}

// RecordLoadTimestamp marks a completed load. The fallback gauge reflects
// whether RecordFallback was called since the previous load.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	loadTimestamp.WithLabelValues(m.component).SetToCurrentTime()
	active := 0.0
	if m.pending.Swap(0) > 0 {
		active = 1
	}
	fallbackActive.WithLabelValues(m.component).Set(active)
}

func (m *ConfigMetrics) RecordValidationError(field string) {
	validationErrorsTotal.WithLabelValues(m.component, field).Inc()
}

func (m *ConfigMetrics) RecordFallback(field string) {
	fallbacksTotal.WithLabelValues(m.component, field).Inc()
	m.pending.Add(1)
}
