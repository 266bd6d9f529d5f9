package config

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConfigMetrics_FallbackGaugeFollowsLastLoad(t *testing.T) {
	// Arrange
	metrics := NewConfigMetrics("test_reload")

	// Act
	metrics.RecordFallback("max_urls")
	metrics.RecordFallback("max_urls")
	metrics.RecordValidationError("base_url")
	metrics.RecordLoadTimestamp()

	// Assert
	assert.Equal(t, 2.0, testutil.ToFloat64(fallbacksTotal.WithLabelValues("test_reload", "max_urls")))
	assert.Equal(t, 1.0, testutil.ToFloat64(validationErrorsTotal.WithLabelValues("test_reload", "base_url")))
	assert.Equal(t, 1.0, testutil.ToFloat64(fallbackActive.WithLabelValues("test_reload")))
	assert.Greater(t, testutil.ToFloat64(loadTimestamp.WithLabelValues("test_reload")), 0.0)

	metrics.RecordLoadTimestamp()
	assert.Equal(t, 0.0, testutil.ToFloat64(fallbackActive.WithLabelValues("test_reload")), "clean reload clears the gauge")
}

func TestConfigMetrics_SharedComponentName(t *testing.T) {
	first := NewConfigMetrics("test_shared")
	second := NewConfigMetrics("test_shared")

	first.RecordFallback("timezone")
	second.RecordFallback("timezone")

	assert.Equal(t, 2.0, testutil.ToFloat64(fallbacksTotal.WithLabelValues("test_shared", "timezone")))
}
