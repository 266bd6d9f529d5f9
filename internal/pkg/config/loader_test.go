package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadEnvString(t *testing.T) {
	t.Setenv("TEST_STRING", "custom_value")
	assert.Equal(t, "custom_value", LoadEnvString("TEST_STRING", "default_value"))

	t.Setenv("TEST_STRING", "")
	assert.Equal(t, "default_value", LoadEnvString("TEST_STRING", "default_value"))
}

func TestLoadEnvWithFallback(t *testing.T) {
	tests := []struct {
		name         string
		value        string
		wantValue    string
		wantFallback bool
	}{
		{name: "valid schedule", value: "@hourly", wantValue: "@hourly"},
		{name: "unset uses default", value: "", wantValue: "@every 15s"},
		{name: "invalid schedule falls back", value: "not a cron", wantValue: "@every 15s", wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Arrange
			t.Setenv("TEST_SCHEDULE", tt.value)

			// Act
			result := LoadEnvWithFallback("TEST_SCHEDULE", "@every 15s", ValidateCronSchedule)

			// Assert
			assert.Equal(t, tt.wantValue, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
			if tt.wantFallback {
				assert.Len(t, result.Warnings, 1)
				assert.Contains(t, result.Warnings[0], "TEST_SCHEDULE")
			} else {
				assert.Empty(t, result.Warnings)
			}
		})
	}
}

func TestLoadEnvDuration(t *testing.T) {
	t.Setenv("TEST_DURATION", "90s")
	result := LoadEnvDuration("TEST_DURATION", time.Minute, ValidatePositiveDuration)
	assert.Equal(t, 90*time.Second, result.Value)
	assert.False(t, result.FallbackApplied)

	t.Setenv("TEST_DURATION", "soon")
	result = LoadEnvDuration("TEST_DURATION", time.Minute, ValidatePositiveDuration)
	assert.Equal(t, time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)

	t.Setenv("TEST_DURATION", "-5s")
	result = LoadEnvDuration("TEST_DURATION", time.Minute, ValidatePositiveDuration)
	assert.Equal(t, time.Minute, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvInt(t *testing.T) {
	validator := func(v int) error { return ValidateIntRange(v, 1, 1000) }

	t.Setenv("TEST_INT", "500")
	assert.Equal(t, 500, LoadEnvInt("TEST_INT", 1000, validator).Value)

	t.Setenv("TEST_INT", "abc")
	result := LoadEnvInt("TEST_INT", 1000, validator)
	assert.Equal(t, 1000, result.Value)
	assert.Contains(t, result.Warnings[0], "invalid integer format")

	t.Setenv("TEST_INT", "5000")
	result = LoadEnvInt("TEST_INT", 1000, validator)
	assert.Equal(t, 1000, result.Value)
	assert.True(t, result.FallbackApplied)
}

func TestLoadEnvBool(t *testing.T) {
	tests := []struct {
		value        string
		want         bool
		wantFallback bool
	}{
		{value: "", want: true},
		{value: "false", want: false},
		{value: "0", want: false},
		{value: "yes", want: true},
		{value: "OFF", want: false},
		{value: "maybe", want: true, wantFallback: true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TEST_BOOL", tt.value)

			result := LoadEnvBool("TEST_BOOL", true)

			assert.Equal(t, tt.want, result.Value)
			assert.Equal(t, tt.wantFallback, result.FallbackApplied)
		})
	}
}

func TestLoadEnvList(t *testing.T) {
	t.Setenv("TEST_LIST", " post, story ,,page ")
	assert.Equal(t, []string{"post", "story", "page"}, LoadEnvList("TEST_LIST", []string{"post"}).Value)

	t.Setenv("TEST_LIST", "")
	assert.Equal(t, []string{"post"}, LoadEnvList("TEST_LIST", []string{"post"}).Value)
}

func TestLoadEnvInt64List(t *testing.T) {
	t.Setenv("TEST_IDS", "3, 7,11")
	assert.Equal(t, []int64{3, 7, 11}, LoadEnvInt64List("TEST_IDS", nil).Value)

	t.Setenv("TEST_IDS", "3,x")
	result := LoadEnvInt64List("TEST_IDS", []int64{1})
	assert.Equal(t, []int64{1}, result.Value)
	assert.True(t, result.FallbackApplied)
}
