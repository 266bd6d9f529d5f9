package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateCronSchedule(t *testing.T) {
	valid := []string{"0 * * * *", "*/5 * * * *", "@hourly", "@every 15s", "@every 10m"}
	for _, schedule := range valid {
		assert.NoError(t, ValidateCronSchedule(schedule), schedule)
	}

	invalid := []string{"", "every hour", "60 * * * *", "@every"}
	for _, schedule := range invalid {
		assert.Error(t, ValidateCronSchedule(schedule), schedule)
	}
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration(time.Minute, time.Second, time.Hour))
	assert.ErrorContains(t, ValidateDuration(time.Millisecond, time.Second, time.Hour), "below minimum")
	assert.ErrorContains(t, ValidateDuration(2*time.Hour, time.Second, time.Hour), "exceeds maximum")
	assert.ErrorContains(t, ValidateDuration(time.Minute, time.Hour, time.Second), "invalid range")
}

func TestValidateIntRange(t *testing.T) {
	assert.NoError(t, ValidateIntRange(1000, 1, 1000))
	assert.NoError(t, ValidateIntRange(1, 1, 1000))
	assert.ErrorContains(t, ValidateIntRange(0, 1, 1000), "below minimum")
	assert.ErrorContains(t, ValidateIntRange(1001, 1, 1000), "exceeds maximum")
}

func TestValidatePositiveDuration(t *testing.T) {
	assert.NoError(t, ValidatePositiveDuration(time.Nanosecond))
	assert.Error(t, ValidatePositiveDuration(0))
	assert.Error(t, ValidatePositiveDuration(-time.Second))
}

func TestValidateAbsoluteURL(t *testing.T) {
	assert.NoError(t, ValidateAbsoluteURL("https://news.example.com"))
	assert.Error(t, ValidateAbsoluteURL("news.example.com"))
	assert.Error(t, ValidateAbsoluteURL("ftp://news.example.com"))
	assert.Error(t, ValidateAbsoluteURL("https://"))
}
