package worker

import (
	"fmt"
	"log/slog"
	"time"

	"newsmap/internal/pkg/config"
)

// Config holds the worker's job schedules. Schedules accept five-field
// cron expressions and descriptors such as "@hourly" or "@every 15s".
type Config struct {
	// SweepSchedule runs the retry sweep over recently failed pings.
	// Default: "@hourly"
	SweepSchedule string

	// DeferredSchedule drains the deferred notification queue.
	// Default: "@every 15s"
	DeferredSchedule string

	// WarmupSchedule regenerates page 1 and the index ahead of crawlers.
	// Default: "@every 10m"
	WarmupSchedule string

	// Timezone is the IANA zone five-field schedules are evaluated in.
	// Default: "UTC"
	Timezone string

	// JobTimeout bounds every job run. Range: 10s-1h. Default: 5m
	JobTimeout time.Duration
}

// DefaultConfig returns the default schedules.
func DefaultConfig() Config {
	return Config{
		SweepSchedule:    "@hourly",
		DeferredSchedule: "@every 15s",
		WarmupSchedule:   "@every 10m",
		Timezone:         "UTC",
		JobTimeout:       5 * time.Minute,
	}
}

func validateTimezone(tz string) error {
	if _, err := time.LoadLocation(tz); err != nil {
		return fmt.Errorf("invalid timezone '%s': %w", tz, err)
	}
	return nil
}

func validateJobTimeout(d time.Duration) error {
	return config.ValidateDuration(d, 10*time.Second, time.Hour)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	for name, schedule := range map[string]string{
		"sweep schedule":    c.SweepSchedule,
		"deferred schedule": c.DeferredSchedule,
		"warmup schedule":   c.WarmupSchedule,
	} {
		if err := config.ValidateCronSchedule(schedule); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if err := validateTimezone(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone: %w", err))
	}
	if err := validateJobTimeout(c.JobTimeout); err != nil {
		errs = append(errs, fmt.Errorf("job timeout: %w", err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("validation failed: %v", errs)
	}
	return nil
}

// LoadConfigFromEnv overlays the environment on DefaultConfig. A malformed
// value keeps the default, logs a warning and is counted in metrics; the
// result is always usable.
//
// Environment variables:
//   - NEWSMAP_SWEEP_SCHEDULE
//   - NEWSMAP_DEFERRED_SCHEDULE
//   - NEWSMAP_WARMUP_SCHEDULE
//   - WORKER_TIMEZONE
//   - NEWSMAP_JOB_TIMEOUT (e.g. "2m")
func LoadConfigFromEnv(logger *slog.Logger, metrics *config.ConfigMetrics) Config {
	cfg := DefaultConfig()

	report := func(field string, r config.ConfigLoadResult) config.ConfigLoadResult {
		if !r.FallbackApplied {
			return r
		}
		for _, w := range r.Warnings {
			logger.Warn("configuration fallback applied",
				slog.String("field", field),
				slog.String("warning", w))
		}
		if metrics != nil {
			metrics.RecordValidationError(field)
			metrics.RecordFallback(field)
		}
		return r
	}

	schedules := []struct {
		field string
		env   string
		dst   *string
	}{
		{field: "sweep_schedule", env: "NEWSMAP_SWEEP_SCHEDULE", dst: &cfg.SweepSchedule},
		{field: "deferred_schedule", env: "NEWSMAP_DEFERRED_SCHEDULE", dst: &cfg.DeferredSchedule},
		{field: "warmup_schedule", env: "NEWSMAP_WARMUP_SCHEDULE", dst: &cfg.WarmupSchedule},
	}
	for _, s := range schedules {
		r := report(s.field, config.LoadEnvWithFallback(s.env, *s.dst, config.ValidateCronSchedule))
		*s.dst = r.Value.(string)
	}

	r := report("timezone", config.LoadEnvWithFallback("WORKER_TIMEZONE", cfg.Timezone, validateTimezone))
	cfg.Timezone = r.Value.(string)

	r = report("job_timeout", config.LoadEnvDuration("NEWSMAP_JOB_TIMEOUT", cfg.JobTimeout, validateJobTimeout))
	cfg.JobTimeout = r.Value.(time.Duration)

	if metrics != nil {
		metrics.RecordLoadTimestamp()
	}
	return cfg
}
