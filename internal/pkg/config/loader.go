// Package config provides fail-open environment loaders shared by the
// api and worker processes. A malformed value never aborts startup: the
// loader keeps the default and reports a warning the caller can log.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ConfigLoadResult represents the result of loading a configuration value.
// It contains the loaded value, any warnings generated during loading,
// and a flag indicating whether a fallback value was used.
//
// Fields:
//   - Value: The loaded configuration value (may be fallback if validation failed)
//   - Warnings: List of warning messages (one per fallback applied)
//   - FallbackApplied: True if the default value was used due to validation failure
//
// Example:
//
//	result := LoadEnvInt("NEWSMAP_MAX_URLS", 1000, nil)
//	for _, warning := range result.Warnings {
//	    logger.Warn("configuration fallback", slog.String("warning", warning))
//	}
//	maxURLs := result.Value.(int)
type ConfigLoadResult struct {
	Value           interface{}
	Warnings        []string
	FallbackApplied bool
}

// LoadEnvString loads a string value from an environment variable.
// If the environment variable is not set, the default value is returned.
// No validation is performed.
func LoadEnvString(envKey, defaultValue string) string {
	value := os.Getenv(envKey)
	if value == "" {
		return defaultValue
	}
	return value
}

// LoadEnvWithFallback loads a string value from an environment variable
// with validation and automatic fallback to default on validation failure.
//
// Loading behavior:
//  1. Read environment variable
//  2. If not set or empty: Use default value (no warning)
//  3. If set: Validate using provided validator
//  4. If validation fails: Use default value and generate warning
//
// Warning format:
//
//	"Invalid {envKey}='{value}': {error}, falling back to default '{default}'"
func LoadEnvWithFallback(envKey, defaultValue string, validator func(string) error) ConfigLoadResult {
	value := os.Getenv(envKey)
	if value == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	if validator != nil {
		if err := validator(value); err != nil {
			return fallback(envKey, value, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: value}
}

// LoadEnvDuration loads a duration value from an environment variable
// with parsing, validation, and automatic fallback to default on failure.
// The value must be parseable by time.ParseDuration ("30s", "5m", "1h30m").
func LoadEnvDuration(envKey string, defaultValue time.Duration, validator func(time.Duration) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := time.ParseDuration(valueStr)
	if err != nil {
		return fallback(envKey, valueStr, err, defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallback(envKey, valueStr, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvInt loads an integer value from an environment variable
// with parsing, validation, and automatic fallback to default on failure.
func LoadEnvInt(envKey string, defaultValue int, validator func(int) error) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if valueStr == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	parsed, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback(envKey, valueStr, fmt.Errorf("invalid integer format"), defaultValue)
	}

	if validator != nil {
		if err := validator(parsed); err != nil {
			return fallback(envKey, valueStr, err, defaultValue)
		}
	}

	return ConfigLoadResult{Value: parsed}
}

// LoadEnvBool loads a boolean value. Accepted spellings are those of
// strconv.ParseBool plus "yes"/"no" and "on"/"off".
func LoadEnvBool(envKey string, defaultValue bool) ConfigLoadResult {
	valueStr := strings.ToLower(strings.TrimSpace(os.Getenv(envKey)))
	switch valueStr {
	case "":
		return ConfigLoadResult{Value: defaultValue}
	case "yes", "on":
		return ConfigLoadResult{Value: true}
	case "no", "off":
		return ConfigLoadResult{Value: false}
	}

	parsed, err := strconv.ParseBool(valueStr)
	if err != nil {
		return fallback(envKey, valueStr, fmt.Errorf("invalid boolean format"), defaultValue)
	}
	return ConfigLoadResult{Value: parsed}
}

// LoadEnvList loads a comma-separated list. Empty elements are dropped.
func LoadEnvList(envKey string, defaultValue []string) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if strings.TrimSpace(valueStr) == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return ConfigLoadResult{Value: out}
}

// LoadEnvInt64List loads a comma-separated list of identifiers.
// A single malformed element makes the whole list fall back.
func LoadEnvInt64List(envKey string, defaultValue []int64) ConfigLoadResult {
	valueStr := os.Getenv(envKey)
	if strings.TrimSpace(valueStr) == "" {
		return ConfigLoadResult{Value: defaultValue}
	}

	var out []int64
	for _, part := range strings.Split(valueStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return fallback(envKey, valueStr, fmt.Errorf("invalid identifier %q", part), defaultValue)
		}
		out = append(out, id)
	}
	return ConfigLoadResult{Value: out}
}

func fallback(envKey, value string, err error, defaultValue interface{}) ConfigLoadResult {
	warning := fmt.Sprintf(
		"Invalid %s='%s': %v, falling back to default '%v'",
		envKey,
		value,
		err,
		defaultValue,
	)
	return ConfigLoadResult{
		Value:           defaultValue,
		Warnings:        []string{warning},
		FallbackApplied: true,
	}
}
