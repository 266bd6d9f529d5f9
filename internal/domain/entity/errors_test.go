package entity

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		message  string
		expected string
	}{
		{
			name:     "url required",
			field:    "url",
			message:  "URL is required",
			expected: "validation error on field 'url': URL is required",
		},
		{
			name:     "ticker symbol",
			field:    "stock_tickers",
			message:  `invalid symbol "BAD!TICKER"`,
			expected: `validation error on field 'stock_tickers': invalid symbol "BAD!TICKER"`,
		},
		{
			name:     "empty message",
			field:    "genre",
			message:  "",
			expected: "validation error on field 'genre': ",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &ValidationError{Field: tt.field, Message: tt.message}

			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestValidationError_WithErrorsAs(t *testing.T) {
	wrapped := fmt.Errorf("load settings: %w", &ValidationError{Field: "base_url", Message: "URL is required"})

	var validationErr *ValidationError
	assert.True(t, errors.As(wrapped, &validationErr))
	assert.Equal(t, "base_url", validationErr.Field)
	assert.ErrorIs(t, wrapped, ErrInvalidInput)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
}

func TestSentinelErrors_Uniqueness(t *testing.T) {
	sentinels := []error{ErrNotFound, ErrInvalidInput, ErrUpstreamUnavailable, ErrPageNotFound}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i == j {
				continue
			}
			assert.False(t, errors.Is(a, b), "%v should not match %v", a, b)
		}
	}
}

func TestSentinelErrors_Wrapped(t *testing.T) {
	err := fmt.Errorf("Query: %w: connection refused", ErrUpstreamUnavailable)

	assert.True(t, errors.Is(err, ErrUpstreamUnavailable))
	assert.False(t, errors.Is(err, ErrNotFound))
}
