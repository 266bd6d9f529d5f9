package entity

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("entity not found")
	ErrInvalidInput = errors.New("invalid input")

	// ErrUpstreamUnavailable means the content store could not be read. The
	// HTTP surface answers 503 with Retry-After.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrPageNotFound is a sitemap page number beyond the current corpus.
	ErrPageNotFound = errors.New("sitemap page not found")
)

// ValidationError names the field that failed validation. It matches
// ErrInvalidInput under errors.Is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on field '%s': %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }
