// Package retry re-runs failed upstream calls with exponential backoff and
// jitter. Only transient failures are retried: timeouts, refused or reset
// connections, and HTTP 408, 429 and 5xx. A Retry-After hint from the
// upstream stretches the next wait up to the configured maximum.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net"
	"net/http"
	"strconv"
	"syscall"
	"time"

	"newsmap/internal/observability/logging"
)

// Config is a backoff policy.
type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64

	// JitterFraction adds up to this share of the delay at random (0 to 1).
	JitterFraction float64
}

// FeedFetchConfig retries a source feed up to five times within about a
// minute, which stays inside the feed store's refresh interval.
func FeedFetchConfig() Config {
	return Config{
		MaxAttempts:    5,
		InitialDelay:   time.Second,
		MaxDelay:       30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
	}
}

// WithBackoff calls fn until it succeeds, returns a permanent error or
// cfg.MaxAttempts is reached. The last error is wrapped in the result.
func WithBackoff(ctx context.Context, cfg Config, fn func() error) error {
	logger := logging.WithRequestID(ctx, slog.Default())
	delay := cfg.InitialDelay

	var err error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err = fn(); err == nil {
			if attempt > 1 {
				logger.Info("upstream call succeeded after retry", slog.Int("attempt", attempt))
			}
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == cfg.MaxAttempts {
			break
		}

		wait := delay
		if hint, ok := retryAfterHint(err); ok && hint > wait {
			wait = min(hint, cfg.MaxDelay)
		}
		logger.Warn("upstream call failed, retrying",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", cfg.MaxAttempts),
			slog.Duration("delay", wait),
			slog.Any("error", err))

		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("retry aborted after attempt %d: %w", attempt, ctx.Err())
		}

		delay = addJitter(min(time.Duration(float64(delay)*cfg.Multiplier), cfg.MaxDelay), cfg.JitterFraction)
	}

	return fmt.Errorf("max retry attempts (%d) exceeded: %w", cfg.MaxAttempts, err)
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) ||
		errors.Is(err, syscall.ENETUNREACH) {
		return true
	}

	var status StatusCoder
	if errors.As(err, &status) {
		code := status.HTTPStatus()
		return code >= 500 || code == http.StatusTooManyRequests || code == http.StatusRequestTimeout
	}
	return false
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatus() int
}

// RetryAfterer is implemented by errors that carry an upstream Retry-After
// hint.
type RetryAfterer interface {
	RetryAfterHint() time.Duration
}

func retryAfterHint(err error) (time.Duration, bool) {
	var ra RetryAfterer
	if errors.As(err, &ra) && ra.RetryAfterHint() > 0 {
		return ra.RetryAfterHint(), true
	}
	return 0, false
}

// HTTPError is a non-2xx upstream response.
type HTTPError struct {
	StatusCode int
	Message    string
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *HTTPError) HTTPStatus() int { return e.StatusCode }

func (e *HTTPError) RetryAfterHint() time.Duration { return e.RetryAfter }

// ParseRetryAfter reads a Retry-After header value given either as seconds
// or as an HTTP date. Dates in the past and malformed values report false.
func ParseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds <= 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	at, err := http.ParseTime(value)
	if err != nil || !at.After(now) {
		return 0, false
	}
	return at.Sub(now), true
}

func addJitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return d
	}
	fraction = min(fraction, 1.0)
	// #nosec G404 -- backoff jitter does not need a cryptographic source.
	return d + time.Duration(rand.Float64()*float64(d)*fraction)
}
