// Package notifier implements the search-engine notification targets:
// the traditional sitemap pings, IndexNow and the Search Console API.
package notifier

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"newsmap/internal/config"
	"newsmap/internal/resilience/retry"
)

const (
	// defaultTimeout matches the per-target timeout applied by the dispatcher.
	defaultTimeout = 10 * time.Second

	// maxErrorBody bounds how much of an error response ends up in the audit log.
	maxErrorBody = 512

	defaultRetryAfter = 5 * time.Second

	userAgent = "NewsmapBot/1.0 (+sitemap notifier)"
)

// SettingsSource returns the settings in effect. Targets read it on every
// call so that key and endpoint changes apply without a restart.
type SettingsSource interface {
	Get() config.Settings
}

// RateLimitError represents a 429 response from a target.
type RateLimitError struct {
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s (retry after %v)", e.Message, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded (retry after %v)", e.RetryAfter)
}

// HTTPStatus implements retry.StatusCoder.
func (e *RateLimitError) HTTPStatus() int { return http.StatusTooManyRequests }

func (e *RateLimitError) RetryAfterHint() time.Duration { return e.RetryAfter }

// ClientError represents a 4xx response other than 429.
type ClientError struct {
	StatusCode int
	Message    string
}

func (e *ClientError) Error() string {
	return e.Message
}

// HTTPStatus implements retry.StatusCoder.
func (e *ClientError) HTTPStatus() int { return e.StatusCode }

// ServerError represents a 5xx response.
type ServerError struct {
	StatusCode int
	Message    string
}

func (e *ServerError) Error() string {
	return e.Message
}

// HTTPStatus implements retry.StatusCoder.
func (e *ServerError) HTTPStatus() int { return e.StatusCode }

// Option customises a target.
type Option func(*options)

type options struct {
	client  *http.Client
	limiter *RateLimiter
	logger  *slog.Logger
}

// WithHTTPClient replaces the default client (10s timeout).
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithRateLimiter replaces the target's default limiter.
func WithRateLimiter(l *RateLimiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithLogger sets the logger used for target-level warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

func buildOptions(opts []Option, limiter func() *RateLimiter) options {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: defaultTimeout}
	}
	if o.limiter == nil {
		o.limiter = limiter()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// classify turns a non-2xx response into a typed error. The caller still owns
// resp.Body.
func classify(target string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := fmt.Sprintf("%s: status %d", target, resp.StatusCode)
	if text := strings.TrimSpace(string(body)); text != "" {
		msg += ": " + text
	}
	return statusError(resp.StatusCode, msg, resp.Header)
}

func statusError(code int, msg string, header http.Header) error {
	switch {
	case code == http.StatusTooManyRequests:
		return &RateLimitError{RetryAfter: retryAfter(header), Message: msg}
	case code >= 500:
		return &ServerError{StatusCode: code, Message: msg}
	default:
		return &ClientError{StatusCode: code, Message: msg}
	}
}

// retryAfter reads the Retry-After header, defaulting to 5s.
func retryAfter(header http.Header) time.Duration {
	if d, ok := retry.ParseRetryAfter(header.Get("Retry-After"), time.Now()); ok {
		return d
	}
	return defaultRetryAfter
}

func validEndpoint(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
