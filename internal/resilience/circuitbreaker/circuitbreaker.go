// Package circuitbreaker guards calls to the content store, the source feed
// and the notification targets with github.com/sony/gobreaker. Every breaker
// publishes its state and rejections under its name.
package circuitbreaker

import (
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

// Config describes when a breaker trips and how long it stays open.
type Config struct {
	Name string

	// MaxRequests is the number of trial calls let through while half-open.
	MaxRequests uint32

	// Interval clears the closed-state counts. Zero keeps them until the
	// state changes.
	Interval time.Duration

	// OpenFor is how long calls are rejected before the breaker goes half-open.
	OpenFor time.Duration

	// The closed breaker trips once it has seen MinRequests calls and the
	// failed share reaches FailureRatio.
	MinRequests  uint32
	FailureRatio float64
}

// TargetConfig is used per notification target. Targets are called rarely,
// so three calls with half of them failing open the breaker for two minutes.
func TargetConfig(target string) Config {
	return Config{
		Name:         "target-" + target,
		MaxRequests:  1,
		Interval:     5 * time.Minute,
		OpenFor:      2 * time.Minute,
		MinRequests:  3,
		FailureRatio: 0.5,
	}
}

// FeedFetchConfig is used by the feed-backed content store.
func FeedFetchConfig() Config {
	return Config{
		Name:         "feed-fetch",
		MaxRequests:  5,
		Interval:     time.Minute,
		OpenFor:      2 * time.Minute,
		MinRequests:  10,
		FailureRatio: 0.7,
	}
}

// CircuitBreaker is a named gobreaker instance.
type CircuitBreaker struct {
	breaker *gobreaker.CircuitBreaker
	name    string
}

// New creates a closed breaker from cfg.
func New(cfg Config) *CircuitBreaker {
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			breakerState.WithLabelValues(name).Set(stateValue(to))
			slog.Warn("circuit breaker state changed",
				slog.String("circuit", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()))
		},
	}
	breakerState.WithLabelValues(cfg.Name).Set(stateValue(gobreaker.StateClosed))

	return &CircuitBreaker{
		breaker: gobreaker.NewCircuitBreaker(settings),
		name:    cfg.Name,
	}
}

// Do runs fn through cb and returns its result. While the breaker is open, or
// half-open with its trial calls in flight, fn is not called and the error
// satisfies Rejected.
func Do[T any](cb *CircuitBreaker, fn func() (T, error)) (T, error) {
	var out T
	_, err := cb.breaker.Execute(func() (interface{}, error) {
		v, err := fn()
		if err != nil {
			return nil, err
		}
		out = v
		return nil, nil
	})
	if Rejected(err) {
		rejectionsTotal.WithLabelValues(cb.name).Inc()
	}
	return out, err
}

// Run is Do for calls without a result.
func (cb *CircuitBreaker) Run(fn func() error) error {
	_, err := Do(cb, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

// Rejected reports whether err means the breaker refused the call.
func Rejected(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func (cb *CircuitBreaker) State() gobreaker.State {
	return cb.breaker.State()
}

func (cb *CircuitBreaker) Name() string {
	return cb.name
}
