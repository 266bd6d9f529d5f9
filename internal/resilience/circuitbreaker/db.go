package circuitbreaker

import (
	"context"
	"database/sql"
	"time"

	"github.com/sony/gobreaker"
)

// DBCircuitBreaker guards content-store reads. While the database keeps
// failing, reads fail fast and the sitemap pipeline reports an upstream
// outage instead of queueing on the connection pool.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// DBConfig opens the breaker after five straight failures and probes again
// after thirty seconds.
func DBConfig() Config {
	return Config{
		Name:         "content-store",
		MaxRequests:  3,
		Interval:     time.Minute,
		OpenFor:      30 * time.Second,
		MinRequests:  5,
		FailureRatio: 1.0,
	}
}

// NewDBCircuitBreaker wraps db with the content-store breaker.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, DBConfig())
}

func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

// QueryContext satisfies the content store's Querier.
func (d *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return Do(d.cb, func() (*sql.Rows, error) {
		return d.db.QueryContext(ctx, query, args...)
	})
}

func (d *DBCircuitBreaker) State() gobreaker.State {
	return d.cb.State()
}
