package cache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Postgres is the durable backend over the cache_entries table.
// Expired rows are ignored on read and overwritten on the next write.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres creates a durable backend. The database handle is owned by the caller.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: time.Now}
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	const query = `
SELECT value
FROM cache_entries
WHERE cache_key = $1 AND expires_at > $2`
	var value []byte
	err := p.db.QueryRowContext(ctx, query, key, p.now()).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("Get: %w", err)
	}
	return value, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	const query = `
INSERT INTO cache_entries (cache_key, value, expires_at)
VALUES ($1, $2, $3)
ON CONFLICT (cache_key) DO UPDATE
SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at`
	if _, err := p.db.ExecContext(ctx, query, key, value, p.now().Add(ttl)); err != nil {
		return fmt.Errorf("Set: %w", err)
	}
	return nil
}

func (p *Postgres) DeletePrefix(ctx context.Context, prefix string) error {
	const query = `DELETE FROM cache_entries WHERE cache_key LIKE $1 ESCAPE '\'`
	if _, err := p.db.ExecContext(ctx, query, escapeLike(prefix)+"%"); err != nil {
		return fmt.Errorf("DeletePrefix: %w", err)
	}
	return nil
}

// Close is a no-op; the pool is shared with the repositories.
func (p *Postgres) Close() error { return nil }

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
