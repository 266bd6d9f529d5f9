package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"newsmap/internal/domain/entity"
	"newsmap/internal/repository"
)

type PingLogRepo struct{ db *sql.DB }

func NewPingLogRepo(db *sql.DB) repository.PingLog {
	return &PingLogRepo{db: db}
}

func (repo *PingLogRepo) Append(ctx context.Context, a entity.PingAttempt) error {
	const query = `
INSERT INTO ping_attempts (item_id, target, code, message, success, attempted_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := repo.db.ExecContext(ctx, query,
		a.ItemID, a.Target, a.Code, a.Message, a.Success, a.AttemptedAt)
	if err != nil {
		return fmt.Errorf("Append: %w", err)
	}
	return nil
}

// RecentFailures considers only the latest attempt per (item, target) so a
// failure followed by a success for the same target is not retried.
func (repo *PingLogRepo) RecentFailures(ctx context.Context, since time.Time, limit int) ([]int64, error) {
	const query = `
SELECT item_id
FROM (
	SELECT DISTINCT ON (item_id, target) item_id, success, attempted_at
	FROM ping_attempts
	WHERE attempted_at >= $1 AND item_id > 0
	ORDER BY item_id, target, attempted_at DESC, id DESC
) latest
WHERE NOT success
GROUP BY item_id
ORDER BY MAX(attempted_at) DESC
LIMIT $2`
	rows, err := repo.db.QueryContext(ctx, query, since, limit)
	if err != nil {
		return nil, fmt.Errorf("RecentFailures: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := make([]int64, 0, limit)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("RecentFailures: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (repo *PingLogRepo) Recent(ctx context.Context, limit int) ([]entity.PingAttempt, error) {
	const query = `
SELECT item_id, target, code, message, success, attempted_at
FROM ping_attempts
ORDER BY attempted_at DESC, id DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	attempts := make([]entity.PingAttempt, 0, limit)
	for rows.Next() {
		var a entity.PingAttempt
		if err := rows.Scan(&a.ItemID, &a.Target, &a.Code, &a.Message, &a.Success, &a.AttemptedAt); err != nil {
			return nil, fmt.Errorf("Recent: %w", err)
		}
		attempts = append(attempts, a)
	}
	return attempts, rows.Err()
}
