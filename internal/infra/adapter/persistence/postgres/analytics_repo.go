package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"newsmap/internal/domain/entity"
	"newsmap/internal/repository"
)

// AnalyticsRepo keeps one analytics_daily row per UTC day. Counters are
// added to, the sitemap size is overwritten with the latest value.
type AnalyticsRepo struct{ db *sql.DB }

func NewAnalyticsRepo(db *sql.DB) repository.AnalyticsRepository {
	return &AnalyticsRepo{db: db}
}

func day(at time.Time) time.Time {
	y, m, d := at.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func (repo *AnalyticsRepo) RecordSitemapSize(ctx context.Context, at time.Time, items int) error {
	const query = `
INSERT INTO analytics_daily (day, items_in_sitemap)
VALUES ($1, $2)
ON CONFLICT (day) DO UPDATE
SET items_in_sitemap = EXCLUDED.items_in_sitemap`
	if _, err := repo.db.ExecContext(ctx, query, day(at), items); err != nil {
		return fmt.Errorf("RecordSitemapSize: %w", err)
	}
	return nil
}

func (repo *AnalyticsRepo) RecordPings(ctx context.Context, at time.Time, succeeded, failed int) error {
	const query = `
INSERT INTO analytics_daily (day, total_pings, successful_pings, failed_pings)
VALUES ($1, $2, $3, $4)
ON CONFLICT (day) DO UPDATE
SET total_pings = analytics_daily.total_pings + EXCLUDED.total_pings,
    successful_pings = analytics_daily.successful_pings + EXCLUDED.successful_pings,
    failed_pings = analytics_daily.failed_pings + EXCLUDED.failed_pings`
	if _, err := repo.db.ExecContext(ctx, query, day(at), succeeded+failed, succeeded, failed); err != nil {
		return fmt.Errorf("RecordPings: %w", err)
	}
	return nil
}

func (repo *AnalyticsRepo) RecordCache(ctx context.Context, at time.Time, hits, misses int) error {
	const query = `
INSERT INTO analytics_daily (day, cache_hits, cache_misses)
VALUES ($1, $2, $3)
ON CONFLICT (day) DO UPDATE
SET cache_hits = analytics_daily.cache_hits + EXCLUDED.cache_hits,
    cache_misses = analytics_daily.cache_misses + EXCLUDED.cache_misses`
	if _, err := repo.db.ExecContext(ctx, query, day(at), hits, misses); err != nil {
		return fmt.Errorf("RecordCache: %w", err)
	}
	return nil
}

func (repo *AnalyticsRepo) Summary(ctx context.Context, days int) ([]entity.DailyStats, error) {
	const query = `
SELECT day, items_in_sitemap, total_pings, successful_pings, failed_pings, cache_hits, cache_misses
FROM analytics_daily
ORDER BY day DESC
LIMIT $1`
	rows, err := repo.db.QueryContext(ctx, query, days)
	if err != nil {
		return nil, fmt.Errorf("Summary: %w", err)
	}
	defer func() { _ = rows.Close() }()

	stats := make([]entity.DailyStats, 0, days)
	for rows.Next() {
		var s entity.DailyStats
		if err := rows.Scan(&s.Day, &s.ItemsInSitemap, &s.TotalPings, &s.SuccessfulPings,
			&s.FailedPings, &s.CacheHits, &s.CacheMisses); err != nil {
			return nil, fmt.Errorf("Summary: %w", err)
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
