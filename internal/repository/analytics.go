package repository

import (
	"context"
	"time"

	"newsmap/internal/domain/entity"
)

// AnalyticsRepository aggregates daily sitemap activity.
// Implementations add to the row for the UTC day containing at.
type AnalyticsRepository interface {
	RecordSitemapSize(ctx context.Context, at time.Time, items int) error
	RecordPings(ctx context.Context, at time.Time, succeeded, failed int) error
	RecordCache(ctx context.Context, at time.Time, hits, misses int) error
	// Summary returns the most recent days, newest first.
	Summary(ctx context.Context, days int) ([]entity.DailyStats, error)
}
