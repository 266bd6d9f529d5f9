package repository

import (
	"context"
	"time"

	"newsmap/internal/domain/entity"
)

// PingLog is the append-only audit log of notification attempts.
type PingLog interface {
	Append(ctx context.Context, attempt entity.PingAttempt) error
	// RecentFailures returns up to limit item ids (feed-level pings excluded)
	// whose latest attempt for at least one target since the given time failed,
	// most recently attempted first.
	RecentFailures(ctx context.Context, since time.Time, limit int) ([]int64, error)
	// Recent lists the latest attempts, newest first.
	Recent(ctx context.Context, limit int) ([]entity.PingAttempt, error)
}
