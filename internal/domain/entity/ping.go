package entity

import "time"

// FeedLevelItemID is the item identifier recorded for pings that concern
// the whole feed rather than a single content item.
const FeedLevelItemID int64 = 0

// PingAttempt is one append-only audit record of a notification attempt.
// Code is the HTTP status returned by the target, or 0 when no response was received.
type PingAttempt struct {
	ItemID      int64
	Target      string
	Code        int
	Message     string
	Success     bool
	AttemptedAt time.Time
}

// DailyStats is one day of aggregated sitemap activity.
type DailyStats struct {
	Day             time.Time
	ItemsInSitemap  int
	TotalPings      int
	SuccessfulPings int
	FailedPings     int
	CacheHits       int
	CacheMisses     int
}
