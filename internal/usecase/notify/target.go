// Package notify tells search engines that the news sitemap changed.
// It applies a process-wide throttle between notification bursts, defers
// events that arrive inside the throttle window, fans each burst out to every
// configured target and appends one audit record per attempted target.
package notify

import (
	"context"
)

// Target IDs recorded in the audit log and used as metric labels.
const (
	TargetPingGoogle    = "traditional-ping-google"
	TargetPingBing      = "traditional-ping-bing"
	TargetIndexNow      = "indexnow"
	TargetSearchConsole = "search-console"
)

// Submission is what a burst announces to a target.
type Submission struct {
	// ItemID is the content item behind the burst, or entity.FeedLevelItemID.
	ItemID int64
	// SitemapURL is the canonical document URL (the index when paginated).
	SitemapURL string
	// URLs are the changed pages. IndexNow submits these; the other targets
	// announce SitemapURL.
	URLs []string
}

// Target is a search-engine notification endpoint.
//
// Thread Safety:
//   - All methods must be safe for concurrent use by multiple goroutines
//
// Context Handling:
//   - Implementations must respect context cancellation and timeout
//   - request_id is available through requestid.FromContext
type Target interface {
	// Name returns the target ID used in audit records and metrics.
	Name() string

	// Enabled reports whether the operator switched the target on.
	Enabled() bool

	// Configured reports whether the target has everything it needs to be
	// called: endpoint, key or credentials. Unconfigured targets are skipped
	// without an audit record.
	Configured() bool

	// Submit delivers one notification.
	//
	// Returns:
	//   - int: HTTP status of the response, or 0 when none was received
	//   - error: Non-nil unless the target accepted the submission
	Submit(ctx context.Context, sub Submission) (int, error)
}

// BatchTarget is implemented by targets that accept many URLs in one call.
type BatchTarget interface {
	Target

	// SubmitBatch sends urls in a single request, truncated to the target's
	// own limit.
	SubmitBatch(ctx context.Context, urls []string) (int, error)
}

// TargetHealth is the state of one target reported by the health endpoint.
type TargetHealth struct {
	Name           string `json:"name"`
	Enabled        bool   `json:"enabled"`
	Configured     bool   `json:"configured"`
	CircuitBreaker string `json:"circuit_breaker"`
}
