package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrNoBatchTarget indicates that no enabled and configured target
	// accepts batch submissions.
	ErrNoBatchTarget = errors.New("no batch-capable notification target is configured")

	// ErrEmptyBatch indicates that SubmitBatch was called without URLs.
	ErrEmptyBatch = errors.New("batch submission has no urls")
)
