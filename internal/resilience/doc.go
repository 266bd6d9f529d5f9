// Package resilience groups the failure handling used around upstream calls.
//
// Subpackage circuitbreaker keeps one breaker per notification target, one
// around content-store reads and one around the source feed. Subpackage retry
// applies backoff to feed fetches only: notification targets are not retried
// inline because the retry sweep re-evaluates failed items later.
//
//	cb := circuitbreaker.New(circuitbreaker.TargetConfig("indexnow"))
//	code, err := circuitbreaker.Do(cb, func() (int, error) {
//		return target.Submit(ctx, sub)
//	})
//
//	err = retry.WithBackoff(ctx, retry.FeedFetchConfig(), func() error {
//		return fetch(ctx)
//	})
package resilience
