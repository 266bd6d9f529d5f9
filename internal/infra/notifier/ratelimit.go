package notifier

import (
	"context"

	"golang.org/x/time/rate"
)

// budget is the request allowance of one target: a sustained rate per
// second and the number of calls that may go out back to back.
type budget struct {
	perSecond float64
	burst     int
}

var (
	pingBudget     = budget{perSecond: 1, burst: 3}
	indexNowBudget = budget{perSecond: 1, burst: 2}
	consoleBudget  = budget{perSecond: 0.2, burst: 1}
)

func (b budget) limiter() *RateLimiter {
	return NewRateLimiter(b.perSecond, b.burst)
}

// RateLimiter is a token bucket in front of one target. A burst of pings for
// the same item shares it with the retry sweep and admin batches.
type RateLimiter struct {
	rate    rate.Limit
	burst   int
	limiter *rate.Limiter
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	return &RateLimiter{
		rate:    rate.Limit(perSecond),
		burst:   burst,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Allow waits for a token. It fails at once when the wait would outlast the
// context deadline.
func (r *RateLimiter) Allow(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
