package provider

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter paces upstream calls: maxTokens may be spent at once, then one
// token returns every refillInterval.
type RateLimiter struct {
	limiter *rate.Limiter
}

func NewRateLimiter(maxTokens int, refillInterval time.Duration) *RateLimiter {
	return &RateLimiter{limiter: rate.NewLimiter(rate.Every(refillInterval), maxTokens)}
}

// PerMinute allows n calls per minute with a burst of n.
func PerMinute(n int) *RateLimiter {
	if n < 1 {
		n = 1
	}
	return NewRateLimiter(n, time.Minute/time.Duration(n))
}

// Wait blocks until a token is available or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	return r.limiter.Wait(ctx)
}
