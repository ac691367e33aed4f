// Package server implements per-connection throttling that protects the
// gateway and the store from clients flooding events.
package server

import (
	"time"

	"golang.org/x/time/rate"
)

// rateLimiter is a token bucket holding capacity events that refills
// completely once per interval.
type rateLimiter struct {
	limiter *rate.Limiter
	now     func() time.Time
}

func newRateLimiter(capacity int, interval time.Duration) *rateLimiter {
	if capacity <= 0 {
		capacity = 1
	}
	if interval <= 0 {
		interval = time.Second
	}

	perSecond := rate.Limit(float64(capacity) / interval.Seconds())
	return &rateLimiter{
		limiter: rate.NewLimiter(perSecond, capacity),
		now:     time.Now,
	}
}

func (rl *rateLimiter) allow() bool {
	return rl.limiter.AllowN(rl.now(), 1)
}
