package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// fakeClock returns a limiter clock and a function advancing it.
func fakeClock() (func() time.Time, func(time.Duration)) {
	now := time.Date(2024, 9, 1, 10, 0, 0, 0, time.UTC)
	return func() time.Time { return now }, func(d time.Duration) { now = now.Add(d) }
}

func TestRateLimiterBurstAndRefill(t *testing.T) {
	rl := newRateLimiter(3, time.Second)
	clock, advance := fakeClock()
	rl.now = clock

	for i := range 3 {
		assert.True(t, rl.allow(), "event %d within burst", i)
	}
	assert.False(t, rl.allow(), "burst exhausted")

	advance(400 * time.Millisecond)
	assert.True(t, rl.allow(), "one token refilled")
	assert.False(t, rl.allow())

	advance(2 * time.Second)
	for range 3 {
		assert.True(t, rl.allow())
	}
	assert.False(t, rl.allow(), "refill never exceeds the burst")
}

func TestRateLimiterDefaults(t *testing.T) {
	rl := newRateLimiter(0, 0)
	clock, advance := fakeClock()
	rl.now = clock

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())

	advance(time.Second)
	assert.True(t, rl.allow())
}

func TestRateLimiterUsesWallClockByDefault(t *testing.T) {
	rl := newRateLimiter(1, time.Hour)

	assert.True(t, rl.allow())
	assert.False(t, rl.allow())
}
