package ratelimit

import "time"

const window = time.Minute

// Bucket is a fixed-window rate limiter. The token count resets to full
// capacity at each window boundary; there is no partial refill mid-window.
// Denied requests are not queued.
//
// A Bucket is owned by a single goroutine and is not safe for concurrent use.
type Bucket struct {
	capacity int
	tokens   int
	resetAt  time.Time
}

// New creates a bucket allowing capacityPerMinute grants per 60-second window.
func New(capacityPerMinute int) *Bucket {
	return &Bucket{
		capacity: capacityPerMinute,
		tokens:   capacityPerMinute,
		resetAt:  time.Now().Add(window),
	}
}

// Allow consumes n tokens if available and reports whether the caller may
// proceed. Crossing the window boundary resets the bucket to full capacity
// before the check.
func (b *Bucket) Allow(n int) bool {
	return b.allowAt(time.Now(), n)
}

func (b *Bucket) allowAt(now time.Time, n int) bool {
	if !now.Before(b.resetAt) {
		b.tokens = b.capacity
		b.resetAt = now.Add(window)
	}
	if b.tokens >= n {
		b.tokens -= n
		return true
	}
	return false
}
