package watch

import (
	"context"
	"math/rand"
	"time"
)

// backoffDelay returns min(initial * 2^attempt, max).
func backoffDelay(initial, max time.Duration, attempt int) time.Duration {
	d := initial
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= max {
			return max
		}
	}
	if d > max {
		return max
	}
	return d
}

// applyJitter scales d by a factor drawn uniformly from [1-ratio, 1+ratio].
func applyJitter(d time.Duration, ratio float64) time.Duration {
	if ratio <= 0 {
		return d
	}
	factor := 1 - ratio + rand.Float64()*2*ratio
	return time.Duration(float64(d) * factor)
}

// sleepWithStop sleeps for d in short increments so cancellation is observed
// promptly. Returns false if ctx was cancelled before the full duration
// elapsed.
func sleepWithStop(ctx context.Context, d time.Duration) bool {
	const step = 200 * time.Millisecond
	deadline := time.Now().Add(d)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return true
		}
		if remaining > step {
			remaining = step
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(remaining):
		}
	}
}
