package utils

import (
	"math"
	"math/rand"
	"time"
)

// ExponentialBackoffWithJitter computes a jittered exponential backoff delay.
// - attempt: retry attempt number (1-based)
// - base: base delay (e.g., 500 * time.Millisecond)
// - max: maximum allowable delay
func ExponentialBackoffWithJitter(attempt int, base time.Duration, max time.Duration) time.Duration {
	if attempt <= 0 {
		return 0
	}

	// base * 2^(attempt-1)
	delay := base * time.Duration(math.Pow(2, float64(attempt-1)))

	// jitter of -12.5% to +12.5% to avoid synchronization
	if delay >= 8 {
		jitter := time.Duration(rand.Int63n(int64(delay/4))) - (delay / 8)
		delay += jitter
	}

	if delay > max {
		delay = max
	}
	return delay
}
