package exception

import (
	"math/rand"
	"time"
)

// Backoff grows the wait between attempts by Factor, bounded by Min and Max.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	// Jitter adds up to this fraction of the delay at random (0-1).
	Jitter float64
}

// Next returns the wait before retry number attempt (1-based).
func (b Backoff) Next(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	min := b.Min
	if min <= 0 {
		min = time.Second
	}
	max := b.Max
	if max < min {
		max = min
	}
	factor := b.Factor
	if factor <= 1 {
		factor = 2.0
	}
	wait := min
	for i := 1; i < attempt; i++ {
		next := time.Duration(float64(wait) * factor)
		if next > max {
			wait = max
			break
		}
		wait = next
	}
	if b.Jitter > 0 {
		wait += time.Duration(rand.Float64() * b.Jitter * float64(wait))
	}
	return wait
}
