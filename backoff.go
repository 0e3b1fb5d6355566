package aurelia

import (
	"context"
	"math/rand"
	"time"
)

const (
	defaultRetryBase   = time.Second
	defaultMaxRetries  = 3
	defaultRetryJitter = 0.25
)

// backoffPolicy decides whether and how long to wait before retrying a
// failed connect or send/receive cycle.
type backoffPolicy struct {
	// Base is the first delay, before exponential growth.
	Base time.Duration

	// MaxAttempts bounds the total number of attempts.
	MaxAttempts int

	// Jitter is the maximum random fraction added to each delay, in [0, 1).
	Jitter float64
}

// delay returns the wait before retry number attempt (0-based: the delay
// after the first failure is delay(0)). random must be in [0, 1); it is a
// parameter so the schedule is testable without timing.
func (p backoffPolicy) delay(attempt int, random float64) time.Duration {
	d := float64(p.Base) * (1 + p.Jitter*random) * float64(uint(1)<<uint(attempt))
	return time.Duration(d)
}

// wait sleeps for the delay of the given attempt, honoring cancellation.
func (p backoffPolicy) wait(ctx context.Context, attempt int) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.delay(attempt, rand.Float64())):
		return nil
	}
}
