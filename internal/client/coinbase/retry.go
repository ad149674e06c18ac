package coinbase

import (
	"context"
	"time"

	"tradingbot/internal/exception"
)

// RetryPolicy wraps a brokerage call with bounded, exponential retries.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     exception.Backoff
	Retryable   func(error) bool
	Sleep       func(context.Context, time.Duration) error
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff:     exception.Backoff{Min: time.Second, Max: 4 * time.Second, Factor: 2},
		Retryable:   exception.Retryable,
	}
}

// Do calls fn until it succeeds, returns a non-retryable error, or attempts
// run out. The last error is returned as-is.
func (p RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = exception.Retryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt == attempts || !retryable(err) {
			return err
		}
		if serr := sleep(ctx, p.Backoff.Next(attempt)); serr != nil {
			return err
		}
	}
	return err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
