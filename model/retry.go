package model

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RetryPolicy configures exponential backoff at the provider-call boundary.
// Retries apply only to errors IsRetryable classifies as transient; the
// cancellation signal is re-checked before every attempt and every delay.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int
	// BaseDelay is the delay before the first retry.
	BaseDelay time.Duration
	// Multiplier grows the delay per retry.
	Multiplier float64
	// MaxDelay caps the delay between retries.
	MaxDelay time.Duration
	// Jitter is the symmetric random fraction applied to each delay
	// (0.25 means +/-25%).
	Jitter float64
	// OnRetry, if set, is invoked before each delay with the 1-indexed
	// retry attempt, the chosen delay and the error being retried.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy returns the default policy: 3 attempts, 500ms base,
// 2x growth, 30s cap, +/-25% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   500 * time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    30 * time.Second,
		Jitter:      0.25,
	}
}

// Delay computes the backoff for retry k (0-indexed): jitter applies to the
// exponential term before capping, so the result always lies within
// [base*mult^k*(1-jitter), min(cap, base*mult^k*(1+jitter))].
func (p RetryPolicy) Delay(k int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(k))
	if p.Jitter > 0 {
		d *= 1 + (rand.Float64()*2-1)*p.Jitter
	}
	if max := float64(p.MaxDelay); p.MaxDelay > 0 && d > max {
		d = max
	}
	return time.Duration(d)
}

// Do executes fn under the policy. Fatal errors return immediately; a
// provider-suggested Retry-After overrides the computed delay unless it
// exceeds the cap, in which case the error surfaces at once.
func Do[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == attempts-1 {
			return zero, err
		}

		delay := p.Delay(attempt)
		if suggested, ok := RetryAfter(err); ok {
			if p.MaxDelay > 0 && suggested > p.MaxDelay {
				return zero, err
			}
			delay = suggested
		}

		if p.OnRetry != nil {
			p.OnRetry(attempt+1, delay, err)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}
	}
	return zero, lastErr
}
