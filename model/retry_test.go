package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transientErr() error {
	return ErrorFromStatusCode("test", 503, "", "service unavailable", nil)
}

func fatalErr() error {
	return ErrorFromStatusCode("test", 401, "", "bad key", nil)
}

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2.0,
		MaxDelay:    50 * time.Millisecond,
		Jitter:      0.25,
	}
}

func TestDo_TransientThenSuccess(t *testing.T) {
	var retries []int
	p := fastPolicy()
	p.OnRetry = func(attempt int, delay time.Duration, err error) {
		retries = append(retries, attempt)
	}

	calls := 0
	result, err := Do(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls <= 2 {
			return "", transientErr()
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries, "one retry notification per failed attempt")
}

func TestDo_FatalNoRetry(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, fatalErr()
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)

	var auth *AuthenticationError
	assert.True(t, errors.As(err, &auth))
}

func TestDo_Exhaustion(t *testing.T) {
	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, transientErr()
	})
	require.Error(t, err)
	assert.Equal(t, 3, calls, "attempt cap includes the first call")
}

func TestDo_CancellationBeforeAttempt(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	_, err := Do(ctx, fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDo_CancellationDuringDelay(t *testing.T) {
	p := fastPolicy()
	p.BaseDelay = time.Second

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	calls := 0
	_, err := Do(ctx, p, func(ctx context.Context) (int, error) {
		calls++
		return 0, transientErr()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
	assert.Less(t, time.Since(start), 500*time.Millisecond, "delay must be interruptible")
}

func TestRetryPolicy_DelayBounds(t *testing.T) {
	p := RetryPolicy{
		BaseDelay:  100 * time.Millisecond,
		Multiplier: 2.0,
		MaxDelay:   time.Second,
		Jitter:     0.25,
	}
	for k := 0; k < 6; k++ {
		expected := float64(p.BaseDelay) * pow(p.Multiplier, k)
		lower := time.Duration(expected * (1 - p.Jitter))
		upper := time.Duration(expected * (1 + p.Jitter))
		if upper > p.MaxDelay {
			upper = p.MaxDelay
		}
		if lower > p.MaxDelay {
			lower = p.MaxDelay
		}
		for i := 0; i < 50; i++ {
			d := p.Delay(k)
			assert.GreaterOrEqual(t, d, lower, "k=%d", k)
			assert.LessOrEqual(t, d, upper, "k=%d", k)
		}
	}
}

func pow(base float64, k int) float64 {
	out := 1.0
	for i := 0; i < k; i++ {
		out *= base
	}
	return out
}

func TestDo_RetryAfterHonored(t *testing.T) {
	after := 5 * time.Millisecond
	err429 := ErrorFromStatusCode("test", 429, "", "slow down", &after)

	var observed time.Duration
	p := fastPolicy()
	p.OnRetry = func(attempt int, delay time.Duration, err error) { observed = delay }

	calls := 0
	_, err := Do(context.Background(), p, func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, err429
		}
		return 1, nil
	})
	require.NoError(t, err)
	assert.Equal(t, after, observed)
}

func TestDo_RetryAfterBeyondCapSurfacesImmediately(t *testing.T) {
	after := time.Minute
	err429 := ErrorFromStatusCode("test", 429, "", "slow down", &after)

	calls := 0
	_, err := Do(context.Background(), fastPolicy(), func(ctx context.Context) (int, error) {
		calls++
		return 0, err429
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
