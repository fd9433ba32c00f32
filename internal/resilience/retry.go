package resilience

import (
	"context"
	"math/rand"
	"time"
)

// Retry runs fn once and then once more after each delay in delays, stopping
// at the first success. The last error is returned when every attempt fails.
func Retry(ctx context.Context, op string, delays []time.Duration, fn func(context.Context) error) error {
	err := fn(ctx)
	for _, delay := range delays {
		if err == nil {
			break
		}
		RetryAttempts.WithLabelValues(op, "retry").Inc()
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return sleepErr
		}
		err = fn(ctx)
	}
	if err != nil {
		RetryAttempts.WithLabelValues(op, "exhausted").Inc()
	}
	return err
}

// ExponentialDelays returns n delays doubling from base: base, 2*base, ...
func ExponentialDelays(base time.Duration, n int) []time.Duration {
	out := make([]time.Duration, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, Backoff(base, i, 0))
	}
	return out
}

// Backoff returns base doubled for each attempt after the first. jitter is a
// fraction (0.2 spreads the delay by up to 20% either way).
func Backoff(base time.Duration, attempt int, jitter float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	d := base << uint(attempt-1)
	if jitter <= 0 {
		return d
	}
	spread := float64(d) * jitter
	return d + time.Duration((rand.Float64()*2-1)*spread)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
