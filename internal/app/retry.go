package app

import (
	"context"
	"time"
)

// WithRetry runs op up to attempts times, sleeping baseDelay, 2*baseDelay,
// 4*baseDelay, ... between tries. It returns the last error when all
// attempts fail, and stops early if the context is cancelled.
func WithRetry[T any](ctx context.Context, attempts int, baseDelay time.Duration, op func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		delay := baseDelay << (attempt - 1)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
	return zero, lastErr
}
