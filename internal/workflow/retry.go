// Package workflow hardens outbound side effects and composes the event
// pipeline: retry with bounded backoff, automation webhook forwarding, and
// the engine tying normalization to dispatch.
package workflow

import (
	"context"
	"math"
	"time"
)

// Default retry parameters, applied for zero-valued options.
const (
	DefaultRetries       = 3
	DefaultRetryDelay    = 500 * time.Millisecond
	DefaultBackoffFactor = 2.0
	DefaultMaxDelay      = 5 * time.Second
)

// RetryOptions configures the retry executor. Zero values take the package
// defaults.
type RetryOptions struct {
	// Retries is the number of re-attempts after the initial one, so the
	// total attempt budget is Retries+1.
	Retries       int
	Delay         time.Duration
	BackoffFactor float64
	MaxDelay      time.Duration

	// OnRetry is observed before each re-attempt with the error that caused
	// it and the 1-based re-attempt number.
	OnRetry func(err error, attempt int)
}

func (o RetryOptions) withDefaults() RetryOptions {
	if o.Retries <= 0 {
		o.Retries = DefaultRetries
	}
	if o.Delay <= 0 {
		o.Delay = DefaultRetryDelay
	}
	if o.BackoffFactor <= 0 {
		o.BackoffFactor = DefaultBackoffFactor
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = DefaultMaxDelay
	}
	return o
}

// NextDelay computes the delay following the given one: the previous delay
// scaled by the backoff factor, rounded up, and capped at MaxDelay. Growth
// is deterministic; no jitter is applied.
func (o RetryOptions) NextDelay(previous time.Duration) time.Duration {
	next := time.Duration(math.Ceil(float64(previous) * o.BackoffFactor))
	if next > o.MaxDelay {
		next = o.MaxDelay
	}
	return next
}

// Retry executes fn immediately and re-attempts on failure with
// exponentially growing delays until the budget is spent, returning the last
// error. The sleep between attempts is cooperative and honors ctx.
func Retry[T any](ctx context.Context, fn func(ctx context.Context) (T, error), opts RetryOptions) (T, error) {
	opts = opts.withDefaults()
	delay := opts.Delay

	var zero T
	for attempt := 0; ; attempt++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == opts.Retries {
			return zero, err
		}

		if opts.OnRetry != nil {
			opts.OnRetry(err, attempt+1)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return zero, sleepErr
		}
		delay = opts.NextDelay(delay)
	}
}

// Do is Retry for operations without a result.
func Do(ctx context.Context, fn func(ctx context.Context) error, opts RetryOptions) error {
	_, err := Retry(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	}, opts)
	return err
}

// Delay suspends for d, returning early with the context error if ctx is
// cancelled first.
func Delay(ctx context.Context, d time.Duration) error {
	return sleep(ctx, d)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
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
