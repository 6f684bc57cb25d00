package embedder

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int           // Maximum number of attempts, including the first
	BaseDelay  time.Duration // Initial delay between retries
	MaxDelay   time.Duration // Maximum delay between retries
	Multiplier float64       // Exponential backoff multiplier
}

// DefaultRetryConfig returns the defaults used for provider API calls
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
	}
}

// retryWithBackoff runs fn until it succeeds, returns a permanent error,
// exhausts MaxRetries attempts, or ctx ends. Wrap errors that must not be
// retried with backoff.Permanent.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = config.BaseDelay
	expBackoff.MaxInterval = config.MaxDelay
	expBackoff.Multiplier = config.Multiplier
	expBackoff.Reset()

	tries := config.MaxRetries
	if tries < 1 {
		tries = 1
	}

	result, err := backoff.Retry(ctx, fn,
		backoff.WithBackOff(expBackoff),
		backoff.WithMaxTries(uint(tries)), // #nosec G115 -- tries is at least 1
	)
	if err != nil && ctx.Err() != nil {
		var zero T
		return zero, ctx.Err()
	}
	return result, err
}
