package indexer

import (
	"context"
	"strings"
	"time"
)

const (
	// MaxRetries is the number of attempts made for a batch write
	MaxRetries = 5
	// InitialBackoffMs is the delay before the first retry
	InitialBackoffMs = 50
	// MaxBackoffMs caps the delay between retries
	MaxBackoffMs = 2000
	// BackoffMultiplier grows the delay after each attempt
	BackoffMultiplier = 2.0
)

// RetryConfig configures exponential backoff retry behavior
type RetryConfig struct {
	MaxRetries int              // Maximum number of attempts
	BaseDelay  time.Duration    // Initial delay between retries
	MaxDelay   time.Duration    // Maximum delay between retries
	Multiplier float64          // Exponential backoff multiplier
	Retryable  func(error) bool // Errors worth another attempt; nil retries everything
}

// DefaultRetryConfig retries batch writes that hit SQLite lock contention
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: MaxRetries,
		BaseDelay:  time.Duration(InitialBackoffMs) * time.Millisecond,
		MaxDelay:   time.Duration(MaxBackoffMs) * time.Millisecond,
		Multiplier: BackoffMultiplier,
		Retryable:  isLockError,
	}
}

// isLockError reports whether err is SQLite busy/locked contention
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "sqlite_busy")
}

// retryWithBackoff executes a function with exponential backoff retry logic.
// Retry is skipped on context cancellation and on errors the config does not
// consider retryable.
func retryWithBackoff[T any](ctx context.Context, config RetryConfig, fn func() (T, error)) (T, error) {
	var lastErr error
	var zero T
	backoff := config.BaseDelay

	for attempt := 0; attempt < config.MaxRetries; attempt++ {
		result, err := fn()
		if err == nil {
			return result, nil
		}

		lastErr = err

		// Don't retry on context cancellation
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}
		if config.Retryable != nil && !config.Retryable(err) {
			return zero, err
		}

		// Apply exponential backoff before next retry
		if attempt < config.MaxRetries-1 {
			select {
			case <-ctx.Done():
				return zero, ctx.Err()
			case <-time.After(backoff):
				backoff = time.Duration(float64(backoff) * config.Multiplier)
				if backoff > config.MaxDelay {
					backoff = config.MaxDelay
				}
			}
		}
	}

	return zero, lastErr
}
