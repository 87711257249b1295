package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"
)

// RetryConfig configures bounded retry behavior.
// The delay grows linearly: InitialDelay, InitialDelay+Step,
// InitialDelay+2*Step, ... over at most MaxAttempts total attempts.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// InitialDelay is the wait before the second attempt.
	InitialDelay time.Duration

	// Step is added to the delay after every failed attempt.
	Step time.Duration
}

// DefaultRetryConfig returns the standard pipeline retry policy:
// 3 attempts with a small increasing delay.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:  3,
		InitialDelay: 100 * time.Millisecond,
		Step:         200 * time.Millisecond,
	}
}

// Retry executes fn up to MaxAttempts times, waiting between attempts.
// It returns nil on the first success. Fatal errors are returned as-is
// without further attempts; retrying cannot help them. If the context
// is cancelled it returns the context error immediately.
func Retry(ctx context.Context, cfg RetryConfig, fn func() error) error {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := fn(); err != nil {
			if isFatalSyncError(err) {
				return err
			}
			lastErr = err
			if attempt == cfg.MaxAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay += cfg.Step
			continue
		}
		return nil
	}

	return fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// RetryWithResult is Retry for functions returning a value.
func RetryWithResult[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error)) (T, error) {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	delay := cfg.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		default:
		}

		result, err := fn()
		if err == nil {
			return result, nil
		}
		if isFatalSyncError(err) {
			var zero T
			return zero, err
		}
		lastErr = err
		if attempt == cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		case <-time.After(delay):
		}
		delay += cfg.Step
	}

	var zero T
	return zero, fmt.Errorf("failed after %d attempts: %w", cfg.MaxAttempts, lastErr)
}

// isFatalSyncError reports whether err carries a fatal SyncError.
// Plain errors stay retryable; only a classified fatal error short-
// circuits the loop.
func isFatalSyncError(err error) bool {
	var se *SyncError
	return stderrors.As(err, &se) && se.Severity == SeverityFatal
}
