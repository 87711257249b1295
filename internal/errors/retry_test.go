package errors

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetry keeps test wall time negligible.
func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, Step: time.Millisecond}
}

func TestRetry_SucceedsOnThirdAttempt(t *testing.T) {
	// Given: an operation that fails twice before succeeding
	attempts := 0
	fn := func() error {
		attempts++
		if attempts < 3 {
			return fmt.Errorf("transient %d", attempts)
		}
		return nil
	}

	// When: retrying with 3 attempts
	err := Retry(context.Background(), fastRetry(), fn)

	// Then: the call succeeds and all attempts were used
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_ExhaustionReturnsLastError(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), func() error {
		attempts++
		return fmt.Errorf("always failing")
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Contains(t, err.Error(), "always failing")
}

func TestRetry_ContextCancellationStopsRetries(t *testing.T) {
	// Given: a cancelled context
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	attempts := 0
	err := Retry(ctx, fastRetry(), func() error {
		attempts++
		return fmt.Errorf("fail")
	})

	// Then: no attempt runs and the context error surfaces
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, attempts)
}

func TestRetry_NoRetryAfterSuccess(t *testing.T) {
	attempts := 0
	err := Retry(context.Background(), fastRetry(), func() error {
		attempts++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestRetryWithResult(t *testing.T) {
	// Given: a lookup that is empty until the third attempt
	attempts := 0
	ids, err := RetryWithResult(context.Background(), fastRetry(), func() ([]string, error) {
		attempts++
		if attempts < 3 {
			return nil, fmt.Errorf("not visible yet")
		}
		return []string{"a", "b"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)
	assert.Equal(t, 3, attempts)
}

func TestRetry_FatalErrorStopsImmediately(t *testing.T) {
	// Given: an operation failing with a fatal classified error
	attempts := 0
	fatal := New(ErrCodeIndexDimension, "dimension mismatch", nil)
	err := Retry(context.Background(), fastRetry(), func() error {
		attempts++
		return fatal
	})

	// Then: no further attempts, and the error comes back unwrapped so
	// callers can still classify it directly
	assert.Equal(t, 1, attempts)
	assert.Same(t, fatal, err)
}

func TestRetryWithResult_FatalErrorStopsImmediately(t *testing.T) {
	attempts := 0
	fatal := New(ErrCodeInvalidInput, "bad ref", nil)
	_, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		attempts++
		return 0, fatal
	})

	assert.Equal(t, 1, attempts)
	assert.Same(t, fatal, err)
}

func TestRetryWithResult_Exhaustion(t *testing.T) {
	_, err := RetryWithResult(context.Background(), fastRetry(), func() (int, error) {
		return 0, fmt.Errorf("nope")
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")
}
