package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jrvs-oss/toolgateway/internal/config"
)

func testRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   time.Millisecond,
		Multiplier:  2,
		MaxDelay:    10 * time.Millisecond,
	}
}

func TestRetryable_SucceedsFirstTry(t *testing.T) {
	calls := 0
	result, _, err := retryable(context.Background(), "ep", testRetryConfig(), func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestRetryable_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	result, attempts, err := retryable(context.Background(), "ep", testRetryConfig(), func(ctx context.Context) (any, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("transient")
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, attempts)
}

func TestRetryable_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, attempts, err := retryable(context.Background(), "ep", testRetryConfig(), func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("always fails")
	})

	require.Error(t, err)
	var exhausted *RetriesExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, exhausted.Attempts)
	assert.Equal(t, 3, attempts)
}

func TestRetryable_DoesNotRetryCircuitOpen(t *testing.T) {
	calls := 0
	_, _, err := retryable(context.Background(), "ep", testRetryConfig(), func(ctx context.Context) (any, error) {
		calls++
		return nil, &CircuitOpenError{Endpoint: "ep"}
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetriable(t *testing.T) {
	assert.False(t, retriable(&CircuitOpenError{Endpoint: "ep"}))
	assert.False(t, retriable(&RateLimitedError{Endpoint: "ep"}))
	assert.False(t, retriable(&BulkheadFullError{Class: "tool"}))
	assert.True(t, retriable(errors.New("boom")))
}
