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

func testConfig() *config.Config {
	return &config.Config{
		Resilience: config.ResilienceConfig{
			Circuit: config.CircuitBreakerConfig{FailureThreshold: 2, RecoveryTimeout: 50 * time.Millisecond},
			Retry:   config.RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Multiplier: 2, MaxDelay: 10 * time.Millisecond},
			Bulkheads: map[string]config.BulkheadConfig{
				"tool": {MaxConcurrent: 4},
			},
			RateLimit: config.RateLimitConfig{Enabled: true, PerMinute: 6000, Burst: 100},
			Caches: config.CachesConfig{
				Enabled:       true,
				SweepInterval: time.Second,
				General:       config.CacheConfig{Capacity: 16, TTL: time.Minute},
			},
			Timeouts: config.TimeoutConfig{Call: 200 * time.Millisecond},
		},
	}
}

func TestPipeline_Execute_Success(t *testing.T) {
	p := New(testConfig(), nil)

	calls := 0
	result, err := p.Execute(context.Background(), CallOptions{Endpoint: "tool:x", BulkheadClass: "tool"}, func(ctx context.Context) (any, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestPipeline_Execute_CacheHitSkipsCall(t *testing.T) {
	p := New(testConfig(), nil)

	calls := 0
	fn := func(ctx context.Context) (any, error) {
		calls++
		return "computed", nil
	}
	opts := CallOptions{Endpoint: "tool:x", BulkheadClass: "tool", CacheName: "general", CacheKey: "k"}

	_, err := p.Execute(context.Background(), opts, fn)
	require.NoError(t, err)
	_, err = p.Execute(context.Background(), opts, fn)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second call should be served from cache")
}

func TestPipeline_Execute_RetriesThenSucceeds(t *testing.T) {
	p := New(testConfig(), nil)

	attempts := 0
	result, err := p.Execute(context.Background(), CallOptions{Endpoint: "tool:flaky", BulkheadClass: "tool"}, func(ctx context.Context) (any, error) {
		attempts++
		if attempts < 2 {
			return nil, errors.New("transient failure")
		}
		return "recovered", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "recovered", result)
	assert.Equal(t, 2, attempts)
}

func TestPipeline_Execute_CircuitOpensAfterRepeatedFailure(t *testing.T) {
	p := New(testConfig(), nil)
	alwaysFails := func(ctx context.Context) (any, error) { return nil, errors.New("down") }

	for i := 0; i < 2; i++ {
		_, err := p.Execute(context.Background(), CallOptions{Endpoint: "tool:down", BulkheadClass: "tool"}, alwaysFails)
		require.Error(t, err)
	}

	_, err := p.Execute(context.Background(), CallOptions{Endpoint: "tool:down", BulkheadClass: "tool"}, alwaysFails)
	var circuitErr *CircuitOpenError
	assert.ErrorAs(t, err, &circuitErr)
}
