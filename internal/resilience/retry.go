package resilience

import (
	"context"

	"github.com/cenkalti/backoff/v5"

	"github.com/jrvs-oss/toolgateway/internal/config"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// retryable wraps fn with exponential backoff per cfg, retrying the errors
// fn returns, and reports how many attempts it took. retriable bounds which
// errors are worth retrying: a CircuitOpenError or RateLimitedError is
// deliberately not retried here, since those reflect a decision already
// made by an outer layer, not a transient downstream failure.
func retryable(ctx context.Context, endpoint string, cfg config.RetryConfig, fn func(ctx context.Context) (any, error)) (any, int, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = cfg.BaseDelay
	policy.Multiplier = cfg.Multiplier
	policy.MaxInterval = cfg.MaxDelay

	attempts := 0
	result, err := backoff.Retry(ctx, func() (any, error) {
		attempts++
		out, err := fn(ctx)
		if err == nil {
			return out, nil
		}
		if !retriable(err) {
			return nil, backoff.Permanent(err)
		}
		logging.Debug("Resilience", "%s: attempt %d failed: %v", endpoint, attempts, err)
		return nil, err
	}, backoff.WithBackOff(policy), backoff.WithMaxTries(uint(cfg.MaxAttempts)))

	if err != nil {
		return nil, attempts, &RetriesExhaustedError{Attempts: attempts, Last: err}
	}
	return result, attempts, nil
}

// retriable reports whether err reflects a transient downstream failure
// worth retrying, as opposed to a structural rejection from this gateway's
// own resilience layer.
func retriable(err error) bool {
	switch err.(type) {
	case *CircuitOpenError, *RateLimitedError, *BulkheadFullError:
		return false
	default:
		return true
	}
}
