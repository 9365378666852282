package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jrvs-oss/toolgateway/internal/config"
)

func TestCircuitBreaker_TripsAfterThreshold(t *testing.T) {
	cb := newCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 3, RecoveryTimeout: time.Hour})

	assert.True(t, cb.allow("ep"))
	cb.recordFailure("ep")
	cb.recordFailure("ep")
	assert.Equal(t, circuitClosed, cb.currentState())
	cb.recordFailure("ep")

	assert.Equal(t, circuitOpen, cb.currentState())
	assert.False(t, cb.allow("ep"))
}

func TestCircuitBreaker_HalfOpenProbeSucceeds(t *testing.T) {
	cb := newCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})

	cb.recordFailure("ep")
	assert.Equal(t, circuitOpen, cb.currentState())

	time.Sleep(15 * time.Millisecond)
	assert.True(t, cb.allow("ep")) // transitions to half-open
	assert.Equal(t, circuitHalfOpen, cb.currentState())
	assert.False(t, cb.allow("ep")) // second concurrent probe rejected

	cb.recordSuccess("ep")
	assert.Equal(t, circuitClosed, cb.currentState())
	assert.True(t, cb.allow("ep"))
}

func TestCircuitBreaker_HalfOpenProbeFailsReopens(t *testing.T) {
	cb := newCircuitBreaker(config.CircuitBreakerConfig{FailureThreshold: 1, RecoveryTimeout: 10 * time.Millisecond})

	cb.recordFailure("ep")
	time.Sleep(15 * time.Millisecond)
	assert.True(t, cb.allow("ep"))

	cb.recordFailure("ep")
	assert.Equal(t, circuitOpen, cb.currentState())
}
