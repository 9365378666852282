package resilience

import (
	"sync"
	"time"

	"github.com/jrvs-oss/toolgateway/internal/config"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// circuitState is one state of the per-endpoint breaker.
type circuitState int

const (
	circuitClosed circuitState = iota
	circuitOpen
	circuitHalfOpen
)

func (s circuitState) String() string {
	switch s {
	case circuitClosed:
		return "closed"
	case circuitOpen:
		return "open"
	case circuitHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// circuitBreaker trips after FailureThreshold consecutive failures, rejects
// calls for RecoveryTimeout, then admits exactly one probe call in
// HalfOpen: success closes it, failure re-opens it for another full
// RecoveryTimeout.
type circuitBreaker struct {
	cfg config.CircuitBreakerConfig

	mu              sync.Mutex
	state           circuitState
	consecutiveFail int
	openedAt        time.Time
}

func newCircuitBreaker(cfg config.CircuitBreakerConfig) *circuitBreaker {
	return &circuitBreaker{cfg: cfg, state: circuitClosed}
}

// allow reports whether a call may proceed, transitioning Open to HalfOpen
// once RecoveryTimeout has elapsed. It returns false while a HalfOpen probe
// is already in flight, so only one probe is ever outstanding at a time.
func (b *circuitBreaker) allow(endpoint string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case circuitClosed:
		return true
	case circuitOpen:
		if time.Since(b.openedAt) < b.cfg.RecoveryTimeout {
			return false
		}
		b.state = circuitHalfOpen
		logging.Info("Resilience", "circuit for %s entering half-open probe", endpoint)
		return true
	case circuitHalfOpen:
		return false
	default:
		return true
	}
}

func (b *circuitBreaker) recordSuccess(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state != circuitClosed {
		logging.Info("Resilience", "circuit for %s closed after successful probe", endpoint)
	}
	b.state = circuitClosed
	b.consecutiveFail = 0
}

func (b *circuitBreaker) recordFailure(endpoint string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == circuitHalfOpen {
		b.trip(endpoint)
		return
	}

	b.consecutiveFail++
	if b.consecutiveFail >= b.cfg.FailureThreshold {
		b.trip(endpoint)
	}
}

// trip must be called with mu held.
func (b *circuitBreaker) trip(endpoint string) {
	if b.state != circuitOpen {
		logging.Warn("Resilience", "circuit for %s tripped open after %d failures", endpoint, b.consecutiveFail)
	}
	b.state = circuitOpen
	b.openedAt = time.Now()
}

func (b *circuitBreaker) currentState() circuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}
