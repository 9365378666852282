// Package resilience implements the middleware stack every downstream call
// (tool invocation or LLM request) passes through: an optional cache, rate
// limiting, a bulkhead, a circuit breaker, retry with backoff, and a
// per-attempt timeout. The cache lookup runs first, so a hit bypasses every
// other layer; on a miss the remaining layers apply in the order listed and
// a successful result is stored in the cache.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/jrvs-oss/toolgateway/internal/config"
	"github.com/jrvs-oss/toolgateway/internal/metrics"
	"github.com/jrvs-oss/toolgateway/pkg/logging"
)

// CallOptions parameterizes one Execute invocation.
type CallOptions struct {
	// Endpoint is the circuit-breaker and rate-limit key, e.g.
	// "tool:filesystem.read_file" or "llm:generate" (see GLOSSARY).
	Endpoint string
	// BulkheadClass selects which concurrency gate applies, e.g. "tool",
	// "llm.generate", "llm.embed".
	BulkheadClass string
	// ClientID scopes the rate limiter; the CLI's single session uses a
	// constant ID, but the key exists so a future multi-caller front end
	// doesn't require a pipeline change.
	ClientID string
	// CacheName selects one of the four named caches (rag, ollama,
	// scraper, general); empty disables caching for this call.
	CacheName string
	// CacheKey is the cache lookup key; ignored if CacheName is empty.
	CacheKey string
	// Timeout overrides resilience.timeouts.call for each attempt of this
	// call; zero uses resilience.timeouts.call.
	Timeout time.Duration
}

// Pipeline owns the shared state every call routes through: the per-endpoint
// circuit breakers, the bulkhead semaphores, the rate limiters, and the
// named caches.
type Pipeline struct {
	cfg      *config.Config
	recorder *metrics.Recorder

	circuitsMu sync.Mutex
	circuits   map[string]*circuitBreaker

	bulkheads *bulkheadGroup
	limiters  *rateLimiterGroup

	cachesMu sync.Mutex
	caches   map[string]*cache

	sweepStop chan struct{}
}

// New builds a Pipeline from the resolved configuration's resilience
// section. recorder may be nil, in which case cache/retry/circuit metrics
// are simply not recorded.
func New(cfg *config.Config, recorder *metrics.Recorder) *Pipeline {
	bulkheadCaps := make(map[string]int, len(cfg.Resilience.Bulkheads))
	for class, b := range cfg.Resilience.Bulkheads {
		bulkheadCaps[class] = b.MaxConcurrent
	}

	p := &Pipeline{
		cfg:       cfg,
		recorder:  recorder,
		circuits:  make(map[string]*circuitBreaker),
		bulkheads: newBulkheadGroup(bulkheadCaps),
		limiters:  newRateLimiterGroup(cfg.Resilience.RateLimit),
		caches:    make(map[string]*cache),
	}

	if cfg.Resilience.Caches.Enabled {
		p.caches["rag"] = newCache(cfg.Resilience.Caches.RAG.Capacity, cfg.Resilience.Caches.RAG.TTL)
		p.caches["ollama"] = newCache(cfg.Resilience.Caches.Ollama.Capacity, cfg.Resilience.Caches.Ollama.TTL)
		p.caches["scraper"] = newCache(cfg.Resilience.Caches.Scraper.Capacity, cfg.Resilience.Caches.Scraper.TTL)
		p.caches["general"] = newCache(cfg.Resilience.Caches.General.Capacity, cfg.Resilience.Caches.General.TTL)
	}

	return p
}

// StartSweeper launches a background goroutine that periodically evicts
// expired cache entries until ctx is done. Call at most once per Pipeline.
func (p *Pipeline) StartSweeper(ctx context.Context) {
	if !p.cfg.Resilience.Caches.Enabled {
		return
	}
	interval := p.cfg.Resilience.Caches.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	p.sweepStop = make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-p.sweepStop:
				return
			case <-ticker.C:
				p.cachesMu.Lock()
				for name, c := range p.caches {
					if n := c.sweep(); n > 0 {
						logging.Debug("Resilience", "cache %s: swept %d expired entries", name, n)
					}
				}
				p.cachesMu.Unlock()
			}
		}
	}()
}

// Stop halts the sweeper goroutine, if running.
func (p *Pipeline) Stop() {
	if p.sweepStop != nil {
		close(p.sweepStop)
	}
}

func (p *Pipeline) circuitFor(endpoint string) *circuitBreaker {
	p.circuitsMu.Lock()
	defer p.circuitsMu.Unlock()
	if cb, ok := p.circuits[endpoint]; ok {
		return cb
	}
	cb := newCircuitBreaker(p.cfg.Resilience.Circuit)
	p.circuits[endpoint] = cb
	return cb
}

// Execute runs fn through the full middleware stack for opts. The returned
// error is one of: RateLimitedError, BulkheadFullError, CircuitOpenError, or
// RetriesExhaustedError, which wraps the error fn returned on its final
// attempt.
func (p *Pipeline) Execute(ctx context.Context, opts CallOptions, fn func(ctx context.Context) (any, error)) (any, error) {
	if opts.CacheName != "" {
		if v, ok := p.cacheGet(opts.CacheName, opts.CacheKey); ok {
			if p.recorder != nil {
				p.recorder.ObserveCacheHit(opts.CacheName)
			}
			return v, nil
		}
	}

	if !p.limiters.allow(opts.Endpoint, clientKey(opts.ClientID)) {
		return nil, &RateLimitedError{Endpoint: opts.Endpoint}
	}

	release, err := p.bulkheads.acquire(ctx, opts.BulkheadClass)
	if err != nil {
		return nil, err
	}
	defer release()

	circuit := p.circuitFor(opts.Endpoint)
	if !circuit.allow(opts.Endpoint) {
		return nil, &CircuitOpenError{Endpoint: opts.Endpoint}
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = p.cfg.Resilience.Timeouts.Call
	}

	result, attempts, err := retryable(ctx, opts.Endpoint, p.cfg.Resilience.Retry, func(ctx context.Context) (any, error) {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return fn(callCtx)
	})

	if p.recorder != nil {
		p.recorder.ObserveRetries(opts.Endpoint, attempts)
	}

	if err != nil {
		circuit.recordFailure(opts.Endpoint)
		p.reportCircuitState(opts.Endpoint, circuit)
		return nil, err
	}
	circuit.recordSuccess(opts.Endpoint)
	p.reportCircuitState(opts.Endpoint, circuit)

	if opts.CacheName != "" {
		p.cacheSet(opts.CacheName, opts.CacheKey, result)
	}
	return result, nil
}

func (p *Pipeline) reportCircuitState(endpoint string, circuit *circuitBreaker) {
	if p.recorder != nil {
		state := 0
		switch circuit.currentState() {
		case circuitHalfOpen:
			state = 1
		case circuitOpen:
			state = 2
		}
		p.recorder.SetCircuitState(endpoint, state)
	}
}

func clientKey(id string) string {
	if id == "" {
		return "default"
	}
	return id
}

func (p *Pipeline) cacheGet(name, key string) (any, bool) {
	p.cachesMu.Lock()
	c, ok := p.caches[name]
	p.cachesMu.Unlock()
	if !ok {
		return nil, false
	}
	return c.get(key)
}

func (p *Pipeline) cacheSet(name, key string, value any) {
	p.cachesMu.Lock()
	c, ok := p.caches[name]
	p.cachesMu.Unlock()
	if !ok {
		return
	}
	c.set(key, value)
}
