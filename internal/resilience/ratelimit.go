package resilience

import (
	"sync"

	"golang.org/x/time/rate"

	"github.com/jrvs-oss/toolgateway/internal/config"
)

// rateLimiterGroup hands out a token-bucket limiter per (endpoint, client)
// pair, created lazily on first use.
type rateLimiterGroup struct {
	cfg config.RateLimitConfig

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func newRateLimiterGroup(cfg config.RateLimitConfig) *rateLimiterGroup {
	return &rateLimiterGroup{cfg: cfg, limiters: make(map[string]*rate.Limiter)}
}

func (g *rateLimiterGroup) limiterFor(key string) *rate.Limiter {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l, ok := g.limiters[key]; ok {
		return l
	}
	perSecond := g.cfg.PerMinute / 60.0
	l := rate.NewLimiter(rate.Limit(perSecond), g.cfg.Burst)
	g.limiters[key] = l
	return l
}

// allow reports whether a call for (endpoint, clientID) may proceed right
// now. It never blocks: a rejected call becomes a RateLimitedError rather
// than queuing, since queuing indefinitely behind a slow client would defeat
// the limiter's purpose of protecting the gateway from bursts.
func (g *rateLimiterGroup) allow(endpoint, clientID string) bool {
	if !g.cfg.Enabled {
		return true
	}
	return g.limiterFor(endpoint + "|" + clientID).Allow()
}
