package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jrvs-oss/toolgateway/internal/config"
)

func TestRateLimiterGroup_DisabledAlwaysAllows(t *testing.T) {
	g := newRateLimiterGroup(config.RateLimitConfig{Enabled: false})
	for i := 0; i < 100; i++ {
		assert.True(t, g.allow("ep", "client"))
	}
}

func TestRateLimiterGroup_BurstThenRejects(t *testing.T) {
	g := newRateLimiterGroup(config.RateLimitConfig{Enabled: true, PerMinute: 60, Burst: 2})

	assert.True(t, g.allow("ep", "client"))
	assert.True(t, g.allow("ep", "client"))
	assert.False(t, g.allow("ep", "client"))
}

func TestRateLimiterGroup_ScopedPerClient(t *testing.T) {
	g := newRateLimiterGroup(config.RateLimitConfig{Enabled: true, PerMinute: 60, Burst: 1})

	assert.True(t, g.allow("ep", "alice"))
	assert.False(t, g.allow("ep", "alice"))
	assert.True(t, g.allow("ep", "bob"))
}
