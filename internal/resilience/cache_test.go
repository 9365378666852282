package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCache_SetGet(t *testing.T) {
	c := newCache(2, time.Minute)

	c.set("a", 1)
	v, ok := c.get("a")
	assert.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := newCache(2, time.Minute)

	c.set("a", 1)
	c.set("b", 2)
	c.get("a") // a is now most-recently-used
	c.set("c", 3)

	_, ok := c.get("b")
	assert.False(t, ok, "b should have been evicted")
	_, ok = c.get("a")
	assert.True(t, ok)
	_, ok = c.get("c")
	assert.True(t, ok)
}

func TestCache_ExpiresByTTL(t *testing.T) {
	c := newCache(10, 10*time.Millisecond)

	c.set("a", 1)
	time.Sleep(20 * time.Millisecond)

	_, ok := c.get("a")
	assert.False(t, ok)
}

func TestCache_Sweep(t *testing.T) {
	c := newCache(10, 10*time.Millisecond)

	c.set("a", 1)
	c.set("b", 2)
	time.Sleep(20 * time.Millisecond)

	removed := c.sweep()
	assert.Equal(t, 2, removed)
	assert.Equal(t, 0, c.len())
}
