package resilience

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBulkheadGroup_RejectsBeyondCapacity(t *testing.T) {
	g := newBulkheadGroup(map[string]int{"tool": 1})

	release1, err := g.acquire(context.Background(), "tool")
	require.NoError(t, err)

	_, err = g.acquire(context.Background(), "tool")
	require.Error(t, err)
	var full *BulkheadFullError
	assert.ErrorAs(t, err, &full)
	assert.Equal(t, "tool", full.Class)

	release1()
	release2, err := g.acquire(context.Background(), "tool")
	require.NoError(t, err)
	release2()
}

func TestBulkheadGroup_DefaultsToOneWhenUnconfigured(t *testing.T) {
	g := newBulkheadGroup(map[string]int{})
	release, err := g.acquire(context.Background(), "unlisted")
	require.NoError(t, err)
	release()
}
