package resilience

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// bulkheadGroup bounds concurrent in-flight calls per named class (e.g.
// "tool", "llm.generate"), preventing one slow downstream from starving the
// rest of the gateway.
type bulkheadGroup struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
	caps map[string]int
}

func newBulkheadGroup(caps map[string]int) *bulkheadGroup {
	return &bulkheadGroup{sems: make(map[string]*semaphore.Weighted), caps: caps}
}

func (g *bulkheadGroup) semaphoreFor(class string) *semaphore.Weighted {
	g.mu.Lock()
	defer g.mu.Unlock()

	if sem, ok := g.sems[class]; ok {
		return sem
	}
	n := g.caps[class]
	if n <= 0 {
		n = 1
	}
	sem := semaphore.NewWeighted(int64(n))
	g.sems[class] = sem
	return sem
}

// acquire takes a non-blocking slot if one is free, returning
// BulkheadFullError immediately when the class is already at capacity
// rather than queuing behind whatever is currently holding it. A blocked
// caller behind a slow downstream is exactly the pile-up a bulkhead exists
// to prevent, so this class rejects instead of waiting.
func (g *bulkheadGroup) acquire(ctx context.Context, class string) (func(), error) {
	sem := g.semaphoreFor(class)
	if !sem.TryAcquire(1) {
		return nil, &BulkheadFullError{Class: class}
	}
	return func() { sem.Release(1) }, nil
}
