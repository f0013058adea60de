package grace

import (
	"context"
	"sync"
	"time"
)

// MemoryGate is the single-process Gate: a mutex-protected map of last-pass
// timestamps. The whole check-then-update runs under one lock, so concurrent
// TryPass calls for the same source admit exactly one caller per window.
//
// Contention across sources is expected to be low (one short critical
// section per admitted event), so a single lock over the map is enough.
type MemoryGate struct {
	mu   sync.Mutex
	last map[string]time.Time

	now func() time.Time // injectable for tests
}

func NewMemory() *MemoryGate {
	return &MemoryGate{
		last: make(map[string]time.Time),
		now:  time.Now,
	}
}

func (g *MemoryGate) TryPass(ctx context.Context, source string, window time.Duration) (bool, error) {
	if source == "" {
		return false, errEmptySource
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	k := key(source)
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	last, ok := g.last[k]
	if ok && now.Sub(last) < window {
		return false, nil
	}
	g.last[k] = now
	return true, nil
}

func (g *MemoryGate) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	cutoff := g.now().Add(-olderThan)

	g.mu.Lock()
	defer g.mu.Unlock()

	removed := 0
	for k, last := range g.last {
		if last.Before(cutoff) {
			delete(g.last, k)
			removed++
		}
	}
	return removed, nil
}

func (g *MemoryGate) Close() error { return nil }
