package grace

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryTryPassWindow(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := base
	g := NewMemory()
	g.now = func() time.Time { return clock }

	ctx := context.Background()
	const window = 10 * time.Second

	ok, err := g.TryPass(ctx, "web", window)
	if err != nil || !ok {
		t.Fatalf("first pass = %v/%v, want true", ok, err)
	}

	clock = base.Add(2 * time.Second)
	ok, err = g.TryPass(ctx, "web", window)
	if err != nil || ok {
		t.Fatalf("pass inside window = %v/%v, want false", ok, err)
	}

	// A blocked attempt must not extend the window.
	clock = base.Add(window)
	ok, err = g.TryPass(ctx, "web", window)
	if err != nil || !ok {
		t.Fatalf("pass at window boundary = %v/%v, want true", ok, err)
	}

	// The allowed pass resets the window.
	clock = base.Add(window + 2*time.Second)
	ok, err = g.TryPass(ctx, "web", window)
	if err != nil || ok {
		t.Fatalf("pass after reset = %v/%v, want false", ok, err)
	}
}

func TestMemoryTryPassIndependentSources(t *testing.T) {
	t.Parallel()
	g := NewMemory()
	ctx := context.Background()

	if ok, _ := g.TryPass(ctx, "web", time.Minute); !ok {
		t.Fatal("first source should pass")
	}
	if ok, _ := g.TryPass(ctx, "db", time.Minute); !ok {
		t.Fatal("second source should pass independently")
	}
	if ok, _ := g.TryPass(ctx, "web", time.Minute); ok {
		t.Fatal("repeat for first source should be blocked")
	}
}

func TestMemoryTryPassEmptySource(t *testing.T) {
	t.Parallel()
	g := NewMemory()
	if _, err := g.TryPass(context.Background(), "", time.Minute); err == nil {
		t.Fatal("expected error for empty source")
	}
}

func TestMemoryTryPassConcurrent(t *testing.T) {
	t.Parallel()
	g := NewMemory()
	ctx := context.Background()

	const n = 64
	var wg sync.WaitGroup
	passed := make(chan struct{}, n)
	start := make(chan struct{})

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			ok, err := g.TryPass(ctx, "web", time.Minute)
			if err != nil {
				t.Errorf("TryPass: %v", err)
				return
			}
			if ok {
				passed <- struct{}{}
			}
		}()
	}
	close(start)
	wg.Wait()
	close(passed)

	if got := len(passed); got != 1 {
		t.Fatalf("admitted %d callers, want exactly 1", got)
	}
}

func TestMemoryPrune(t *testing.T) {
	t.Parallel()
	base := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	clock := base
	g := NewMemory()
	g.now = func() time.Time { return clock }
	ctx := context.Background()

	if ok, _ := g.TryPass(ctx, "old", time.Second); !ok {
		t.Fatal("seed pass failed")
	}
	clock = base.Add(2 * time.Hour)
	if ok, _ := g.TryPass(ctx, "fresh", time.Second); !ok {
		t.Fatal("seed pass failed")
	}

	removed, err := g.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Prune removed %d, want 1", removed)
	}
	// Pruned source behaves like a first-timer again.
	if ok, _ := g.TryPass(ctx, "old", time.Hour); !ok {
		t.Fatal("pruned source should pass")
	}
}
