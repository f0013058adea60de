package grace

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"carrier/pkg/logx"
)

func openTestGate(t *testing.T, path string) Gate {
	t.Helper()
	g, err := Open(Config{Driver: "sqlite", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestSQLiteTryPassWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grace.db")
	g := openTestGate(t, path)
	ctx := context.Background()

	ok, err := g.TryPass(ctx, "web", 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("first pass = %v/%v, want true", ok, err)
	}
	ok, err = g.TryPass(ctx, "web", 30*time.Second)
	if err != nil || ok {
		t.Fatalf("pass inside window = %v/%v, want false", ok, err)
	}

	// Different source, independent window.
	if ok, _ := g.TryPass(ctx, "db", 30*time.Second); !ok {
		t.Fatal("independent source should pass")
	}

	// Move the clock past the window; the same source passes again.
	sq := g.(*sqliteGate)
	sq.now = func() time.Time { return time.Now().Add(time.Minute) }
	if ok, _ := g.TryPass(ctx, "web", 30*time.Second); !ok {
		t.Fatal("pass after window should succeed")
	}
}

func TestSQLiteStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grace.db")
	ctx := context.Background()

	g1 := openTestGate(t, path)
	if ok, _ := g1.TryPass(ctx, "web", time.Minute); !ok {
		t.Fatal("first pass should succeed")
	}
	if err := g1.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	// Simulates a restart or a second worker on the same database.
	g2 := openTestGate(t, path)
	if ok, _ := g2.TryPass(ctx, "web", time.Minute); ok {
		t.Fatal("window must hold across reopen")
	}
}

func TestSQLitePrune(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grace.db")
	g := openTestGate(t, path)
	ctx := context.Background()

	if ok, _ := g.TryPass(ctx, "web", time.Second); !ok {
		t.Fatal("seed pass failed")
	}

	sq := g.(*sqliteGate)
	sq.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	removed, err := g.Prune(ctx, time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Prune removed %d, want 1", removed)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "etcd"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpenDefaultsToMemory(t *testing.T) {
	t.Parallel()
	g, err := Open(Config{}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := g.(*MemoryGate); !ok {
		t.Fatalf("default gate is %T, want *MemoryGate", g)
	}
}
