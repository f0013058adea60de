// Package grace implements the per-source grace window: at most one
// forwarded notification per source per window, no matter how many events
// arrive. It replaces the usual file-mtime lock trick with an explicit
// key-value store exposing one atomic try-and-record operation.
package grace

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"time"

	"carrier/pkg/logx"
)

// Gate is the rate limiter keyed by source identity.
//
// TryPass is a single atomic check-then-record: it returns true and records
// "now" as the source's last-pass time iff no pass is recorded yet or the
// window has elapsed since the last one; otherwise it returns false and
// leaves state unchanged. A storage error fails that delivery attempt, it is
// never a silent pass-through.
type Gate interface {
	TryPass(ctx context.Context, source string, window time.Duration) (bool, error)

	// Prune drops entries idle for longer than olderThan. Entries older
	// than the maximum window are inert, pruning only bounds growth.
	Prune(ctx context.Context, olderThan time.Duration) (int, error)

	Close() error
}

// Config selects the gate driver.
//
// Driver values:
//   - "" or "memory": in-process mutex-protected map
//   - "sqlite": SQLite database file, correct across processes sharing it
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Open initializes the configured gate.
func Open(cfg Config, log logx.Logger) (Gate, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	switch driver := strings.ToLower(strings.TrimSpace(cfg.Driver)); driver {
	case "", "memory":
		return NewMemory(), nil
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, fmt.Errorf("unknown grace store driver: %q", driver)
	}
}

var errEmptySource = errors.New("grace: empty source")

// key returns the stable storage key for a source name. Hashing keeps the
// key short and filesystem/SQL-safe regardless of what the name contains,
// and stays stable across restarts and workers.
func key(source string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(source))
	return fmt.Sprintf("%016x", h.Sum64())
}
