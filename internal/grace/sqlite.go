package grace

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"carrier/pkg/logx"
)

// sqliteGate persists last-pass timestamps in a SQLite file so the grace
// window stays correct across process restarts and across multiple workers
// sharing the same database.
type sqliteGate struct {
	db  *sql.DB
	log logx.Logger

	now func() time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS grace (
    key     TEXT PRIMARY KEY,
    last_ms INTEGER NOT NULL
);`

func openSQLite(cfg Config, log logx.Logger) (Gate, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New("grace: sqlite path is required")
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("grace: migrate: %w", err)
	}
	return &sqliteGate{db: db, log: log, now: time.Now}, nil
}

// TryPass does the check-and-record in a single conditional upsert, so two
// workers racing on the same source cannot both pass within one window: the
// row update only happens when the stored timestamp is at least a full
// window behind the candidate one.
func (g *sqliteGate) TryPass(ctx context.Context, source string, window time.Duration) (bool, error) {
	if source == "" {
		return false, errEmptySource
	}
	nowMS := g.now().UnixMilli()

	res, err := g.db.ExecContext(ctx,
		`INSERT INTO grace(key, last_ms) VALUES(?, ?)
		 ON CONFLICT(key) DO UPDATE SET last_ms = excluded.last_ms
		 WHERE excluded.last_ms - grace.last_ms >= ?`,
		key(source), nowMS, window.Milliseconds(),
	)
	if err != nil {
		return false, fmt.Errorf("grace: try-and-record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("grace: rows affected: %w", err)
	}
	return n > 0, nil
}

func (g *sqliteGate) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := g.now().Add(-olderThan).UnixMilli()
	res, err := g.db.ExecContext(ctx, `DELETE FROM grace WHERE last_ms < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("grace: prune: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (g *sqliteGate) Close() error {
	if g == nil || g.db == nil {
		return nil
	}
	return g.db.Close()
}
