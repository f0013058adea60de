package config

import (
	"strings"
	"time"
)

type Config struct {
	Logging    LoggingConfig    `json:"logging"`
	Server     ServerConfig     `json:"server"`
	GraceStore GraceStoreConfig `json:"grace_store"`
	Dispatch   DispatchConfig   `json:"dispatch"`

	// Routes are the delivery paths: one validated, immutable config per
	// source. Replaced wholesale on reload, never mutated in place.
	Routes []*Route `json:"routes"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ServerConfig controls the ingest HTTP listener.
// All durations are Go duration strings (e.g. "500ms", "10s", "1m").
type ServerConfig struct {
	Addr         string `json:"addr,omitempty"` // default: "127.0.0.1:8480"
	ReadTimeout  string `json:"read_timeout,omitempty"`
	WriteTimeout string `json:"write_timeout,omitempty"`
	IdleTimeout  string `json:"idle_timeout,omitempty"`
}

// GraceStoreConfig selects where per-source last-pass timestamps live.
//
// Driver "memory" (default) is correct for a single process; "sqlite" keeps
// the window correct across restarts and across workers sharing the file.
type GraceStoreConfig struct {
	Driver        string `json:"driver,omitempty"`
	Path          string `json:"path,omitempty"`
	BusyTimeout   string `json:"busy_timeout,omitempty"`    // sqlite only
	PruneSchedule string `json:"prune_schedule,omitempty"`  // cron spec, default "@every 1h"
	PruneIdle     string `json:"prune_idle,omitempty"`      // default "24h"
}

// DispatchConfig tunes outbound webhook calls.
type DispatchConfig struct {
	// RatePerSec throttles POSTs across all routes; 0 disables the
	// client-side throttle.
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	Timeout    string `json:"timeout,omitempty"` // default "15s"
}

// Source identifies the logical event stream a route is bound to. The name
// keys the grace window; the id appears in routes' ingest URLs and deep
// links.
type Source struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Route binds one source to one webhook backend. Created and validated once
// at load time, read-only afterwards.
//
// Level is a pointer so an explicit 0 (emergency-only) can be told apart
// from an omitted field (default 3).
type Route struct {
	Source  Source `json:"source"`
	Backend string `json:"backend"`

	WebhookURL string `json:"webhook_url"`
	Channel    string `json:"channel,omitempty"`

	Level     *int `json:"level,omitempty"`      // 0..7, default 3
	Grace     int  `json:"grace,omitempty"`      // seconds, 1..60, default 10
	TextLimit int  `json:"text_limit,omitempty"` // characters, 100..3000, default 500

	IgnoredFacilities string `json:"ignored_facilities,omitempty"` // comma-separated
	AdditionalFields  string `json:"additional_fields,omitempty"`  // comma-separated

	// BaseURL is the log platform's web UI root, used to build "View"
	// deep links.
	BaseURL string `json:"base_url"`
}

func (r *Route) SeverityLevel() int {
	if r.Level == nil {
		return defaultLevel
	}
	return *r.Level
}

func (r *Route) GraceWindow() time.Duration {
	return time.Duration(r.Grace) * time.Second
}

func (r *Route) IgnoredFacilityList() []string {
	return splitCSV(r.IgnoredFacilities)
}

func (r *Route) AdditionalFieldList() []string {
	return splitCSV(r.AdditionalFields)
}

// splitCSV splits a comma-separated list, trimming entries and dropping
// empty ones.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
