package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"carrier/internal/render"
)

// Bounds mirror the upstream plugin's configuration form.
const (
	defaultLevel = 3
	minLevel     = 0
	maxLevel     = 7

	defaultGrace = 10
	minGrace     = 1
	maxGrace     = 60

	defaultTextLimit = 500
	minTextLimit     = 100
	maxTextLimit     = 3000

	maxIgnoredFacilitiesLen = 500
	maxAdditionalFieldsLen  = 500
)

// Validate checks the whole config and fills in defaults. A route that
// fails validation prevents startup (or a reload commit); invalid
// configuration is never partially applied.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		c.Server.Addr = "127.0.0.1:8480"
	}
	if c.GraceStore.PruneSchedule == "" {
		c.GraceStore.PruneSchedule = "@every 1h"
	}
	if c.GraceStore.PruneIdle == "" {
		c.GraceStore.PruneIdle = "24h"
	}
	if _, err := time.ParseDuration(c.GraceStore.PruneIdle); err != nil {
		return fmt.Errorf("grace_store.prune_idle: %w", err)
	}
	if c.Dispatch.Timeout == "" {
		c.Dispatch.Timeout = "15s"
	}
	if _, err := time.ParseDuration(c.Dispatch.Timeout); err != nil {
		return fmt.Errorf("dispatch.timeout: %w", err)
	}
	if c.Dispatch.RatePerSec < 0 {
		return fmt.Errorf("dispatch.rate_per_sec must not be negative")
	}

	if len(c.Routes) == 0 {
		return fmt.Errorf("at least one route is required")
	}
	seen := make(map[string]bool, len(c.Routes))
	for i, r := range c.Routes {
		if err := r.validate(); err != nil {
			return fmt.Errorf("routes[%d]: %w", i, err)
		}
		if seen[r.Source.ID] {
			return fmt.Errorf("routes[%d]: duplicate source id %q", i, r.Source.ID)
		}
		seen[r.Source.ID] = true
	}
	return nil
}

func (r *Route) validate() error {
	if strings.TrimSpace(r.Source.ID) == "" {
		return fmt.Errorf("source.id is required")
	}
	if strings.TrimSpace(r.Source.Name) == "" {
		return fmt.Errorf("source.name is required")
	}

	if strings.TrimSpace(r.Backend) == "" {
		return fmt.Errorf("backend is required")
	}
	if !render.Supported(r.Backend) {
		return fmt.Errorf("unsupported backend %q (have: %s)", r.Backend, strings.Join(render.Backends(), ", "))
	}

	if err := checkURL("webhook_url", r.WebhookURL); err != nil {
		return err
	}
	if err := checkURL("base_url", r.BaseURL); err != nil {
		return err
	}

	if r.Level == nil {
		lvl := defaultLevel
		r.Level = &lvl
	}
	if *r.Level < minLevel || *r.Level > maxLevel {
		return fmt.Errorf("level %d out of range [%d,%d]", *r.Level, minLevel, maxLevel)
	}

	if r.Grace == 0 {
		r.Grace = defaultGrace
	}
	if r.Grace < minGrace || r.Grace > maxGrace {
		return fmt.Errorf("grace %d out of range [%d,%d] seconds", r.Grace, minGrace, maxGrace)
	}

	if r.TextLimit == 0 {
		r.TextLimit = defaultTextLimit
	}
	if r.TextLimit < minTextLimit || r.TextLimit > maxTextLimit {
		return fmt.Errorf("text_limit %d out of range [%d,%d]", r.TextLimit, minTextLimit, maxTextLimit)
	}

	if len(r.IgnoredFacilities) > maxIgnoredFacilitiesLen {
		return fmt.Errorf("ignored_facilities is too long (limit %d)", maxIgnoredFacilitiesLen)
	}
	if len(r.AdditionalFields) > maxAdditionalFieldsLen {
		return fmt.Errorf("additional_fields is too long (limit %d)", maxAdditionalFieldsLen)
	}
	return nil
}

func checkURL(field, raw string) error {
	if strings.TrimSpace(raw) == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s must be a valid HTTP/HTTPS URL", field)
	}
	return nil
}
