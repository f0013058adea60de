package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validRoute() *Route {
	return &Route{
		Source:     Source{ID: "web", Name: "Web frontend"},
		Backend:    "slack",
		WebhookURL: "https://hooks.example.com/T/B/x",
		BaseURL:    "https://logs.example.com/",
	}
}

func validConfig() *Config {
	return &Config{Routes: []*Route{validRoute()}}
}

func TestValidateDefaults(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	r := cfg.Routes[0]
	if r.SeverityLevel() != 3 {
		t.Fatalf("default level = %d, want 3", r.SeverityLevel())
	}
	if r.Grace != 10 || r.GraceWindow() != 10*time.Second {
		t.Fatalf("default grace = %d", r.Grace)
	}
	if r.TextLimit != 500 {
		t.Fatalf("default text_limit = %d", r.TextLimit)
	}
	if cfg.Server.Addr == "" || cfg.GraceStore.PruneSchedule == "" || cfg.Dispatch.Timeout == "" {
		t.Fatalf("missing section defaults: %+v", cfg)
	}
}

func TestValidateExplicitZeroLevel(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	zero := 0
	cfg.Routes[0].Level = &zero
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Routes[0].SeverityLevel() != 0 {
		t.Fatal("explicit level 0 must not be replaced by the default")
	}
}

func TestValidateRejections(t *testing.T) {
	t.Parallel()
	lvl9 := 9
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantSub string
	}{
		{name: "no routes", mutate: func(c *Config) { c.Routes = nil }, wantSub: "at least one route"},
		{name: "missing source id", mutate: func(c *Config) { c.Routes[0].Source.ID = "" }, wantSub: "source.id"},
		{name: "missing source name", mutate: func(c *Config) { c.Routes[0].Source.Name = " " }, wantSub: "source.name"},
		{name: "unknown backend", mutate: func(c *Config) { c.Routes[0].Backend = "discord" }, wantSub: "unsupported backend"},
		{name: "missing webhook", mutate: func(c *Config) { c.Routes[0].WebhookURL = "" }, wantSub: "webhook_url"},
		{name: "bad webhook scheme", mutate: func(c *Config) { c.Routes[0].WebhookURL = "ftp://x" }, wantSub: "webhook_url"},
		{name: "bad base url", mutate: func(c *Config) { c.Routes[0].BaseURL = "not a url://" }, wantSub: "base_url"},
		{name: "level out of range", mutate: func(c *Config) { c.Routes[0].Level = &lvl9 }, wantSub: "level"},
		{name: "grace too long", mutate: func(c *Config) { c.Routes[0].Grace = 61 }, wantSub: "grace"},
		{name: "text limit too small", mutate: func(c *Config) { c.Routes[0].TextLimit = 99 }, wantSub: "text_limit"},
		{name: "ignored facilities too long", mutate: func(c *Config) { c.Routes[0].IgnoredFacilities = strings.Repeat("a", 501) }, wantSub: "ignored_facilities"},
		{name: "additional fields too long", mutate: func(c *Config) { c.Routes[0].AdditionalFields = strings.Repeat("a", 501) }, wantSub: "additional_fields"},
		{name: "duplicate source id", mutate: func(c *Config) { c.Routes = append(c.Routes, validRoute()) }, wantSub: "duplicate"},
		{name: "negative dispatch rate", mutate: func(c *Config) { c.Dispatch.RatePerSec = -1 }, wantSub: "rate_per_sec"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestSplitCSV(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want []string
	}{
		{in: "", want: nil},
		{in: "  ", want: nil},
		{in: "one, two", want: []string{"one", "two"}},
		{in: "one,,two,", want: []string{"one", "two"}},
	}
	for _, tt := range tests {
		got := splitCSV(tt.in)
		if len(got) != len(tt.want) {
			t.Fatalf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Fatalf("splitCSV(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

const sampleYAML = `
logging:
  level: debug
  console: true
server:
  addr: "127.0.0.1:9999"
grace_store:
  driver: sqlite
  path: ./grace.db
dispatch:
  rate_per_sec: 5
routes:
  - source:
      id: web
      name: Web frontend
    backend: telegram
    webhook_url: https://api.telegram.org/botTOKEN/sendMessage
    channel: "-100123"
    level: 4
    grace: 30
    ignored_facilities: "auth, cron"
    additional_fields: "region"
    base_url: https://logs.example.com/
`

func TestManagerLoadYAML(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "carrier.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get should return the committed config")
	}

	r := cfg.Routes[0]
	if r.Backend != "telegram" || r.SeverityLevel() != 4 || r.Grace != 30 {
		t.Fatalf("unexpected route: %+v", r)
	}
	ign := r.IgnoredFacilityList()
	if len(ign) != 2 || ign[0] != "auth" || ign[1] != "cron" {
		t.Fatalf("ignored facilities = %v", ign)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Fatalf("server addr = %q", cfg.Server.Addr)
	}
}

func TestManagerRejectsUnknownFields(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "carrier.yaml")
	bad := sampleYAML + "\nmystery_knob: true\n"
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := NewManager(path).Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}
