// Package render turns an admitted event into the backend-specific JSON
// webhook body. One renderer per messenger backend; all share the same
// severity/truncation/pretext/link semantics and differ only in JSON shape
// and markup.
package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"html"
	"sort"
	"strings"

	"carrier/internal/event"
	"carrier/pkg/logx"
)

// Renderer produces the JSON payload for one event. Render is pure: the
// same event and config always yield the same string.
type Renderer interface {
	Render(ev *event.Event) (string, error)
}

// Config is the slice of a route's configuration the renderers need.
type Config struct {
	Channel   string
	BaseURL   string
	SourceID  string // fallback stream id for links
	TextLimit int

	// AdditionalFields are surfaced in the pretext line on top of the
	// fixed app/env/source trio.
	AdditionalFields []string
}

// senderName is the bot display name carried in payloads that have a
// username field.
const senderName = "Carrier"

type builder func(cfg Config, log logx.Logger) Renderer

var registry = map[string]builder{
	"slack":      newSlack,
	"mattermost": newMattermost,
	"telegram":   newTelegram,
}

// Backends lists the supported backend tags, sorted.
func Backends() []string {
	tags := make([]string, 0, len(registry))
	for tag := range registry {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Supported reports whether tag names a known backend.
func Supported(tag string) bool {
	_, ok := registry[normalizeTag(tag)]
	return ok
}

// New resolves the renderer for the configured backend tag. Resolution
// happens once per route at setup time, not per event.
func New(backend string, cfg Config, log logx.Logger) (Renderer, error) {
	b, ok := registry[normalizeTag(backend)]
	if !ok {
		return nil, fmt.Errorf("unsupported backend %q (have: %s)", backend, strings.Join(Backends(), ", "))
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return b(cfg, log), nil
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// ---- shared semantics ----

// severityClass buckets syslog levels into the three visual markers.
type severityClass int

const (
	sevCritical severityClass = iota
	sevWarning
	sevOK
)

func classify(level int) severityClass {
	switch level {
	case 0, 1, 2, 3:
		return sevCritical
	case 4:
		return sevWarning
	}
	return sevOK
}

// fieldList is the pretext field order: the fixed trio first, then the
// configured extras.
func fieldList(cfg Config) []string {
	fields := []string{"app", "env", "source"}
	for _, f := range cfg.AdditionalFields {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// messageText HTML-escapes the event message and truncates it to exactly
// limit characters plus an ellipsis marker when it runs longer. Truncation
// counts runes of the escaped text, matching the inherited behavior of
// escaping before measuring.
func messageText(ev *event.Event, limit int) string {
	text := html.EscapeString(ev.Message)
	r := []rune(text)
	if len(r) <= limit {
		return text
	}
	return string(r[:limit]) + "..."
}

// pretext concatenates a "key: value" fragment per present field using the
// backend's markup format (e.g. "*%s*: %s "), trimming trailing whitespace.
func pretext(x event.Extractor, ev *event.Event, fields []string, format string) string {
	var b strings.Builder
	for _, field := range fields {
		if v, ok := x.StringField(ev, field); ok {
			fmt.Fprintf(&b, format, field, v)
		}
	}
	return strings.TrimSpace(b.String())
}

// eventLink builds the deep link back to the event in the source system.
func eventLink(cfg Config, ev *event.Event) string {
	sid := ev.FirstSourceID(cfg.SourceID)
	return fmt.Sprintf("%sstreams/%s/search?relative=0&q=_id:%s", cfg.BaseURL, sid, ev.ID)
}

// timestamp renders the event time in the local zone as a medium-length
// human-readable date-time.
func timestamp(ev *event.Event) string {
	return ev.Timestamp.Local().Format("Jan 2, 2006 3:04:05 PM")
}

// marshal encodes a payload struct without HTML escaping: Slack's
// "<url|View>" and Telegram's anchors must survive as-is.
func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}
