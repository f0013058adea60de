// Package filter decides which events are worth forwarding at all: a syslog
// severity threshold plus an ignored-facility list.
package filter

import (
	"strings"

	"carrier/internal/event"
	"carrier/pkg/logx"
)

// Filter holds the admission rules for one route.
type Filter struct {
	threshold int
	ignored   []string // lower-cased, trimmed

	x   event.Extractor
	log logx.Logger
}

// New builds a filter admitting events with level <= threshold whose
// facility matches none of the ignored entries.
func New(threshold int, ignoredFacilities []string, log logx.Logger) *Filter {
	if log.IsZero() {
		log = logx.Nop()
	}
	ignored := make([]string, 0, len(ignoredFacilities))
	for _, e := range ignoredFacilities {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			ignored = append(ignored, e)
		}
	}
	return &Filter{
		threshold: threshold,
		ignored:   ignored,
		x:         event.NewExtractor(log),
		log:       log,
	}
}

// Admits reports whether the event passes both the severity threshold and
// the facility exclusion list.
//
// Severity follows syslog convention (0=emergency ... 7=debug): an event is
// admitted iff threshold >= level, boundary inclusive.
//
// Facility matching is case-insensitive substring containment, not equality:
// an ignored entry "auth" also suppresses "authd" (and "oauth"). That
// looseness is inherited behavior, kept on purpose. An absent facility never
// causes a drop.
func (f *Filter) Admits(ev *event.Event) bool {
	if ev == nil {
		return false
	}
	level := f.x.Level(ev)
	if level > f.threshold {
		f.log.Warn("event dropped by level",
			logx.String("event_id", ev.ID),
			logx.Int("level", level),
			logx.Int("threshold", f.threshold))
		return false
	}

	if len(f.ignored) == 0 {
		return true
	}
	facility := strings.ToLower(strings.TrimSpace(f.x.Facility(ev)))
	if facility == "" {
		return true
	}
	for _, rule := range f.ignored {
		if strings.Contains(facility, rule) {
			f.log.Warn("event dropped by facility",
				logx.String("event_id", ev.ID),
				logx.String("facility", facility),
				logx.String("rule", rule))
			return false
		}
	}
	return true
}
