package event

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"carrier/pkg/logx"
)

// DefaultLevel is the severity assumed when an event carries no usable
// level field (7 = debug, the least severe syslog level).
const DefaultLevel = 7

// Extractor reads typed values out of an event's field map. Extraction never
// fails: missing or malformed fields fall back to documented defaults and a
// warning, so the filter and renderers stay total functions over any input.
type Extractor struct {
	log logx.Logger
}

func NewExtractor(log logx.Logger) Extractor {
	if log.IsZero() {
		log = logx.Nop()
	}
	return Extractor{log: log}
}

// Level returns the event's syslog severity level. Missing field, a value
// that does not parse as an integer, or a nil event all yield DefaultLevel.
func (x Extractor) Level(ev *Event) int {
	if ev == nil {
		return DefaultLevel
	}
	v, ok := ev.Fields["level"]
	if !ok || v == nil {
		return DefaultLevel
	}
	n, err := toInt(v)
	if err != nil {
		x.log.Warn("event level is not numeric", logx.String("event_id", ev.ID), logx.Err(err))
		return DefaultLevel
	}
	return n
}

// Facility returns the event's facility field, or "" when absent.
func (x Extractor) Facility(ev *Event) string {
	s, _ := x.StringField(ev, "facility")
	return s
}

// StringField returns the named field rendered as a string. The second
// return is false when the field is unset or the event is malformed.
func (x Extractor) StringField(ev *Event, name string) (string, bool) {
	if ev == nil || name == "" {
		return "", false
	}
	v, ok := ev.Fields[name]
	if !ok || v == nil {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case fmt.Stringer:
		return s.String(), true
	default:
		return fmt.Sprint(v), true
	}
}

// toInt accepts the numeric shapes a decoded JSON field (or a host platform
// handing us native types) can take.
func toInt(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	case string:
		return strconv.Atoi(strings.TrimSpace(n))
	default:
		return 0, fmt.Errorf("unsupported level type %T", v)
	}
}
