package event

import "time"

// Event is one structured log record as delivered by the upstream log
// platform. Carrier treats it as read-only: nothing in the pipeline mutates
// an event after ingest.
type Event struct {
	// ID is the stable message identifier, used in deep links.
	ID string `json:"id"`

	// Message is the free-form log text.
	Message string `json:"message"`

	// Timestamp is the event time as reported upstream.
	Timestamp time.Time `json:"timestamp"`

	// SourceIDs lists the stream ids the platform associated with this
	// event. May be empty; the route's own source is the fallback.
	SourceIDs []string `json:"source_ids,omitempty"`

	// Fields carries the named extra fields (level, facility, app, env,
	// source, ...). Values arrive as whatever JSON decoded them to.
	Fields map[string]any `json:"fields,omitempty"`
}

// FirstSourceID returns the first associated stream id, or fallback when the
// event reports none.
func (ev *Event) FirstSourceID(fallback string) string {
	if ev != nil && len(ev.SourceIDs) > 0 && ev.SourceIDs[0] != "" {
		return ev.SourceIDs[0]
	}
	return fallback
}
