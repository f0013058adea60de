// Package pipeline composes the per-event decision chain:
// filter -> grace gate -> render -> dispatch.
//
// One event flows through synchronously; nothing is buffered, nothing is
// retried, and a drop at any stage short-circuits the rest.
package pipeline

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"carrier/internal/config"
	"carrier/internal/dispatch"
	"carrier/internal/event"
	"carrier/internal/filter"
	"carrier/internal/grace"
	"carrier/internal/render"
	"carrier/pkg/logx"
)

// Outcome is the terminal state of one event.
type Outcome int

const (
	// OutcomeDelivered: the webhook accepted the payload.
	OutcomeDelivered Outcome = iota
	// OutcomeFilterDrop: rejected by the severity/facility filter.
	OutcomeFilterDrop
	// OutcomeGraceDrop: another event for this source already used the
	// current grace window.
	OutcomeGraceDrop
	// OutcomeFailed: render or dispatch failed; the event is lost.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeDelivered:
		return "delivered"
	case OutcomeFilterDrop:
		return "filtered"
	case OutcomeGraceDrop:
		return "grace"
	case OutcomeFailed:
		return "failed"
	}
	return "unknown"
}

// Route is one ready-to-run delivery path: an immutable config with its
// filter, gate, renderer, and dispatcher resolved once at construction.
type Route struct {
	cfg *config.Route

	filter     *filter.Filter
	gate       grace.Gate
	renderer   render.Renderer
	dispatcher *dispatch.Dispatcher

	log logx.Logger
}

// NewRoute wires a validated route config. client and limiter are shared
// across routes; gate carries the grace state and outlives route rebuilds.
func NewRoute(cfg *config.Route, gate grace.Gate, client *http.Client, limiter *rate.Limiter, log logx.Logger) (*Route, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	log = log.With(logx.String("source", cfg.Source.ID), logx.String("backend", cfg.Backend))

	renderer, err := render.New(cfg.Backend, render.Config{
		Channel:          cfg.Channel,
		BaseURL:          cfg.BaseURL,
		SourceID:         cfg.Source.ID,
		TextLimit:        cfg.TextLimit,
		AdditionalFields: cfg.AdditionalFieldList(),
	}, log)
	if err != nil {
		return nil, fmt.Errorf("route %s: %w", cfg.Source.ID, err)
	}

	return &Route{
		cfg:        cfg,
		filter:     filter.New(cfg.SeverityLevel(), cfg.IgnoredFacilityList(), log),
		gate:       gate,
		renderer:   renderer,
		dispatcher: dispatch.New(cfg.WebhookURL, client, limiter, log),
		log:        log,
	}, nil
}

// Config returns the route's immutable configuration.
func (r *Route) Config() *config.Route { return r.cfg }

// Write runs one event through the route. Filter and grace drops are
// ordinary outcomes, not errors; only render, dispatch, and gate-storage
// problems return a non-nil error (with OutcomeFailed).
func (r *Route) Write(ctx context.Context, ev *event.Event) (Outcome, error) {
	if !r.filter.Admits(ev) {
		return OutcomeFilterDrop, nil
	}

	ok, err := r.gate.TryPass(ctx, r.cfg.Source.Name, r.cfg.GraceWindow())
	if err != nil {
		return OutcomeFailed, fmt.Errorf("grace gate: %w", err)
	}
	if !ok {
		r.log.Info("event dropped by grace period", logx.String("event_id", ev.ID))
		return OutcomeGraceDrop, nil
	}

	payload, err := r.renderer.Render(ev)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("render: %w", err)
	}

	if _, err := r.dispatcher.Deliver(ctx, payload); err != nil {
		return OutcomeFailed, fmt.Errorf("deliver: %w", err)
	}
	r.log.Debug("event delivered", logx.String("event_id", ev.ID))
	return OutcomeDelivered, nil
}

// WriteBatch runs events sequentially, preserving input order. It returns
// one outcome per event; the first error is carried in errs at the same
// index, and processing continues with the next event.
func (r *Route) WriteBatch(ctx context.Context, evs []*event.Event) ([]Outcome, []error) {
	outcomes := make([]Outcome, len(evs))
	errs := make([]error, len(evs))
	for i, ev := range evs {
		outcomes[i], errs[i] = r.Write(ctx, ev)
	}
	return outcomes, errs
}
