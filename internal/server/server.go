// Package server exposes the ingest HTTP API: the host log platform POSTs
// events at a route, the pipeline decides and delivers synchronously, and
// the response reports one outcome per event.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"carrier/internal/config"
	"carrier/internal/event"
	"carrier/internal/pipeline"
	"carrier/pkg/logx"
)

// RouteLookup resolves a route by its source id. The app owns the route
// table (it is swapped on config reload); the server only reads it.
type RouteLookup func(id string) (*pipeline.Route, bool)

type Server struct {
	lookup RouteLookup
	log    logx.Logger
	http   *http.Server
}

func New(cfg config.ServerConfig, lookup RouteLookup, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Server{lookup: lookup, log: log}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  parseDuration(cfg.ReadTimeout, 10*time.Second),
		WriteTimeout: parseDuration(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  parseDuration(cfg.IdleTimeout, time.Minute),
	}
	return s
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Post("/routes/{route}/events", s.handleIngest)
	return r
}

// Start runs the listener until it fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info("ingest server listening", logx.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// eventResult is the per-event entry in an ingest response.
type eventResult struct {
	ID      string `json:"id"`
	Outcome string `json:"outcome"`
	Error   string `json:"error,omitempty"`
}

type ingestResponse struct {
	Results []eventResult `json:"results"`
}

// handleIngest accepts one event object or an array of events. Delivery
// failures are reported per event; the request itself still succeeds with
// 202 because the decision ran and the events are not queued for retry.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	routeID := chi.URLParam(r, "route")
	route, ok := s.lookup(routeID)
	if !ok {
		httpError(w, http.StatusNotFound, "unknown route: "+routeID)
		return
	}

	evs, err := decodeEvents(r)
	if err != nil {
		httpError(w, http.StatusBadRequest, err.Error())
		return
	}

	outcomes, errs := route.WriteBatch(r.Context(), evs)

	resp := ingestResponse{Results: make([]eventResult, len(evs))}
	for i, ev := range evs {
		res := eventResult{ID: ev.ID, Outcome: outcomes[i].String()}
		if errs[i] != nil {
			res.Error = errs[i].Error()
			s.log.Error("delivery failed",
				logx.String("route", routeID),
				logx.String("event_id", ev.ID),
				logx.Err(errs[i]))
		}
		resp.Results[i] = res
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(resp)
}

// maxIngestBytes caps one ingest request body.
const maxIngestBytes = 4 << 20

func decodeEvents(r *http.Request) ([]*event.Event, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, maxIngestBytes))
	if err != nil {
		return nil, errors.New("reading body: " + err.Error())
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty body")
	}

	var evs []*event.Event
	if body[0] == '[' {
		if err := json.Unmarshal(body, &evs); err != nil {
			return nil, errors.New("invalid event array: " + err.Error())
		}
	} else {
		var ev event.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			return nil, errors.New("invalid event: " + err.Error())
		}
		evs = []*event.Event{&ev}
	}

	if len(evs) == 0 {
		return nil, errors.New("no events in request")
	}
	for _, ev := range evs {
		if ev == nil {
			return nil, errors.New("null event in array")
		}
		normalize(ev)
	}
	return evs, nil
}

// normalize backfills what the upstream did not set: events without an id
// get a UUID (links need one), events without a timestamp get "now".
func normalize(ev *event.Event) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func parseDuration(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return def
	}
	return d
}
