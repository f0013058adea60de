// Package dispatch performs the single webhook delivery attempt and
// classifies the outcome. There is no retry here: an admitted event gets
// exactly one POST, and failures surface as typed errors the caller decides
// what to do with.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"carrier/pkg/logx"
)

// Failure kinds, matchable with errors.Is.
var (
	// ErrRateLimited means the remote answered HTTP 429. Not retried.
	ErrRateLimited = errors.New("rate limited by remote")

	// ErrMalformedRequest means the remote answered HTTP 400: the payload
	// or the route configuration is wrong. The error carries the payload.
	ErrMalformedRequest = errors.New("malformed request")

	// ErrTransport covers connection problems and any other non-200
	// status.
	ErrTransport = errors.New("transport failure")
)

// Result is the outcome of one delivery attempt.
type Result struct {
	StatusCode int
	Body       string // response body of a delivered call, UTF-8
}

// Error is a failed delivery with enough context to diagnose it.
type Error struct {
	Kind    error
	URL     string
	Status  int    // 0 for I/O failures
	Payload string // set for malformed-request failures
	Cause   error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: POST %s", e.Kind, e.URL)
	if e.Status != 0 {
		fmt.Fprintf(&b, ": status %d", e.Status)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	if e.Payload != "" {
		fmt.Fprintf(&b, " (payload: %s)", e.Payload)
	}
	return b.String()
}

func (e *Error) Unwrap() []error {
	errs := []error{e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// maxBodyBytes caps how much of the response body is captured.
const maxBodyBytes = 1 << 20

// Dispatcher POSTs JSON payloads to one webhook URL.
type Dispatcher struct {
	url     string
	client  *http.Client
	limiter *rate.Limiter // optional, shared across routes
	log     logx.Logger
}

// New builds a dispatcher for a webhook URL. A nil client gets a default
// with a 15s timeout; callers needing tighter latency bounds pass their own
// client or a deadline context. limiter, when non-nil, throttles outbound
// calls before the POST (it is meant to be shared process-wide).
func New(url string, client *http.Client, limiter *rate.Limiter, log logx.Logger) *Dispatcher {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Dispatcher{url: url, client: client, limiter: limiter, log: log}
}

// Deliver issues one POST with Content-Type application/json and classifies
// the response:
//
//	200        -> delivered, body captured
//	429        -> ErrRateLimited
//	400        -> ErrMalformedRequest (payload included)
//	other      -> ErrTransport with the status
//	I/O error  -> ErrTransport with the cause
func (d *Dispatcher) Deliver(ctx context.Context, payload string) (Result, error) {
	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			return Result{}, &Error{Kind: ErrTransport, URL: d.url, Cause: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, strings.NewReader(payload))
	if err != nil {
		return Result{}, &Error{Kind: ErrTransport, URL: d.url, Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return Result{}, &Error{Kind: ErrTransport, URL: d.url, Cause: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	switch resp.StatusCode {
	case http.StatusOK:
		if readErr != nil {
			return Result{}, &Error{Kind: ErrTransport, URL: d.url, Status: resp.StatusCode, Cause: readErr}
		}
		d.log.Debug("webhook delivered", logx.String("url", d.url), logx.Int("bytes", len(payload)))
		return Result{StatusCode: resp.StatusCode, Body: string(body)}, nil
	case http.StatusTooManyRequests:
		return Result{}, &Error{Kind: ErrRateLimited, URL: d.url, Status: resp.StatusCode}
	case http.StatusBadRequest:
		return Result{}, &Error{Kind: ErrMalformedRequest, URL: d.url, Status: resp.StatusCode, Payload: payload}
	default:
		return Result{}, &Error{Kind: ErrTransport, URL: d.url, Status: resp.StatusCode}
	}
}
