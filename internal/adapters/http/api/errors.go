package api

import (
	"context"
	"errors"
	"net/http"

	service "github.com/okian/crawlplan/internal/app"
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/reorder"
	"github.com/okian/crawlplan/internal/domain/route"
	"github.com/okian/crawlplan/internal/domain/selection"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/internal/planner"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest          = errors.New("bad request")
	ErrIdempotencyConflict = errors.New("request with this idempotency key is still running")
	ErrIdempotencyMismatch = errors.New("idempotency key was already used with a different request body")
)

// Error tags a failure with the API operation it happened in.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err == nil:
		return e.Op + ": " + e.Kind.Error()
	case e.Kind == nil:
		return e.Op + ": " + e.Err.Error()
	default:
		return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
	}
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error { return &Error{Op: op, Kind: kind} }

// WrapKind returns err classified as kind and tagged with op.
func WrapKind(op string, kind, err error) error { return &Error{Op: op, Kind: kind, Err: err} }

// Wrap tags err with op and keeps its own classification.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

type classified struct {
	target error
	status int
	code   string
}

// Order matters: the first match wins.
var classification = []classified{
	{ErrBadRequest, http.StatusBadRequest, "bad_request"},
	{planner.ErrInvalidQuery, http.StatusBadRequest, "bad_request"},
	{venue.ErrInvalidTier, http.StatusBadRequest, "bad_request"},
	{service.ErrSessionNotFound, http.StatusNotFound, "session_not_found"},
	{service.ErrTooManySessions, http.StatusServiceUnavailable, "too_many_sessions"},
	{service.ErrNotStarted, http.StatusServiceUnavailable, "unavailable"},
	{planner.ErrSessionClosed, http.StatusGone, "session_closed"},
	{planner.ErrBackpressure, http.StatusTooManyRequests, "backpressure"},
	{planner.ErrUnknownVenue, http.StatusUnprocessableEntity, "unknown_venue"},
	{planner.ErrSuperseded, http.StatusConflict, "superseded"},
	{selection.ErrInvalidPermutation, http.StatusUnprocessableEntity, "invalid_permutation"},
	{route.ErrInsufficientSelection, http.StatusUnprocessableEntity, "insufficient_selection"},
	{reorder.ErrDragInProgress, http.StatusConflict, "drag_conflict"},
	{reorder.ErrNotDragging, http.StatusConflict, "drag_conflict"},
	{reorder.ErrUnknownItem, http.StatusConflict, "drag_conflict"},
	{ErrIdempotencyConflict, http.StatusConflict, "idempotency_conflict"},
	{ErrIdempotencyMismatch, http.StatusUnprocessableEntity, "idempotency_mismatch"},
	{provider.ErrNotFound, http.StatusNotFound, "location_not_found"},
	{provider.ErrCollaboratorUnavailable, http.StatusBadGateway, "collaborator_unavailable"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
}

// classify maps an error to its HTTP status and machine-readable code.
func classify(err error) (int, string) {
	for _, c := range classification {
		if errors.Is(err, c.target) {
			return c.status, c.code
		}
	}
	return http.StatusInternalServerError, "internal"
}
