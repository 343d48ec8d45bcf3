package api

import (
	"net/http"
	"strings"

	"github.com/okian/crawlplan/internal/planner"
	"github.com/okian/crawlplan/pkg/logger"
)

// SelectionHandler handles selection changes.
type SelectionHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewSelectionHandler creates a new selection handler.
func NewSelectionHandler(deps Dependencies, log logger.Logger) *SelectionHandler {
	return &SelectionHandler{deps: deps, logger: log}
}

type venueRequest struct {
	VenueID string `json:"venue_id"`
}

type toggleResponse struct {
	Change string       `json:"change"`
	View   planner.View `json:"view"`
}

// HandleToggle handles POST /sessions/{id}/selection/toggle.
func (h *SelectionHandler) HandleToggle(w http.ResponseWriter, r *http.Request) {
	Idempotent(h.deps, "toggle", h.toggle)(w, r)
}

func (h *SelectionHandler) toggle(w http.ResponseWriter, r *http.Request) {
	const op = "api.toggle"
	var req venueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if strings.TrimSpace(req.VenueID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	change, v, err := sess.Toggle(r.Context(), req.VenueID)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, toggleResponse{Change: change.String(), View: v})
}

type reorderRequest struct {
	Order []string `json:"order"`
}

// HandleReorder handles PUT /sessions/{id}/selection.
func (h *SelectionHandler) HandleReorder(w http.ResponseWriter, r *http.Request) {
	const op = "api.reorder"
	var req reorderRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	v, err := sess.Reorder(r.Context(), req.Order)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleOptimize handles POST /sessions/{id}/optimize.
func (h *SelectionHandler) HandleOptimize(w http.ResponseWriter, r *http.Request) {
	const op = "api.optimize"
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	v, err := sess.Optimize(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
