package api

import (
	"net/http"

	"github.com/okian/crawlplan/internal/domain/reorder"
	"github.com/okian/crawlplan/pkg/logger"
)

// DragHandler handles the pointer-driven reorder gesture.
type DragHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewDragHandler creates a new drag handler.
func NewDragHandler(deps Dependencies, log logger.Logger) *DragHandler {
	return &DragHandler{deps: deps, logger: log}
}

// HandleStart handles POST /sessions/{id}/drag/start.
func (h *DragHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	const op = "api.drag_start"
	var req venueRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	v, err := sess.DragStart(r.Context(), req.VenueID)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// dragMoveRequest carries the pointer's vertical position and the current
// layout box of every list item other than the dragged one.
type dragMoveRequest struct {
	Y     float64                `json:"y"`
	Boxes map[string]reorder.Box `json:"boxes"`
}

// HandleMove handles POST /sessions/{id}/drag/move.
func (h *DragHandler) HandleMove(w http.ResponseWriter, r *http.Request) {
	const op = "api.drag_move"
	var req dragMoveRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	v, err := sess.DragMove(r.Context(), req.Y, req.Boxes)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleEnd handles POST /sessions/{id}/drag/end.
func (h *DragHandler) HandleEnd(w http.ResponseWriter, r *http.Request) {
	Idempotent(h.deps, "drag_end", h.end)(w, r)
}

func (h *DragHandler) end(w http.ResponseWriter, r *http.Request) {
	const op = "api.drag_end"
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	v, err := sess.DragEnd(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
