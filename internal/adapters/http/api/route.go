package api

import (
	"net/http"

	"github.com/okian/crawlplan/internal/planner"
	"github.com/okian/crawlplan/pkg/logger"
)

// RouteHandler handles route computation requests.
type RouteHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewRouteHandler creates a new route handler.
func NewRouteHandler(deps Dependencies, log logger.Logger) *RouteHandler {
	return &RouteHandler{deps: deps, logger: log}
}

// routeResponse reports how the answer to this request was used: applied,
// superseded by a newer request, or outdated because the order changed
// while it was in flight. Only an applied answer is reflected in the view.
type routeResponse struct {
	Outcome string       `json:"outcome"`
	View    planner.View `json:"view"`
}

// HandleRoute handles POST /sessions/{id}/route.
func (h *RouteHandler) HandleRoute(w http.ResponseWriter, r *http.Request) {
	Idempotent(h.deps, "route", h.route)(w, r)
}

func (h *RouteHandler) route(w http.ResponseWriter, r *http.Request) {
	const op = "api.route"
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	outcome, v, err := sess.RequestRoute(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, routeResponse{Outcome: outcome.String(), View: v})
}
