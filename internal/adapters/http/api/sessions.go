package api

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/pkg/logger"
)

// SessionsHandler handles session lifecycle, origin and discovery requests.
type SessionsHandler struct {
	deps   Dependencies
	logger logger.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(deps Dependencies, log logger.Logger) *SessionsHandler {
	return &SessionsHandler{deps: deps, logger: log}
}

// HandleCreate handles POST /sessions.
func (h *SessionsHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	const op = "api.create_session"
	v, err := h.deps.Create(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	w.Header().Set("Location", "/sessions/"+v.SessionID)
	writeJSON(w, http.StatusCreated, v)
}

// HandleGet handles GET /sessions/{id}.
func (h *SessionsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_session"
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	v, err := sess.View(r.Context())
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// HandleDelete handles DELETE /sessions/{id}.
func (h *SessionsHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	const op = "api.delete_session"
	if err := h.deps.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// locationRequest sets the origin. Source "gps" carries the device
// position, or none when the device could not provide one. Source "custom"
// carries an address to geocode.
type locationRequest struct {
	Source   string            `json:"source"`
	Position *venue.Coordinate `json:"position,omitempty"`
	Address  string            `json:"address,omitempty"`
}

// HandleLocation handles POST /sessions/{id}/location.
func (h *SessionsHandler) HandleLocation(w http.ResponseWriter, r *http.Request) {
	const op = "api.set_location"
	var req locationRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}

	switch strings.ToLower(req.Source) {
	case "gps", "default":
		locator := provider.StaticLocator{Err: provider.ErrLocationUnavailable}
		if req.Position != nil {
			locator = provider.StaticLocator{Coordinate: *req.Position}
		}
		v, err := sess.Locate(r.Context(), locator)
		if err != nil {
			writeFailure(r.Context(), w, h.logger, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, v)
	case "custom":
		if strings.TrimSpace(req.Address) == "" {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		v, err := sess.UseAddress(r.Context(), h.deps.Geocoder(), req.Address)
		if err != nil {
			writeFailure(r.Context(), w, h.logger, Wrap(op, err))
			return
		}
		writeJSON(w, http.StatusOK, v)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, fmt.Errorf("unknown location source %q", req.Source)))
	}
}

// discoverRequest mirrors the OpenAPI schema for POST /sessions/{id}/discover.
// Zero values fall back to the configured defaults.
type discoverRequest struct {
	Center       *venue.Coordinate `json:"center,omitempty"`
	RadiusMeters float64           `json:"radius_meters"`
	Limit        int               `json:"limit"`
	PriceTiers   []venue.PriceTier `json:"price_tiers"`
}

// HandleDiscover handles POST /sessions/{id}/discover.
func (h *SessionsHandler) HandleDiscover(w http.ResponseWriter, r *http.Request) {
	const op = "api.discover"
	var req discoverRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	dreq, err := h.deps.DiscoverRequest(req.Center, req.RadiusMeters, req.Limit, req.PriceTiers)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	sess, err := session(h.deps, r)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	v, err := sess.Discover(r.Context(), dreq)
	if err != nil {
		writeFailure(r.Context(), w, h.logger, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, v)
}
