// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/okian/crawlplan/internal/domain/dedupe"
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/internal/planner"
	"github.com/okian/crawlplan/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Create(ctx context.Context) (planner.View, error)
	Session(id string) (*planner.Session, error)
	Delete(ctx context.Context, id string) error

	Geocoder() provider.Geocoder
	DiscoverRequest(center *venue.Coordinate, radiusMeters float64, limit int, tiers []venue.PriceTier) (planner.DiscoverRequest, error)

	SeenAndRecord(ctx context.Context, key, fingerprint string) (dedupe.Entry, bool)
	Complete(ctx context.Context, key string, outcome dedupe.Outcome)
	Unrecord(ctx context.Context, key string)
}

// Server wires HTTP routes for the planning API.
type Server struct {
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	sessionsHandler  *SessionsHandler
	selectionHandler *SelectionHandler
	dragHandler      *DragHandler
	routeHandler     *RouteHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, health HealthChecker) *Server {
	log := logger.Get().Named("api")
	return &Server{
		healthHandler:    NewHealthHandler(health),
		statsHandler:     NewStatsHandler(statsProvider),
		sessionsHandler:  NewSessionsHandler(deps, log),
		selectionHandler: NewSelectionHandler(deps, log),
		dragHandler:      NewDragHandler(deps, log),
		routeHandler:     NewRouteHandler(deps, log),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("GET /metrics", MetricsHandler())
	mux.HandleFunc("GET /stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("POST /sessions", MetricsMiddleware(s.sessionsHandler.HandleCreate, "sessions"))
	mux.HandleFunc("GET /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleGet, "session"))
	mux.HandleFunc("DELETE /sessions/{id}", MetricsMiddleware(s.sessionsHandler.HandleDelete, "session"))
	mux.HandleFunc("POST /sessions/{id}/location", MetricsMiddleware(s.sessionsHandler.HandleLocation, "location"))
	mux.HandleFunc("POST /sessions/{id}/discover", MetricsMiddleware(s.sessionsHandler.HandleDiscover, "discover"))

	mux.HandleFunc("POST /sessions/{id}/selection/toggle", MetricsMiddleware(s.selectionHandler.HandleToggle, "toggle"))
	mux.HandleFunc("PUT /sessions/{id}/selection", MetricsMiddleware(s.selectionHandler.HandleReorder, "reorder"))
	mux.HandleFunc("POST /sessions/{id}/optimize", MetricsMiddleware(s.selectionHandler.HandleOptimize, "optimize"))

	mux.HandleFunc("POST /sessions/{id}/drag/start", MetricsMiddleware(s.dragHandler.HandleStart, "drag_start"))
	mux.HandleFunc("POST /sessions/{id}/drag/move", MetricsMiddleware(s.dragHandler.HandleMove, "drag_move"))
	mux.HandleFunc("POST /sessions/{id}/drag/end", MetricsMiddleware(s.dragHandler.HandleEnd, "drag_end"))

	mux.HandleFunc("POST /sessions/{id}/route", MetricsMiddleware(s.routeHandler.HandleRoute, "route"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeFailure classifies err and writes it. Server-side failures are logged.
func writeFailure(ctx context.Context, w http.ResponseWriter, log logger.Logger, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		log.Warn(ctx, "request failed", logger.String("code", code), logger.Error(err))
	}
	writeError(w, status, code, err)
}

// decode reads a single JSON value into v. An empty body leaves v untouched.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode body: %w", err)
	}
	if dec.More() {
		return errors.New("decode body: trailing data after JSON value")
	}
	return nil
}

// session resolves the {id} path value.
func session(deps Dependencies, r *http.Request) (*planner.Session, error) {
	return deps.Session(r.PathValue("id"))
}
