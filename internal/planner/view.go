package planner

import (
	"context"
	"errors"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/route"
	"github.com/okian/crawlplan/internal/domain/venue"
)

// Source tells where the origin came from.
type Source string

const (
	SourceDefault Source = "default"
	SourceGPS     Source = "gps"
	SourceCustom  Source = "custom"
)

// Origin is the search center of a session.
type Origin struct {
	Position venue.Coordinate `json:"position"`
	Source   Source           `json:"source"`
	Label    string           `json:"label,omitempty"`
}

// DragView mirrors the reorder controller.
type DragView struct {
	State  string   `json:"state"`
	Active string   `json:"active,omitempty"`
	Items  []string `json:"items"`
}

// RouteError tells why the latest route request produced no route. It is
// cleared by the next request.
type RouteError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func routeError(err error) *RouteError {
	if err == nil {
		return nil
	}
	code := "route_failed"
	// Undecodable geometry is the router's fault like an outage is.
	if errors.Is(err, provider.ErrCollaboratorUnavailable) || errors.Is(err, route.ErrMalformedGeometry) {
		code = "collaborator_unavailable"
	}
	return &RouteError{Code: code, Message: err.Error()}
}

// RouteView is the route as the renderer should treat it. When Stale is
// true the route does not match the selection and must not be shown as
// authoritative.
type RouteView struct {
	Present   bool                `json:"present"`
	Stale     bool                `json:"stale"`
	Pending   bool                `json:"pending"`
	Basis     []string            `json:"basis,omitempty"`
	Summary   provider.Summary    `json:"summary"`
	Waypoints []provider.Waypoint `json:"waypoints,omitempty"`
	Legs      []provider.Leg      `json:"legs,omitempty"`
	Render    route.Plan          `json:"render"`
	Error     *RouteError         `json:"error,omitempty"`
}

// View is a consistent snapshot of a session.
type View struct {
	SessionID        string        `json:"session_id"`
	Origin           Origin        `json:"origin"`
	Venues           []venue.Venue `json:"venues"`
	Selection        []venue.Venue `json:"selection"`
	SelectionVersion uint64        `json:"selection_version"`
	Drag             DragView      `json:"drag"`
	Route            RouteView     `json:"route"`
	CanRequestRoute  bool          `json:"can_request_route"`
}

// SelectionIDs returns the ids of the selection in order.
func (v View) SelectionIDs() []string { return venue.IDs(v.Selection) }

// Renderer consumes views. Render is called from the session's event loop
// and must not call back into the session.
type Renderer interface {
	Render(ctx context.Context, v View)
}

// RendererFunc adapts a function to Renderer.
type RendererFunc func(ctx context.Context, v View)

func (f RendererFunc) Render(ctx context.Context, v View) { f(ctx, v) }

func (s *Session) snapshot() View {
	legs := s.route.Legs()
	plainLegs := make([]provider.Leg, len(legs))
	for i, l := range legs {
		plainLegs[i] = l.Leg
	}
	ids := s.sel.IDs()

	return View{
		SessionID:        s.id,
		Origin:           s.origin,
		Venues:           append([]venue.Venue(nil), s.batch...),
		Selection:        s.sel.Order(),
		SelectionVersion: s.sel.Version(),
		Drag: DragView{
			State:  s.drag.State().String(),
			Active: s.drag.Active(),
			Items:  s.drag.Items(),
		},
		Route: RouteView{
			Present:   s.route.HasRoute(),
			Stale:     s.route.IsStale(ids),
			Pending:   s.route.Pending(),
			Basis:     s.route.Basis(),
			Summary:   s.route.Summary(),
			Waypoints: s.route.Waypoints(),
			Legs:      plainLegs,
			Render:    s.route.Render(ids),
			Error:     routeError(s.route.LastError()),
		},
		CanRequestRoute: s.sel.Size() >= route.MinStops,
	}
}
