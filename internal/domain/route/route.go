// Package route holds the route computed for a selection order and decides
// whether that route may still be shown.
//
// Requests are versioned: Begin hands out a Ticket and only the most recent
// ticket can be applied, and only while its basis still equals the current
// selection order. A slow response for an older order can therefore never
// replace a newer one.
package route

import (
	"errors"
	"fmt"
	"slices"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/twpayne/go-polyline"
)

var (
	// ErrInsufficientSelection is returned when fewer than two venues are
	// given to Begin.
	ErrInsufficientSelection = errors.New("at least two venues are required")
	// ErrMalformedGeometry is returned when a leg path cannot be decoded.
	ErrMalformedGeometry = errors.New("malformed leg geometry")
)

// MinStops is the smallest number of venues a route can be requested for.
const MinStops = 2

// Outcome of applying a response.
type Outcome int

const (
	// Applied means the response is now the current route.
	Applied Outcome = iota + 1
	// Superseded means a newer request was issued after this one.
	Superseded
	// Outdated means the selection order changed while the request was in flight.
	Outdated
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Superseded:
		return "superseded"
	case Outdated:
		return "outdated"
	default:
		return "unknown"
	}
}

// Ticket tags an in-flight request with the order it was issued for.
type Ticket struct {
	Seq       uint64
	Basis     []string
	positions []venue.Coordinate
}

// Leg is a route leg with its decoded path, if any.
type Leg struct {
	provider.Leg
	Path []venue.Coordinate
}

// Session is the route state of one planning session. It is not safe for
// concurrent use.
type Session struct {
	seq     uint64
	pending bool

	basis     []string
	positions []venue.Coordinate
	summary   provider.Summary
	waypoints []provider.Waypoint
	legs      []Leg
	valid     bool
	// stale is set once the selection changed after the route was applied,
	// even if it later returns to the basis order.
	stale bool
	// lastErr is why the latest ticket produced no route.
	lastErr error
}

// NewSession returns a session with no route.
func NewSession() *Session {
	return &Session{}
}

// Begin issues a ticket for venues in order. Any earlier ticket is
// superseded from this point.
func (s *Session) Begin(venues []venue.Venue) (Ticket, error) {
	if len(venues) < MinStops {
		return Ticket{}, fmt.Errorf("%w: have %d", ErrInsufficientSelection, len(venues))
	}
	s.seq++
	s.pending = true
	s.lastErr = nil
	return Ticket{
		Seq:       s.seq,
		Basis:     venue.IDs(venues),
		positions: venue.Positions(venues),
	}, nil
}

// Apply stores r for t when t is the latest ticket and its basis equals
// currentOrder. On any other outcome, and on error, the existing route is
// left untouched.
func (s *Session) Apply(t Ticket, r provider.Route, currentOrder []string) (Outcome, error) {
	if t.Seq != s.seq {
		return Superseded, nil
	}
	s.pending = false
	if !slices.Equal(t.Basis, currentOrder) {
		return Outdated, nil
	}

	legs := make([]Leg, len(r.Legs))
	for i, l := range r.Legs {
		path, err := decode(l.EncodedPath)
		if err != nil {
			s.lastErr = fmt.Errorf("%w: leg %d: %v", ErrMalformedGeometry, i, err)
			return 0, s.lastErr
		}
		legs[i] = Leg{Leg: l, Path: path}
	}

	s.basis = slices.Clone(t.Basis)
	s.positions = slices.Clone(t.positions)
	s.summary = r.Summary
	s.waypoints = slices.Clone(r.Waypoints)
	s.legs = legs
	s.valid = true
	s.stale = false
	s.lastErr = nil
	return Applied, nil
}

// Fail closes t after the router gave up with err. The existing route stays
// and err is kept as LastError until the next Begin. Failures of superseded
// tickets are dropped.
func (s *Session) Fail(t Ticket, err error) {
	if t.Seq == s.seq {
		s.pending = false
		s.lastErr = err
	}
}

// LastError returns why the latest request produced no route, or nil.
func (s *Session) LastError() error { return s.lastErr }

// IsStale reports whether the stored route cannot be shown as authoritative
// for currentOrder.
func (s *Session) IsStale(currentOrder []string) bool {
	return !s.valid || s.stale || !slices.Equal(s.basis, currentOrder)
}

// MarkStale records that the selection changed since the route was applied.
// The route is kept for display until it is recomputed or invalidated.
func (s *Session) MarkStale() {
	if s.valid {
		s.stale = true
	}
}

// Invalidate drops the route and any in-flight request.
func (s *Session) Invalidate() {
	s.seq++
	s.pending = false
	s.basis, s.positions, s.waypoints, s.legs = nil, nil, nil, nil
	s.summary = provider.Summary{}
	s.valid = false
	s.stale = false
	s.lastErr = nil
}

// HasRoute reports whether a route has been applied since the last Invalidate.
func (s *Session) HasRoute() bool { return s.valid }

// Pending reports whether the latest ticket is still unanswered.
func (s *Session) Pending() bool { return s.pending }

// Basis returns the venue order the route was computed for.
func (s *Session) Basis() []string { return slices.Clone(s.basis) }

// Summary returns the route totals.
func (s *Session) Summary() provider.Summary { return s.summary }

// Waypoints returns the waypoints reported by the router.
func (s *Session) Waypoints() []provider.Waypoint { return slices.Clone(s.waypoints) }

// Legs returns the route legs with decoded paths.
func (s *Session) Legs() []Leg { return slices.Clone(s.legs) }

func decode(encoded string) ([]venue.Coordinate, error) {
	if encoded == "" {
		return nil, nil
	}
	coords, rest, err := polyline.DecodeCoords([]byte(encoded))
	if err != nil {
		return nil, err
	}
	if len(rest) != 0 {
		return nil, fmt.Errorf("%d trailing bytes", len(rest))
	}
	path := make([]venue.Coordinate, len(coords))
	for i, c := range coords {
		path[i] = venue.Coordinate{Lat: c[0], Lng: c[1]}
	}
	return path, nil
}

// Encode renders a path in the encoded polyline format.
func Encode(path []venue.Coordinate) string {
	coords := make([][]float64, len(path))
	for i, c := range path {
		coords[i] = []float64{c.Lat, c.Lng}
	}
	return string(polyline.EncodeCoords(coords))
}
