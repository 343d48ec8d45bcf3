package route

import (
	"fmt"

	"github.com/okian/crawlplan/internal/domain/venue"
)

// Mode tells the renderer how to draw the route.
type Mode int

const (
	// ModeNone means there is no route to draw.
	ModeNone Mode = iota
	// ModeGeometry means every path is a decoded leg drawn on its own.
	ModeGeometry
	// ModeStraightLine means the single path joins the stops in basis order.
	ModeStraightLine
)

func (m Mode) String() string {
	switch m {
	case ModeGeometry:
		return "geometry"
	case ModeStraightLine:
		return "straight_line"
	default:
		return "none"
	}
}

// MarshalText lets Mode appear as a string in JSON views.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

// UnmarshalText parses the names written by MarshalText.
func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none":
		*m = ModeNone
	case "geometry":
		*m = ModeGeometry
	case "straight_line":
		*m = ModeStraightLine
	default:
		return fmt.Errorf("unknown render mode %q", b)
	}
	return nil
}

// Marker is a numbered stop, starting at 1.
type Marker struct {
	Label    int              `json:"label"`
	VenueID  string           `json:"venue_id"`
	Position venue.Coordinate `json:"position"`
}

// Plan is everything a map needs to draw the current route. A Stale plan
// was computed for an order that is no longer current and must be drawn as
// outdated, never as the route to walk.
type Plan struct {
	Mode    Mode                 `json:"mode"`
	Stale   bool                 `json:"stale"`
	Paths   [][]venue.Coordinate `json:"paths,omitempty"`
	Markers []Marker             `json:"markers,omitempty"`
}

// Render derives the drawing plan. Legs with geometry are drawn one by one
// and legs without it are skipped; when no leg has geometry a single straight
// path through the basis is used instead. The plan is flagged stale unless
// the route is authoritative for currentOrder.
func (s *Session) Render(currentOrder []string) Plan {
	if !s.valid {
		return Plan{Mode: ModeNone}
	}
	stale := s.IsStale(currentOrder)

	markers := make([]Marker, len(s.basis))
	for i, id := range s.basis {
		markers[i] = Marker{Label: i + 1, VenueID: id, Position: s.positions[i]}
	}

	var paths [][]venue.Coordinate
	for _, l := range s.legs {
		if len(l.Path) > 0 {
			paths = append(paths, append([]venue.Coordinate(nil), l.Path...))
		}
	}
	if len(paths) > 0 {
		return Plan{Mode: ModeGeometry, Stale: stale, Paths: paths, Markers: markers}
	}

	straight := append([]venue.Coordinate(nil), s.positions...)
	return Plan{Mode: ModeStraightLine, Stale: stale, Paths: [][]venue.Coordinate{straight}, Markers: markers}
}
