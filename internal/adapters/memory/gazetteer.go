package memory

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
)

var philadelphia = map[string]venue.Coordinate{
	"drexel university":          {Lat: 39.9566, Lng: -75.1899},
	"university city":            {Lat: 39.9522, Lng: -75.1932},
	"rittenhouse square":         {Lat: 39.9496, Lng: -75.1718},
	"old city":                   {Lat: 39.9526, Lng: -75.1447},
	"south street":               {Lat: 39.9415, Lng: -75.1497},
	"fishtown":                   {Lat: 39.9713, Lng: -75.1340},
	"northern liberties":         {Lat: 39.9646, Lng: -75.1403},
	"30th street station":        {Lat: 39.9557, Lng: -75.1820},
	"philadelphia museum of art": {Lat: 39.9656, Lng: -75.1810},
}

// Gazetteer is a Geocoder over a fixed list of place names. It also accepts
// "lat,lng" text.
type Gazetteer struct {
	latency *latency
	places  map[string]venue.Coordinate
}

// NewGazetteer creates a gazetteer over a few Philadelphia places plus extra.
func NewGazetteer(extra map[string]venue.Coordinate, opts ...Option) *Gazetteer {
	g := &Gazetteer{latency: newLatency(), places: make(map[string]venue.Coordinate, len(philadelphia)+len(extra))}
	for k, v := range philadelphia {
		g.places[k] = v
	}
	for k, v := range extra {
		g.places[normalize(k)] = v
	}
	for _, opt := range opts {
		opt(g.latency)
	}
	return g
}

func (g *Gazetteer) Resolve(ctx context.Context, address string) (venue.Coordinate, error) {
	if err := g.latency.wait(ctx); err != nil {
		return venue.Coordinate{}, fmt.Errorf("%w: %v", provider.ErrCollaboratorUnavailable, err)
	}
	key := normalize(address)
	if c, ok := parseLatLng(key); ok {
		return c, nil
	}
	if c, ok := g.places[key]; ok {
		return c, nil
	}
	return venue.Coordinate{}, fmt.Errorf("%w: %q", provider.ErrNotFound, address)
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func parseLatLng(s string) (venue.Coordinate, bool) {
	lat, lng, ok := strings.Cut(s, ",")
	if !ok {
		return venue.Coordinate{}, false
	}
	la, err1 := strconv.ParseFloat(strings.TrimSpace(lat), 64)
	ln, err2 := strconv.ParseFloat(strings.TrimSpace(lng), 64)
	c := venue.Coordinate{Lat: la, Lng: ln}
	if err1 != nil || err2 != nil || !c.Valid() {
		return venue.Coordinate{}, false
	}
	return c, true
}
