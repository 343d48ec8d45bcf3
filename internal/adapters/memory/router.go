package memory

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/route"
	"github.com/okian/crawlplan/internal/domain/venue"
)

// Walking assumptions for the straight-line router.
const (
	walkingSpeedMPS = 1.4
	detourFactor    = 1.2
)

// Router is a Router that walks straight between stops.
type Router struct {
	latency  *latency
	geometry bool
}

// NewRouter creates a straight-line router. With geometry off it returns no
// legs, which makes renderers fall back to a straight path.
func NewRouter(geometry bool, opts ...Option) *Router {
	r := &Router{latency: newLatency(), geometry: geometry}
	for _, opt := range opts {
		opt(r.latency)
	}
	return r
}

func (r *Router) ComputeRoute(ctx context.Context, vs []venue.Venue) (provider.Route, error) {
	if err := r.latency.wait(ctx); err != nil {
		return provider.Route{}, fmt.Errorf("%w: %v", provider.ErrCollaboratorUnavailable, err)
	}

	res := provider.Route{Waypoints: make([]provider.Waypoint, len(vs))}
	for i, v := range vs {
		res.Waypoints[i] = provider.Waypoint{VenueID: v.ID, Position: v.Location}
	}

	totalMeters, totalDur := 0, time.Duration(0)
	for i := 0; i+1 < len(vs); i++ {
		from, to := vs[i], vs[i+1]
		meters := int(math.Round(venue.DistanceKm(from.Location, to.Location) * 1000 * detourFactor))
		dur := time.Duration(float64(meters)/walkingSpeedMPS) * time.Second
		totalMeters += meters
		totalDur += dur

		if !r.geometry {
			continue
		}
		mid := venue.Coordinate{Lat: from.Location.Lat, Lng: to.Location.Lng}
		res.Legs = append(res.Legs, provider.Leg{
			EncodedPath:  route.Encode([]venue.Coordinate{from.Location, mid, to.Location}),
			DistanceText: provider.FormatDistance(meters),
			DurationText: provider.FormatDuration(dur),
			StartAddress: from.Address,
			EndAddress:   to.Address,
		})
	}
	res.Summary = provider.Summarize(totalMeters, totalDur)
	return res, nil
}
