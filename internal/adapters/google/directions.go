package google

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"golang.org/x/sync/errgroup"
	"googlemaps.github.io/maps"
)

// ComputeRoute asks for directions between each pair of consecutive venues.
// A hop without any route yields a leg without geometry; any failed call
// fails the whole route.
func (c *Client) ComputeRoute(ctx context.Context, vs []venue.Venue) (provider.Route, error) {
	hops := len(vs) - 1
	if hops < 1 {
		return provider.Route{}, fmt.Errorf("%w: need two venues, have %d", provider.ErrCollaboratorUnavailable, len(vs))
	}

	type hop struct {
		leg      provider.Leg
		meters   int
		duration time.Duration
	}
	results := make([]hop, hops)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelLegs)
	for i := 0; i < hops; i++ {
		from, to := vs[i], vs[i+1]
		g.Go(func() error {
			req := &maps.DirectionsRequest{
				Origin:      latLng(from.Location),
				Destination: latLng(to.Location),
				Mode:        c.travelMode,
			}
			var routes []maps.Route
			err := c.directions.do(gctx, func(ctx context.Context) error {
				var err error
				routes, _, err = c.maps.Directions(ctx, req)
				return err
			})
			if err != nil {
				return err
			}
			if len(routes) == 0 || len(routes[0].Legs) == 0 {
				return nil
			}

			r, l := routes[0], routes[0].Legs[0]
			results[i] = hop{
				leg: provider.Leg{
					EncodedPath:  r.OverviewPolyline.Points,
					DistanceText: l.Distance.HumanReadable,
					DurationText: provider.FormatDuration(l.Duration),
					StartAddress: l.StartAddress,
					EndAddress:   l.EndAddress,
				},
				meters:   l.Distance.Meters,
				duration: l.Duration,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return provider.Route{}, err
	}

	out := provider.Route{
		Waypoints: make([]provider.Waypoint, len(vs)),
		Legs:      make([]provider.Leg, hops),
	}
	for i, v := range vs {
		out.Waypoints[i] = provider.Waypoint{VenueID: v.ID, Position: v.Location}
	}
	totalMeters, totalDur := 0, time.Duration(0)
	for i, h := range results {
		out.Legs[i] = h.leg
		totalMeters += h.meters
		totalDur += h.duration
	}
	out.Summary = provider.Summarize(totalMeters, totalDur)
	return out, nil
}

func latLng(c venue.Coordinate) string {
	return fmt.Sprintf("%f,%f", c.Lat, c.Lng)
}
