package memory

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand"
	"sort"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
)

const catalogSize = 40

var (
	namePrefixes = []string{"The Rusty", "The Golden", "Old", "Crooked", "Blue", "The Lucky", "Silver", "Red", "The Drunken", "Quiet"}
	nameNouns    = []string{"Anchor", "Fox", "Lantern", "Barrel", "Goat", "Owl", "Tap", "Stag", "Kettle", "Harp"}
	streets      = []string{"Market St", "Chestnut St", "Walnut St", "Spruce St", "Lancaster Ave", "Baltimore Ave", "South St", "Arch St"}
)

// Catalog is a Discovery that invents a stable set of venues around any
// center. The same center always yields the same venues.
type Catalog struct {
	latency *latency
}

// NewCatalog creates a catalog with configuration options.
func NewCatalog(opts ...Option) *Catalog {
	c := &Catalog{latency: newLatency()}
	for _, opt := range opts {
		opt(c.latency)
	}
	return c
}

// FindVenues returns venues within the radius and price range, the first
// limit of them by distance, ordered by rating.
func (c *Catalog) FindVenues(ctx context.Context, q provider.Query) ([]venue.Venue, error) {
	if err := c.latency.wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrCollaboratorUnavailable, err)
	}

	all := generate(q.Center, q.RadiusMeters)
	out := make([]venue.Venue, 0, q.Limit)
	for _, v := range all {
		if v.Price < q.Price.Min || v.Price > q.Price.Max {
			continue
		}
		if venue.DistanceKm(q.Center, v.Location)*1000 > q.RadiusMeters {
			continue
		}
		out = append(out, v)
		if len(out) == q.Limit {
			break
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return rating(out[i]) > rating(out[j]) })
	return out, nil
}

func rating(v venue.Venue) float64 {
	if v.Rating == nil {
		return 0
	}
	return *v.Rating
}

// generate places catalogSize venues around center ordered by distance.
func generate(center venue.Coordinate, radius float64) []venue.Venue {
	h := fnv.New64a()
	_, _ = fmt.Fprintf(h, "%.3f,%.3f", center.Lat, center.Lng)
	rng := rand.New(rand.NewSource(int64(h.Sum64()))) //nolint:gosec // deterministic per search area

	metersPerDegLat := 111_320.0
	metersPerDegLng := metersPerDegLat * math.Cos(center.Lat*math.Pi/180)

	vs := make([]venue.Venue, catalogSize)
	for i := range vs {
		dist := radius * math.Sqrt(rng.Float64())
		bearing := rng.Float64() * 2 * math.Pi
		loc := venue.Coordinate{
			Lat: center.Lat + dist*math.Cos(bearing)/metersPerDegLat,
			Lng: center.Lng + dist*math.Sin(bearing)/metersPerDegLng,
		}
		var r *float64
		if rng.Intn(8) != 0 {
			x := math.Round((3+rng.Float64()*2)*10) / 10
			r = &x
		}
		vs[i] = venue.Venue{
			ID:       fmt.Sprintf("mem-%x-%02d", h.Sum64()&0xffffff, i),
			Name:     namePrefixes[rng.Intn(len(namePrefixes))] + " " + nameNouns[rng.Intn(len(nameNouns))],
			Address:  fmt.Sprintf("%d %s", 100+rng.Intn(3900), streets[rng.Intn(len(streets))]),
			Rating:   r,
			Price:    venue.PriceTier(rng.Intn(5)),
			Location: loc,
		}
	}
	sort.SliceStable(vs, func(i, j int) bool {
		return venue.DistanceKm(center, vs[i].Location) < venue.DistanceKm(center, vs[j].Location)
	})
	return vs
}
