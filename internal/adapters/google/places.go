package google

import (
	"context"
	"sort"
	"strconv"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"googlemaps.github.io/maps"
)

// FindVenues runs a nearby search and keeps the first q.Limit results,
// ordered by rating with unrated places last.
func (c *Client) FindVenues(ctx context.Context, q provider.Query) ([]venue.Venue, error) {
	req := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: q.Center.Lat, Lng: q.Center.Lng},
		Radius:   uint(q.RadiusMeters),
		Type:     c.placeType,
		MinPrice: maps.PriceLevel(strconv.Itoa(int(q.Price.Min))),
		MaxPrice: maps.PriceLevel(strconv.Itoa(int(q.Price.Max))),
	}

	var resp maps.PlacesSearchResponse
	err := c.places.do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = c.maps.NearbySearch(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	results := resp.Results
	if q.Limit > 0 && len(results) > q.Limit {
		results = results[:q.Limit]
	}

	out := make([]venue.Venue, 0, len(results))
	for _, r := range results {
		out = append(out, toVenue(r, q.Price))
	}
	sort.SliceStable(out, func(i, j int) bool { return ratingOf(out[i]) > ratingOf(out[j]) })
	return out, nil
}

// toVenue maps a search result into a venue. The API omits price_level for
// unpriced places, which decodes to 0; when the query excluded free places
// that 0 is read as the default "$" tier.
func toVenue(r maps.PlacesSearchResult, price venue.PriceRange) venue.Venue {
	tier := venue.PriceTier(r.PriceLevel)
	if tier == venue.MinTier && price.Min > venue.MinTier {
		tier = defaultTier
	}
	v := venue.Venue{
		ID:       r.PlaceID,
		Name:     r.Name,
		Address:  r.Vicinity,
		Price:    tier,
		Location: venue.Coordinate{Lat: r.Geometry.Location.Lat, Lng: r.Geometry.Location.Lng},
	}
	if v.Address == "" {
		v.Address = r.FormattedAddress
	}
	if r.Rating > 0 {
		rating := float64(r.Rating)
		v.Rating = &rating
	}
	if len(r.Photos) > 0 {
		v.PhotoRef = r.Photos[0].PhotoReference
	}
	return v
}

const defaultTier venue.PriceTier = 1

func ratingOf(v venue.Venue) float64 {
	if v.Rating == nil {
		return -1
	}
	return *v.Rating
}
