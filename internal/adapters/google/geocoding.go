package google

import (
	"context"
	"fmt"
	"strings"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"googlemaps.github.io/maps"
)

// Resolve geocodes free text. No result is ErrNotFound.
func (c *Client) Resolve(ctx context.Context, address string) (venue.Coordinate, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		return venue.Coordinate{}, fmt.Errorf("%w: empty address", provider.ErrNotFound)
	}

	var results []maps.GeocodingResult
	err := c.geocoding.do(ctx, func(ctx context.Context) error {
		var err error
		results, err = c.maps.Geocode(ctx, &maps.GeocodingRequest{Address: address})
		if err == nil && len(results) == 0 {
			return fmt.Errorf("%w: %q", provider.ErrNotFound, address)
		}
		return err
	})
	if err != nil {
		return venue.Coordinate{}, err
	}

	loc := results[0].Geometry.Location
	return venue.Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}
