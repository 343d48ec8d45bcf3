// Package venue holds the immutable values produced by discovery.
package venue

import (
	"fmt"
	"math"
	"slices"
)

// Coordinate is a geographic position in degrees.
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether c lies within the latitude/longitude ranges.
func (c Coordinate) Valid() bool {
	return c.Lat >= -90 && c.Lat <= 90 && c.Lng >= -180 && c.Lng <= 180 &&
		!math.IsNaN(c.Lat) && !math.IsNaN(c.Lng)
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng)
}

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between a and b.
func DistanceKm(a, b Coordinate) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PriceTier is an ordinal price level in [MinTier, MaxTier].
type PriceTier int

const (
	MinTier PriceTier = 0
	MaxTier PriceTier = 4
)

var tierLabels = [...]string{"Free", "$", "$$", "$$$", "$$$$"}

// Valid reports whether t is inside the closed tier range.
func (t PriceTier) Valid() bool { return t >= MinTier && t <= MaxTier }

// String renders the tier for display. Unknown tiers show as a single "$".
func (t PriceTier) String() string {
	if !t.Valid() {
		return tierLabels[1]
	}
	return tierLabels[t]
}

// PriceRange is the [Min, Max] filter sent to discovery.
type PriceRange struct {
	Min PriceTier `json:"min"`
	Max PriceTier `json:"max"`
}

// DefaultPriceRange is used when no tier is toggled on.
var DefaultPriceRange = PriceRange{Min: 1, Max: MaxTier}

// Valid reports whether both ends are valid tiers and Min <= Max.
func (r PriceRange) Valid() bool {
	return r.Min.Valid() && r.Max.Valid() && r.Min <= r.Max
}

// CollapseTiers turns a set of independently toggled tiers into a single
// range. A non-contiguous set such as {1,3} becomes [1,3] and therefore also
// admits tier 2.
func CollapseTiers(tiers []PriceTier) (PriceRange, error) {
	if len(tiers) == 0 {
		return DefaultPriceRange, nil
	}
	for _, t := range tiers {
		if !t.Valid() {
			return PriceRange{}, fmt.Errorf("%w: %d", ErrInvalidTier, t)
		}
	}
	return PriceRange{Min: slices.Min(tiers), Max: slices.Max(tiers)}, nil
}

// Venue is a discoverable place. It is never mutated after discovery.
type Venue struct {
	ID       string     `json:"id"`
	Name     string     `json:"name"`
	Address  string     `json:"address"`
	Rating   *float64   `json:"rating,omitempty"`
	Price    PriceTier  `json:"price_tier"`
	Location Coordinate `json:"location"`
	PhotoRef string     `json:"photo_ref,omitempty"`
}

// IDs returns the identifiers of vs in order.
func IDs(vs []Venue) []string {
	ids := make([]string, len(vs))
	for i, v := range vs {
		ids[i] = v.ID
	}
	return ids
}

// Positions returns the coordinates of vs in order.
func Positions(vs []Venue) []Coordinate {
	out := make([]Coordinate, len(vs))
	for i, v := range vs {
		out[i] = v.Location
	}
	return out
}
