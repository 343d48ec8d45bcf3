// Package provider declares the external collaborators a planning session
// talks to and the payloads they exchange.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/crawlplan/internal/domain/venue"
)

var (
	// ErrCollaboratorUnavailable covers network, quota and service failures
	// of discovery, routing and geocoding. Callers do not retry.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")
	// ErrNotFound is returned by a Geocoder that cannot resolve the text.
	ErrNotFound = errors.New("location not found")
	// ErrLocationUnavailable is returned by a Locator that is denied or
	// unsupported.
	ErrLocationUnavailable = errors.New("location unavailable")
)

// Query parameters for venue discovery.
type Query struct {
	Center       venue.Coordinate
	RadiusMeters float64
	Price        venue.PriceRange
	Limit        int
}

// Discovery finds venues around a point.
type Discovery interface {
	FindVenues(ctx context.Context, q Query) ([]venue.Venue, error)
}

// Summary totals a computed route.
type Summary struct {
	DistanceText    string `json:"distance_text"`
	DurationText    string `json:"duration_text"`
	DistanceMeters  int    `json:"distance_meters"`
	DurationSeconds int    `json:"duration_seconds"`
}

// Waypoint pairs a venue with the position the router used for it.
type Waypoint struct {
	VenueID  string           `json:"venue_id"`
	Position venue.Coordinate `json:"position"`
}

// Leg is one segment between consecutive stops. EncodedPath is empty when
// the router returned no geometry for it.
type Leg struct {
	EncodedPath  string `json:"encoded_path,omitempty"`
	DistanceText string `json:"distance_text,omitempty"`
	DurationText string `json:"duration_text,omitempty"`
	StartAddress string `json:"start_address,omitempty"`
	EndAddress   string `json:"end_address,omitempty"`
}

// Route is what a Router returns for an ordered list of venues.
type Route struct {
	Summary   Summary    `json:"summary"`
	Waypoints []Waypoint `json:"waypoints"`
	Legs      []Leg      `json:"legs,omitempty"`
}

// Router computes a route through venues in the given order.
type Router interface {
	ComputeRoute(ctx context.Context, venues []venue.Venue) (Route, error)
}

// Locator reports the device position.
type Locator interface {
	Position(ctx context.Context) (venue.Coordinate, error)
}

// Geocoder resolves free text to a position.
type Geocoder interface {
	Resolve(ctx context.Context, address string) (venue.Coordinate, error)
}

// StaticLocator is a Locator with a known answer, used for positions
// reported by a client device.
type StaticLocator struct {
	Coordinate venue.Coordinate
	Err        error
}

func (l StaticLocator) Position(context.Context) (venue.Coordinate, error) {
	if l.Err != nil {
		return venue.Coordinate{}, l.Err
	}
	if !l.Coordinate.Valid() {
		return venue.Coordinate{}, ErrLocationUnavailable
	}
	return l.Coordinate, nil
}

const metersToMiles = 0.000621371

// FormatDistance renders meters as miles with two decimals.
func FormatDistance(meters int) string {
	return fmt.Sprintf("%.2f mi", float64(meters)*metersToMiles)
}

// FormatDuration renders d as "H hr M min", or "M min" under an hour.
func FormatDuration(d time.Duration) string {
	secs := int(d / time.Second)
	hours := secs / 3600
	minutes := (secs % 3600) / 60
	if hours > 0 {
		return fmt.Sprintf("%d hr %d min", hours, minutes)
	}
	return fmt.Sprintf("%d min", minutes)
}

// Summarize builds a Summary from totals.
func Summarize(meters int, d time.Duration) Summary {
	return Summary{
		DistanceText:    FormatDistance(meters),
		DurationText:    FormatDuration(d),
		DistanceMeters:  meters,
		DurationSeconds: int(d / time.Second),
	}
}
