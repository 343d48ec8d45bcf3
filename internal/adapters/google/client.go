// Package google implements the discovery, routing and geocoding
// collaborators on the Google Maps Platform web services.
package google

import (
	"fmt"
	"net/http"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/okian/crawlplan/pkg/logger"
	"golang.org/x/time/rate"
	"googlemaps.github.io/maps"
)

const (
	defaultPlaceType  = maps.PlaceTypeBar
	defaultTravelMode = maps.TravelModeWalking
	defaultQPS        = 20
	maxParallelLegs   = 4
)

// Client talks to the Places, Directions and Geocoding APIs.
type Client struct {
	maps       *maps.Client
	placeType  maps.PlaceType
	travelMode maps.Mode

	places     *guard
	directions *guard
	geocoding  *guard
}

type settings struct {
	baseURL    string
	httpClient *http.Client
	placeType  string
	travelMode string
	qps        float64
	breaker    BreakerSettings
	logger     logger.Logger
}

// Option configures a Client.
type Option func(*settings)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithHTTPClient sets the HTTP client used for every call.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		if c != nil {
			s.httpClient = c
		}
	}
}

// WithPlaceType sets the place type searched for, "bar" by default.
func WithPlaceType(t string) Option {
	return func(s *settings) {
		if t != "" {
			s.placeType = t
		}
	}
}

// WithTravelMode sets the directions mode, "walking" by default.
func WithTravelMode(m string) Option {
	return func(s *settings) {
		if m != "" {
			s.travelMode = m
		}
	}
}

// WithQPS caps outbound requests per second across all APIs.
func WithQPS(qps float64) Option {
	return func(s *settings) {
		if qps > 0 {
			s.qps = qps
		}
	}
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(b BreakerSettings) Option {
	return func(s *settings) {
		if b.FailureRate > 0 && b.MinRequests > 0 && b.Window > 0 {
			s.breaker = b
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a client for apiKey.
func New(apiKey string, opts ...Option) (*Client, error) {
	s := settings{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		placeType:  string(defaultPlaceType),
		travelMode: string(defaultTravelMode),
		qps:        defaultQPS,
		breaker:    DefaultBreakerSettings,
		logger:     logger.Get().Named("google"),
	}
	for _, opt := range opts {
		opt(&s)
	}

	mode := maps.Mode(s.travelMode)
	switch mode {
	case maps.TravelModeWalking, maps.TravelModeDriving, maps.TravelModeBicycling, maps.TravelModeTransit:
	default:
		return nil, fmt.Errorf("unsupported travel mode %q", s.travelMode)
	}

	mapsOpts := []maps.ClientOption{maps.WithAPIKey(apiKey), maps.WithHTTPClient(s.httpClient)}
	if s.baseURL != "" {
		mapsOpts = append(mapsOpts, maps.WithBaseURL(s.baseURL))
	}
	mc, err := maps.NewClient(mapsOpts...)
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Limit(s.qps), int(s.qps)+1)
	return &Client{
		maps:       mc,
		placeType:  maps.PlaceType(s.placeType),
		travelMode: mode,
		places:     newGuard("places", s.breaker, limiter, s.logger),
		directions: newGuard("directions", s.breaker, limiter, s.logger),
		geocoding:  newGuard("geocoding", s.breaker, limiter, s.logger),
	}, nil
}

// BreakerStates reports the breaker state per API.
func (c *Client) BreakerStates() map[string]string {
	return map[string]string{
		"places":     c.places.state().String(),
		"directions": c.directions.state().String(),
		"geocoding":  c.geocoding.state().String(),
	}
}

// Healthy reports whether no breaker is open.
func (c *Client) Healthy() bool {
	for _, g := range []*guard{c.places, c.directions, c.geocoding} {
		if g.state() == circuitbreaker.OpenState {
			return false
		}
	}
	return true
}
