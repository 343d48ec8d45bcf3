package service

import (
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCollaborators sets the discovery, routing and geocoding backends.
func WithCollaborators(d provider.Discovery, r provider.Router, g provider.Geocoder) Option {
	return func(s *Service) {
		if d != nil {
			s.discovery = d
		}
		if r != nil {
			s.router = r
		}
		if g != nil {
			s.geocoderBackend = g
		}
	}
}

// WithMaxSessions caps the number of live sessions.
func WithMaxSessions(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSessions = n
		}
	}
}

// WithIdleTTL closes sessions that have not been used for d.
func WithIdleTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.idleTTL = d
		}
	}
}

// WithCleanupInterval sets how often idle sessions are swept.
func WithCleanupInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cleanupInterval = d
		}
	}
}

// WithMailboxSize sets the per-session mailbox capacity.
func WithMailboxSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.mailboxSize = n
		}
	}
}

// WithCollaboratorTimeout bounds each outbound call made for a session.
func WithCollaboratorTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithDefaultOrigin sets the origin used when no position is known.
func WithDefaultOrigin(c venue.Coordinate) Option {
	return func(s *Service) {
		if c.Valid() {
			s.defaultOrigin = c
		}
	}
}

// WithDiscoveryDefaults sets the values used for fields a discovery request
// leaves empty.
func WithDiscoveryDefaults(radiusMeters float64, limit int, price venue.PriceRange) Option {
	return func(s *Service) {
		if radiusMeters > 0 {
			s.defaults.RadiusMeters = radiusMeters
		}
		if limit > 0 {
			s.defaults.Limit = limit
		}
		if price.Valid() {
			s.defaults.Price = price
		}
	}
}

// WithDedupeSize sets the size of the idempotency-key cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithClock replaces the wall clock, mostly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

// WithCollaboratorHealth reports collaborator health in stats.
func WithCollaboratorHealth(p func() map[string]string) Option {
	return func(s *Service) { s.collabHealth = p }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
