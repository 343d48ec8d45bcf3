package planner

import (
	"time"

	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/pkg/logger"
)

// Default origin near Drexel University, Philadelphia.
var DefaultOrigin = venue.Coordinate{Lat: 39.9566, Lng: -75.1899}

const (
	defaultMailboxSize = 64
	defaultTimeout     = 10 * time.Second
)

// Option applies a configuration option to a Session.
type Option func(*Session)

// WithID sets the session id used in logs and views.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// WithDefaultOrigin sets the origin used when no location is known.
func WithDefaultOrigin(c venue.Coordinate) Option {
	return func(s *Session) {
		if c.Valid() {
			s.defaultOrigin = c
		}
	}
}

// WithMailboxSize bounds the number of pending commands.
func WithMailboxSize(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.mailboxSize = n
		}
	}
}

// WithCollaboratorTimeout bounds each discovery or routing call.
func WithCollaboratorTimeout(d time.Duration) Option {
	return func(s *Session) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithRenderer registers a renderer notified after every state change.
func WithRenderer(r Renderer) Option {
	return func(s *Session) {
		if r != nil {
			s.renderer = r
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}
