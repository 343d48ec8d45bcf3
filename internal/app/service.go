// Package service keeps the live planning sessions and the shared
// collaborators behind the HTTP API.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/okian/crawlplan/internal/adapters/memory"
	"github.com/okian/crawlplan/internal/domain/dedupe"
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/internal/planner"
	"github.com/okian/crawlplan/pkg/logger"
	"github.com/okian/crawlplan/pkg/metrics"
)

type entry struct {
	session  *planner.Session
	created  time.Time
	lastSeen time.Time
}

// Service owns every planning session of the process.
type Service struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	// Collaborators
	discovery       provider.Discovery
	router          provider.Router
	geocoderBackend provider.Geocoder
	geocoder        *sharedGeocoder
	deduper         dedupe.Deduper
	collabHealth    func() map[string]string

	// Configuration
	maxSessions     int
	mailboxSize     int
	dedupeSize      int
	idleTTL         time.Duration
	cleanupInterval time.Duration
	timeout         time.Duration
	defaultOrigin   venue.Coordinate
	defaults        planner.DiscoverRequest

	// State
	clock     clockwork.Clock
	started   bool
	stopCh    chan struct{}
	cleanupWg sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. Without WithCollaborators the offline
// collaborators are used.
func New(opts ...Option) *Service {
	s := &Service{
		sessions:        map[string]*entry{},
		maxSessions:     10_000,
		mailboxSize:     64,
		dedupeSize:      50_000,
		idleTTL:         30 * time.Minute,
		cleanupInterval: time.Minute,
		timeout:         10 * time.Second,
		defaultOrigin:   planner.DefaultOrigin,
		defaults: planner.DiscoverRequest{
			RadiusMeters: 1609,
			Limit:        5,
			Price:        venue.DefaultPriceRange,
		},
		clock: clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start prepares shared components and starts the idle sweep.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.discovery == nil {
		s.discovery = memory.NewCatalog()
	}
	if s.router == nil {
		s.router = memory.NewRouter(true)
	}
	if s.geocoderBackend == nil {
		s.geocoderBackend = memory.NewGazetteer(nil)
	}
	s.geocoder = newSharedGeocoder(s.geocoderBackend, s.timeout)
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.stopCh = make(chan struct{})

	s.startCleanupTimer()
	s.started = true
	metrics.UpdateMailboxCapacity(s.mailboxSize)
	s.logger.Info(ctx, "planning service started",
		logger.Int("maxSessions", s.maxSessions),
		logger.Int("mailboxSize", s.mailboxSize),
		logger.Duration("idleTTL", s.idleTTL),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop closes every session and stops the idle sweep.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.started = false
	live := s.sessions
	s.sessions = map[string]*entry{}
	s.mu.Unlock()

	s.cleanupWg.Wait()
	for id, e := range live {
		if err := e.session.Close(); err != nil {
			s.logger.Warn(context.Background(), "session did not stop cleanly",
				logger.String("session", id), logger.Error(err))
		}
		metrics.RecordSessionClosed()
	}
	metrics.UpdateSessionsActive(0)
	s.logger.Info(context.Background(), "planning service stopped", logger.Int("closedSessions", len(live)))
}

// Create starts a new planning session and returns its first view.
func (s *Service) Create(ctx context.Context) (planner.View, error) {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return planner.View{}, ErrNotStarted
	}
	if len(s.sessions) >= s.maxSessions {
		s.mu.Unlock()
		return planner.View{}, fmt.Errorf("%w: limit %d", ErrTooManySessions, s.maxSessions)
	}

	id := uuid.NewString()
	sess := planner.New(s.discovery, s.router,
		planner.WithID(id),
		planner.WithDefaultOrigin(s.defaultOrigin),
		planner.WithMailboxSize(s.mailboxSize),
		planner.WithCollaboratorTimeout(s.timeout),
		planner.WithLogger(s.logger),
	)
	now := s.clock.Now()
	s.sessions[id] = &entry{session: sess, created: now, lastSeen: now}
	active := len(s.sessions)
	s.mu.Unlock()

	metrics.RecordSessionCreated()
	metrics.UpdateSessionsActive(active)
	s.logger.Debug(ctx, "session created", logger.String("session", id))
	return sess.View(ctx)
}

// Session returns a live session and marks it as used.
func (s *Service) Session(id string) (*planner.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastSeen = s.clock.Now()
	return e.session, nil
}

// Delete closes a session.
func (s *Service) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	active := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	metrics.RecordSessionClosed()
	metrics.UpdateSessionsActive(active)
	s.logger.Debug(ctx, "session deleted", logger.String("session", id))
	return e.session.Close()
}

// CleanupIdle closes sessions idle for longer than the TTL and returns how
// many were closed.
func (s *Service) CleanupIdle(ctx context.Context) int {
	cutoff := s.clock.Now().Add(-s.idleTTL)

	s.mu.Lock()
	var expired []*entry
	for id, e := range s.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e)
			delete(s.sessions, id)
		}
	}
	active := len(s.sessions)
	s.mu.Unlock()

	for _, e := range expired {
		if err := e.session.Close(); err != nil {
			s.logger.Warn(ctx, "expired session did not stop cleanly",
				logger.String("session", e.session.ID()), logger.Error(err))
		}
		metrics.RecordSessionExpired()
	}
	if len(expired) > 0 {
		metrics.UpdateSessionsActive(active)
		s.logger.Info(ctx, "expired idle sessions", logger.Int("count", len(expired)), logger.Int("active", active))
	}
	return len(expired)
}

func (s *Service) startCleanupTimer() {
	ticker := s.clock.NewTicker(s.cleanupInterval)
	stop := s.stopCh
	s.cleanupWg.Add(1)
	go func() {
		defer s.cleanupWg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.Chan():
				s.CleanupIdle(context.Background())
			case <-stop:
				return
			}
		}
	}()
}

// Geocoder returns the shared geocoder.
func (s *Service) Geocoder() provider.Geocoder { return s.geocoder }

// DiscoverRequest builds a discovery request, using the configured defaults
// for a zero radius, a zero limit or an empty tier set.
func (s *Service) DiscoverRequest(center *venue.Coordinate, radiusMeters float64, limit int, tiers []venue.PriceTier) (planner.DiscoverRequest, error) {
	req := planner.DiscoverRequest{
		Center:       center,
		RadiusMeters: radiusMeters,
		Limit:        limit,
		Price:        s.defaults.Price,
	}
	if req.RadiusMeters == 0 {
		req.RadiusMeters = s.defaults.RadiusMeters
	}
	if req.Limit == 0 {
		req.Limit = s.defaults.Limit
	}
	if len(tiers) > 0 {
		price, err := venue.CollapseTiers(tiers)
		if err != nil {
			return planner.DiscoverRequest{}, fmt.Errorf("%w: %w", planner.ErrInvalidQuery, err)
		}
		req.Price = price
	}
	return req, nil
}

// SeenAndRecord atomically checks if an idempotency key was seen and
// reserves it for the request identified by fingerprint if not. A seen key
// returns the recorded entry and true.
func (s *Service) SeenAndRecord(ctx context.Context, key, fingerprint string) (dedupe.Entry, bool) {
	e, seen := s.deduper.SeenAndRecord(ctx, key, fingerprint)
	if seen {
		metrics.RecordIdempotentReplay()
	}
	return e, seen
}

// Complete stores the outcome for a reserved key.
func (s *Service) Complete(ctx context.Context, key string, outcome dedupe.Outcome) {
	s.deduper.Complete(ctx, key, outcome)
}

// Unrecord releases a key so the command can be retried.
func (s *Service) Unrecord(ctx context.Context, key string) {
	s.deduper.Unrecord(ctx, key)
}

// Healthy reports whether the service is started.
func (s *Service) Healthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"maxSessions": s.maxSessions,
		"mailboxSize": s.mailboxSize,
		"dedupeSize":  s.dedupeSize,
		"idleTTL":     s.idleTTL.String(),
	}
	if !s.started {
		return stats
	}

	pending, busiest := 0, 0
	for _, e := range s.sessions {
		n := e.session.Pending()
		pending += n
		if n > busiest {
			busiest = n
		}
	}

	stats["activeSessions"] = len(s.sessions)
	stats["pendingMessages"] = pending
	stats["idempotencyKeys"] = s.Size()
	if s.collabHealth != nil {
		stats["collaborators"] = s.collabHealth()
	}

	metrics.UpdateSessionsActive(len(s.sessions))
	metrics.UpdateMailboxDepth(busiest)
	return stats
}

// Size returns the current number of idempotency keys.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}
