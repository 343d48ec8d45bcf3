// Package planner runs planning sessions: the owned state behind one user's
// crawl (discovered venues, selection, drag state, route, origin) and the
// event loop that serializes every change to it.
//
// Public methods post a message to the session mailbox and wait for the
// answer. Discovery and routing calls run on their own goroutines and post
// their completions back, so a slow collaborator only holds up the caller
// that asked for it.
package planner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/crawlplan/internal/adapters/mq/queue"
	"github.com/okian/crawlplan/internal/adapters/mq/worker"
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/reorder"
	"github.com/okian/crawlplan/internal/domain/route"
	"github.com/okian/crawlplan/internal/domain/selection"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/pkg/logger"
	"github.com/okian/crawlplan/pkg/metrics"
)

const closeTimeout = 5 * time.Second

// DiscoverRequest asks for a new venue batch. A nil Center searches around
// the session origin.
type DiscoverRequest struct {
	Center       *venue.Coordinate
	RadiusMeters float64
	Price        venue.PriceRange
	Limit        int
}

// Session is one planning session.
type Session struct {
	id            string
	discovery     provider.Discovery
	router        provider.Router
	renderer      Renderer
	defaultOrigin venue.Coordinate
	mailboxSize   int
	timeout       time.Duration
	logger        logger.Logger

	mailbox *queue.InMemoryQueue
	loop    *worker.Loop
	ctx     context.Context
	cancel  context.CancelFunc

	// Owned by the event loop.
	batch        []venue.Venue
	byID         map[string]venue.Venue
	discoverySeq uint64
	sel          *selection.Set
	drag         *reorder.Controller
	// routeValidAtDrag records whether a valid route existed when the
	// current drag started.
	routeValidAtDrag bool
	route            *route.Session
	origin           Origin
}

// New starts a session. The session runs until Close.
func New(discovery provider.Discovery, router provider.Router, opts ...Option) *Session {
	s := &Session{
		id:            "session",
		discovery:     discovery,
		router:        router,
		defaultOrigin: DefaultOrigin,
		mailboxSize:   defaultMailboxSize,
		timeout:       defaultTimeout,
		logger:        logger.Get().Named("planner"),
		byID:          map[string]venue.Venue{},
		sel:           selection.New(),
		drag:          reorder.New(nil),
		route:         route.NewSession(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(logger.String("session", s.id))
	s.origin = Origin{Position: s.defaultOrigin, Source: SourceDefault}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.mailbox = queue.NewInMemoryQueue(queue.WithCapacity(s.mailboxSize))
	s.loop = worker.NewLoop(s.mailbox, worker.HandlerFunc(s.handle),
		worker.WithName(s.id), worker.WithLogger(s.logger))
	go s.loop.Run(s.ctx)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Pending returns the number of queued messages.
func (s *Session) Pending() int { return s.mailbox.Len(s.ctx) }

// Close stops the event loop. Callers still waiting get ErrSessionClosed.
func (s *Session) Close() error {
	_ = s.mailbox.Close()
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	return s.loop.Shutdown(ctx)
}

// Discover replaces the venue batch. The selection, drag and route are reset
// when the batch is applied. Only the most recent discovery is applied.
func (s *Session) Discover(ctx context.Context, req DiscoverRequest) (View, error) {
	if req.RadiusMeters <= 0 || req.Limit < 1 || !req.Price.Valid() ||
		(req.Center != nil && !req.Center.Valid()) {
		return View{}, fmt.Errorf("%w: radius=%v limit=%d price=%v", ErrInvalidQuery, req.RadiusMeters, req.Limit, req.Price)
	}
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return discoverMsg{req: req, reply: r} })
	return rep.view, err
}

// Toggle adds or removes a venue of the current batch.
func (s *Session) Toggle(ctx context.Context, venueID string) (selection.Change, View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return toggleMsg{id: venueID, reply: r} })
	return rep.change, rep.view, err
}

// Reorder sets the selection order. ids must be a permutation of it.
func (s *Session) Reorder(ctx context.Context, ids []string) (View, error) {
	ids = append([]string(nil), ids...)
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return reorderMsg{ids: ids, reply: r} })
	return rep.view, err
}

// Optimize reorders the selection by nearest neighbour from its first venue.
// It does not recompute the route.
func (s *Session) Optimize(ctx context.Context) (View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return optimizeMsg{reply: r} })
	return rep.view, err
}

// DragStart begins dragging a selected venue.
func (s *Session) DragStart(ctx context.Context, venueID string) (View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return dragStartMsg{id: venueID, reply: r} })
	return rep.view, err
}

// DragMove reports the pointer position and the current item boxes.
func (s *Session) DragMove(ctx context.Context, y float64, boxes map[string]reorder.Box) (View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return dragMoveMsg{y: y, boxes: boxes, reply: r} })
	return rep.view, err
}

// DragEnd commits the dragged order. If a valid route existed when the drag
// started, a new route is requested; the returned view has Route.Pending set.
func (s *Session) DragEnd(ctx context.Context) (View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return dragEndMsg{reply: r} })
	return rep.view, err
}

// RequestRoute computes a route for the current selection order and waits
// for it.
func (s *Session) RequestRoute(ctx context.Context) (route.Outcome, View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return routeMsg{reply: r} })
	return rep.outcome, rep.view, err
}

// Locate sets the origin from a device locator, falling back to the default
// origin when the position is unavailable. The fallback is not an error.
func (s *Session) Locate(ctx context.Context, locator provider.Locator) (View, error) {
	origin := Origin{Position: s.defaultOrigin, Source: SourceDefault}
	pos, err := locator.Position(ctx)
	switch {
	case err == nil && pos.Valid():
		origin = Origin{Position: pos, Source: SourceGPS}
	default:
		if err == nil {
			err = provider.ErrLocationUnavailable
		}
		metrics.RecordLocationFallback()
		s.logger.Warn(ctx, "location unavailable, using default origin",
			logger.String("origin", s.defaultOrigin.String()), logger.Error(err))
	}
	return s.setOrigin(ctx, origin)
}

// UseAddress sets the origin from free text. A failed lookup leaves the
// origin unchanged.
func (s *Session) UseAddress(ctx context.Context, geocoder provider.Geocoder, address string) (View, error) {
	pos, err := geocoder.Resolve(ctx, address)
	if err != nil {
		if !errors.Is(err, provider.ErrNotFound) && !errors.Is(err, provider.ErrCollaboratorUnavailable) {
			err = fmt.Errorf("%w: %v", provider.ErrCollaboratorUnavailable, err)
		}
		return View{}, err
	}
	return s.setOrigin(ctx, Origin{Position: pos, Source: SourceCustom, Label: address})
}

// View returns a snapshot of the session.
func (s *Session) View(ctx context.Context) (View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return viewMsg{reply: r} })
	return rep.view, err
}

func (s *Session) setOrigin(ctx context.Context, o Origin) (View, error) {
	rep, err := s.call(ctx, func(r replyCh) queue.Message { return originMsg{origin: o, reply: r} })
	return rep.view, err
}

// call posts a command without blocking and waits for its reply.
func (s *Session) call(ctx context.Context, build func(replyCh) queue.Message) (reply, error) {
	r := newReply()
	if err := s.mailbox.Enqueue(ctx, build(r)); err != nil {
		switch {
		case errors.Is(err, queue.ErrFull):
			return reply{}, ErrBackpressure
		case errors.Is(err, queue.ErrClosed):
			return reply{}, ErrSessionClosed
		default:
			return reply{}, err
		}
	}

	select {
	case rep := <-r:
		return rep, rep.err
	case <-ctx.Done():
		return reply{}, ctx.Err()
	case <-s.loop.Done():
		return reply{}, ErrSessionClosed
	}
}

// post delivers a completion, waiting for room. It gives up only when the
// session closes.
func (s *Session) post(m queue.Message) {
	if err := s.mailbox.Put(s.ctx, m); err != nil {
		s.logger.Debug(s.ctx, "completion dropped", logger.String("kind", m.Kind()), logger.Error(err))
	}
}
