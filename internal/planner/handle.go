package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/crawlplan/internal/adapters/mq/queue"
	"github.com/okian/crawlplan/internal/domain/optimize"
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/reorder"
	"github.com/okian/crawlplan/internal/domain/route"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/pkg/logger"
	"github.com/okian/crawlplan/pkg/metrics"
)

// handle runs on the event loop only.
func (s *Session) handle(ctx context.Context, m queue.Message) {
	switch msg := m.(type) {
	case discoverMsg:
		s.onDiscover(ctx, msg)
	case discoverDoneMsg:
		s.onDiscoverDone(ctx, msg)
	case toggleMsg:
		s.onToggle(ctx, msg)
	case reorderMsg:
		s.onReorder(ctx, msg)
	case optimizeMsg:
		s.onOptimize(ctx, msg)
	case dragStartMsg:
		s.onDragStart(ctx, msg)
	case dragMoveMsg:
		s.onDragMove(ctx, msg)
	case dragEndMsg:
		s.onDragEnd(ctx, msg)
	case routeMsg:
		s.startRoute(ctx, msg.reply)
	case routeDoneMsg:
		s.onRouteDone(ctx, msg)
	case originMsg:
		s.origin = msg.origin
		s.notify(ctx)
		msg.reply.send(reply{view: s.snapshot()})
	case viewMsg:
		msg.reply.send(reply{view: s.snapshot()})
	default:
		s.logger.Error(ctx, "unknown message", logger.String("kind", m.Kind()))
	}
}

func (s *Session) onDiscover(ctx context.Context, msg discoverMsg) {
	s.discoverySeq++
	seq := s.discoverySeq

	q := provider.Query{
		Center:       s.origin.Position,
		RadiusMeters: msg.req.RadiusMeters,
		Price:        msg.req.Price,
		Limit:        msg.req.Limit,
	}
	if msg.req.Center != nil {
		q.Center = *msg.req.Center
	}

	s.logger.Debug(ctx, "discovery started",
		logger.Uint64("seq", seq),
		logger.String("center", q.Center.String()),
		logger.Float64("radius_m", q.RadiusMeters),
	)

	go func() {
		callCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		venues, err := s.discovery.FindVenues(callCtx, q)
		s.post(discoverDoneMsg{seq: seq, venues: venues, err: err, reply: msg.reply})
	}()
}

func (s *Session) onDiscoverDone(ctx context.Context, msg discoverDoneMsg) {
	if msg.seq != s.discoverySeq {
		metrics.RecordDiscovery("superseded", 0)
		msg.reply.send(reply{view: s.snapshot(), err: ErrSuperseded})
		return
	}
	if msg.err != nil {
		err := msg.err
		if !errors.Is(err, provider.ErrCollaboratorUnavailable) {
			err = fmt.Errorf("%w: %v", provider.ErrCollaboratorUnavailable, err)
		}
		metrics.RecordDiscovery("failed", 0)
		s.logger.Warn(ctx, "discovery failed", logger.Error(err))
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}

	batch := make([]venue.Venue, 0, len(msg.venues))
	byID := make(map[string]venue.Venue, len(msg.venues))
	for _, v := range msg.venues {
		if _, dup := byID[v.ID]; dup || v.ID == "" {
			continue
		}
		byID[v.ID] = v
		batch = append(batch, v)
	}
	s.batch, s.byID = batch, byID

	if s.sel.Size() > 0 {
		metrics.RecordSelectionMutation("reset", 0)
	}
	s.sel.Reset()
	s.route.Invalidate()
	if s.drag.Sync(nil) {
		metrics.RecordDrag("aborted")
	}
	s.routeValidAtDrag = false

	metrics.RecordDiscovery("applied", len(batch))
	s.logger.Info(ctx, "discovery applied", logger.Int("venues", len(batch)))
	s.notify(ctx)
	msg.reply.send(reply{view: s.snapshot()})
}

func (s *Session) onToggle(ctx context.Context, msg toggleMsg) {
	v, ok := s.byID[msg.id]
	if !ok {
		msg.reply.send(reply{view: s.snapshot(), err: fmt.Errorf("%w: %q", ErrUnknownVenue, msg.id)})
		return
	}

	change := s.sel.Toggle(v)
	metrics.RecordSelectionMutation("toggle", s.sel.Size())
	s.selectionChanged(ctx)
	msg.reply.send(reply{view: s.snapshot(), change: change})
}

func (s *Session) onReorder(ctx context.Context, msg reorderMsg) {
	if s.drag.State() == reorder.Dragging {
		msg.reply.send(reply{view: s.snapshot(), err: reorder.ErrDragInProgress})
		return
	}
	if err := s.applyOrder(ctx, "reorder", msg.ids); err != nil {
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}
	msg.reply.send(reply{view: s.snapshot()})
}

func (s *Session) onOptimize(ctx context.Context, msg optimizeMsg) {
	if s.drag.State() == reorder.Dragging {
		msg.reply.send(reply{view: s.snapshot(), err: reorder.ErrDragInProgress})
		return
	}
	if err := s.applyOrder(ctx, "optimize", optimize.NearestNeighbour(s.sel.Order())); err != nil {
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}
	msg.reply.send(reply{view: s.snapshot()})
}

func (s *Session) onDragStart(ctx context.Context, msg dragStartMsg) {
	if err := s.drag.Start(msg.id); err != nil {
		if errors.Is(err, reorder.ErrDragInProgress) {
			metrics.RecordDrag("ignored")
		}
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}
	s.routeValidAtDrag = s.route.HasRoute() && !s.route.IsStale(s.sel.IDs())
	metrics.RecordDrag("started")
	s.notify(ctx)
	msg.reply.send(reply{view: s.snapshot()})
}

func (s *Session) onDragMove(ctx context.Context, msg dragMoveMsg) {
	if _, err := s.drag.Move(msg.y, msg.boxes); err != nil {
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}
	s.notify(ctx)
	msg.reply.send(reply{view: s.snapshot()})
}

func (s *Session) onDragEnd(ctx context.Context, msg dragEndMsg) {
	order, err := s.drag.End()
	if err != nil {
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}
	recompute := s.routeValidAtDrag
	s.routeValidAtDrag = false

	if err := s.applyOrder(ctx, "drag", order); err != nil {
		metrics.RecordDrag("rejected")
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}
	metrics.RecordDrag("committed")

	if recompute {
		s.startRoute(ctx, nil)
	}
	msg.reply.send(reply{view: s.snapshot()})
}

// applyOrder commits ids to the selection and keeps dependants in step.
func (s *Session) applyOrder(ctx context.Context, op string, ids []string) error {
	before := s.sel.Version()
	if err := s.sel.Reorder(ids); err != nil {
		// A correctly wired drag never produces this.
		s.logger.Error(ctx, "rejected selection order",
			logger.String("op", op), logger.Strings("ids", ids), logger.Error(err))
		s.drag.Sync(s.sel.IDs())
		return err
	}
	if s.sel.Version() != before {
		metrics.RecordSelectionMutation(op, s.sel.Size())
		s.selectionChanged(ctx)
		return nil
	}
	s.drag.Sync(s.sel.IDs())
	s.notify(ctx)
	return nil
}

// selectionChanged runs after every mutation that changed the id sequence.
func (s *Session) selectionChanged(ctx context.Context) {
	s.route.MarkStale()
	if s.sel.Size() < route.MinStops {
		s.route.Invalidate()
	}
	if s.drag.Sync(s.sel.IDs()) {
		s.routeValidAtDrag = false
		metrics.RecordDrag("aborted")
		s.logger.Debug(ctx, "drag aborted by membership change")
	}
	s.notify(ctx)
}

// startRoute issues a route request for the current order. r may be nil for
// requests nobody waits on.
func (s *Session) startRoute(ctx context.Context, r replyCh) {
	venues := s.sel.Order()
	ticket, err := s.route.Begin(venues)
	if err != nil {
		metrics.RecordRouteRequest("insufficient")
		r.send(reply{view: s.snapshot(), err: err})
		return
	}

	s.logger.Debug(ctx, "route requested",
		logger.Uint64("ticket", ticket.Seq), logger.Strings("basis", ticket.Basis))
	s.notify(ctx)

	go func() {
		callCtx, cancel := context.WithTimeout(s.ctx, s.timeout)
		defer cancel()
		res, err := s.router.ComputeRoute(callCtx, venues)
		s.post(routeDoneMsg{ticket: ticket, route: res, err: err, reply: r})
	}()
}

func (s *Session) onRouteDone(ctx context.Context, msg routeDoneMsg) {
	if msg.err != nil {
		err := msg.err
		if !errors.Is(err, provider.ErrCollaboratorUnavailable) {
			err = fmt.Errorf("%w: %v", provider.ErrCollaboratorUnavailable, err)
		}
		s.route.Fail(msg.ticket, err)
		metrics.RecordRouteRequest("failed")
		s.logger.Warn(ctx, "route request failed", logger.Uint64("ticket", msg.ticket.Seq), logger.Error(err))
		s.notify(ctx)
		msg.reply.send(reply{view: s.snapshot(), err: err})
		return
	}

	outcome, err := s.route.Apply(msg.ticket, msg.route, s.sel.IDs())
	if err != nil {
		metrics.RecordRouteRequest("malformed")
		s.logger.Error(ctx, "route response rejected", logger.Error(err))
		s.notify(ctx)
		msg.reply.send(reply{view: s.snapshot(), err: fmt.Errorf("%w: %v", provider.ErrCollaboratorUnavailable, err)})
		return
	}

	metrics.RecordRouteRequest(outcome.String())
	if outcome == route.Applied {
		s.logger.Info(ctx, "route applied",
			logger.Strings("basis", msg.ticket.Basis),
			logger.String("distance", msg.route.Summary.DistanceText),
			logger.String("duration", msg.route.Summary.DurationText),
		)
	}
	s.notify(ctx)
	msg.reply.send(reply{view: s.snapshot(), outcome: outcome})
}

func (s *Session) notify(ctx context.Context) {
	if s.renderer != nil {
		s.renderer.Render(ctx, s.snapshot())
	}
}
