package planner

import (
	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/reorder"
	"github.com/okian/crawlplan/internal/domain/route"
	"github.com/okian/crawlplan/internal/domain/selection"
	"github.com/okian/crawlplan/internal/domain/venue"
)

// reply is what the event loop sends back to a waiting caller. Reply
// channels are buffered so the loop never blocks on a caller that left.
type reply struct {
	view    View
	change  selection.Change
	outcome route.Outcome
	err     error
}

type replyCh chan reply

func newReply() replyCh { return make(replyCh, 1) }

func (r replyCh) send(rep reply) {
	if r != nil {
		r <- rep
	}
}

type (
	discoverMsg struct {
		req   DiscoverRequest
		reply replyCh
	}
	discoverDoneMsg struct {
		seq    uint64
		venues []venue.Venue
		err    error
		reply  replyCh
	}
	toggleMsg struct {
		id    string
		reply replyCh
	}
	reorderMsg struct {
		ids   []string
		reply replyCh
	}
	optimizeMsg struct {
		reply replyCh
	}
	dragStartMsg struct {
		id    string
		reply replyCh
	}
	dragMoveMsg struct {
		y     float64
		boxes map[string]reorder.Box
		reply replyCh
	}
	dragEndMsg struct {
		reply replyCh
	}
	routeMsg struct {
		reply replyCh
	}
	routeDoneMsg struct {
		ticket route.Ticket
		route  provider.Route
		err    error
		reply  replyCh
	}
	originMsg struct {
		origin Origin
		reply  replyCh
	}
	viewMsg struct {
		reply replyCh
	}
)

func (discoverMsg) Kind() string     { return "discover" }
func (discoverDoneMsg) Kind() string { return "discover_done" }
func (toggleMsg) Kind() string       { return "toggle" }
func (reorderMsg) Kind() string      { return "reorder" }
func (optimizeMsg) Kind() string     { return "optimize" }
func (dragStartMsg) Kind() string    { return "drag_start" }
func (dragMoveMsg) Kind() string     { return "drag_move" }
func (dragEndMsg) Kind() string      { return "drag_end" }
func (routeMsg) Kind() string        { return "route" }
func (routeDoneMsg) Kind() string    { return "route_done" }
func (originMsg) Kind() string       { return "origin" }
func (viewMsg) Kind() string         { return "view" }
