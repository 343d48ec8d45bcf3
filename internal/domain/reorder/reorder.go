// Package reorder turns drag gestures over the visual selection list into a
// permutation of that list.
package reorder

import (
	"errors"
	"math"
	"slices"
)

var (
	// ErrDragInProgress is returned when a drag starts while another is active.
	ErrDragInProgress = errors.New("drag already in progress")
	// ErrNotDragging is returned by Move and End outside a drag.
	ErrNotDragging = errors.New("no drag in progress")
	// ErrUnknownItem is returned when a drag starts on an item not in the list.
	ErrUnknownItem = errors.New("unknown item")
)

// State of the controller.
type State int

const (
	Idle State = iota
	Dragging
)

func (s State) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// Box is the vertical extent of a rendered list item.
type Box struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

func (b Box) mid() float64 { return b.Top + b.Height/2 }

// Controller mirrors the selection order as a visual list and permutes it
// while an item is dragged. It is not safe for concurrent use.
type Controller struct {
	items  []string
	state  State
	active string
}

// New returns an idle controller over ids.
func New(ids []string) *Controller {
	return &Controller{items: slices.Clone(ids)}
}

// Sync replaces the visual list with ids. A drag in progress is kept when
// the membership is unchanged and aborted without commit otherwise.
// It reports whether a drag was aborted.
func (c *Controller) Sync(ids []string) bool {
	if c.state == Dragging {
		if sameMembers(c.items, ids) {
			return false
		}
		c.items = slices.Clone(ids)
		c.state, c.active = Idle, ""
		return true
	}
	c.items = slices.Clone(ids)
	return false
}

// Start begins dragging id. A second Start during a drag is ignored.
func (c *Controller) Start(id string) error {
	if c.state == Dragging {
		return ErrDragInProgress
	}
	if !slices.Contains(c.items, id) {
		return ErrUnknownItem
	}
	c.state, c.active = Dragging, id
	return nil
}

// Move repositions the active item for a pointer at y. Among the other items
// that have a box, the target is the one whose midpoint is below y and
// closest to it; the active item goes right before the target, or to the end
// when there is none. It returns the resulting visual order.
func (c *Controller) Move(y float64, boxes map[string]Box) ([]string, error) {
	if c.state != Dragging {
		return nil, ErrNotDragging
	}

	target := ""
	closest := math.Inf(-1)
	for _, id := range c.items {
		if id == c.active {
			continue
		}
		b, ok := boxes[id]
		if !ok {
			continue
		}
		offset := y - b.mid()
		if offset < 0 && offset > closest {
			closest, target = offset, id
		}
	}

	rest := slices.DeleteFunc(slices.Clone(c.items), func(id string) bool { return id == c.active })
	if target == "" {
		c.items = append(rest, c.active)
	} else {
		i := slices.Index(rest, target)
		c.items = slices.Insert(rest, i, c.active)
	}
	return c.Items(), nil
}

// End finishes the drag and returns the order to commit. There is no cancel
// path: the order at drop is committed even when nothing moved.
func (c *Controller) End() ([]string, error) {
	if c.state != Dragging {
		return nil, ErrNotDragging
	}
	c.state, c.active = Idle, ""
	return c.Items(), nil
}

// Items returns the current visual order.
func (c *Controller) Items() []string { return slices.Clone(c.items) }

// State returns the controller state.
func (c *Controller) State() State { return c.state }

// Active returns the dragged id, or "" when idle.
func (c *Controller) Active() string { return c.active }

// StackLayout returns boxes for ids drawn as a uniform vertical list.
func StackLayout(ids []string, itemHeight, gap float64) map[string]Box {
	boxes := make(map[string]Box, len(ids))
	for i, id := range ids {
		boxes[id] = Box{Top: float64(i) * (itemHeight + gap), Height: itemHeight}
	}
	return boxes
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
