// Package selection implements the ordered, duplicate-free set of venues a
// user has picked for a crawl.
//
// A Set is not safe for concurrent use. It is owned by a single planning
// session and only touched from that session's event loop.
package selection

import (
	"errors"
	"fmt"
	"slices"

	"github.com/okian/crawlplan/internal/domain/venue"
)

// ErrInvalidPermutation is returned by Reorder when the ids are not exactly
// a permutation of the current members.
var ErrInvalidPermutation = errors.New("invalid permutation")

// Change is the membership result of a toggle.
type Change int

const (
	Added Change = iota + 1
	Removed
)

func (c Change) String() string {
	switch c {
	case Added:
		return "added"
	case Removed:
		return "removed"
	default:
		return "unknown"
	}
}

// Set is an ordered sequence of venues in which no id appears twice.
type Set struct {
	items   []venue.Venue
	version uint64
}

// New returns an empty set.
func New() *Set {
	return &Set{}
}

// Toggle removes v if it is a member, otherwise appends it.
func (s *Set) Toggle(v venue.Venue) Change {
	if i := s.index(v.ID); i >= 0 {
		s.items = slices.Delete(s.items, i, i+1)
		s.version++
		return Removed
	}
	s.items = append(s.items, v)
	s.version++
	return Added
}

// Contains reports whether id is a member.
func (s *Set) Contains(id string) bool {
	return s.index(id) >= 0
}

// Order returns a copy of the members in crawl order.
func (s *Set) Order() []venue.Venue {
	return slices.Clone(s.items)
}

// IDs returns the member ids in crawl order.
func (s *Set) IDs() []string {
	return venue.IDs(s.items)
}

// Reorder replaces the order with ids. Nothing changes unless ids is a
// permutation of the current members.
func (s *Set) Reorder(ids []string) error {
	if len(ids) != len(s.items) {
		return fmt.Errorf("%w: got %d ids for %d members", ErrInvalidPermutation, len(ids), len(s.items))
	}

	byID := make(map[string]venue.Venue, len(s.items))
	for _, v := range s.items {
		byID[v.ID] = v
	}

	next := make([]venue.Venue, 0, len(ids))
	for _, id := range ids {
		v, ok := byID[id]
		if !ok {
			return fmt.Errorf("%w: %q is missing, duplicated or not selected", ErrInvalidPermutation, id)
		}
		delete(byID, id)
		next = append(next, v)
	}

	if slices.Equal(venue.IDs(next), s.IDs()) {
		return nil
	}
	s.items = next
	s.version++
	return nil
}

// Reset removes every member.
func (s *Set) Reset() {
	if len(s.items) == 0 {
		return
	}
	s.items = nil
	s.version++
}

// Size returns the number of members.
func (s *Set) Size() int {
	return len(s.items)
}

// Version increases on every mutation that changes the id sequence.
func (s *Set) Version() uint64 {
	return s.version
}

func (s *Set) index(id string) int {
	return slices.IndexFunc(s.items, func(v venue.Venue) bool { return v.ID == id })
}
