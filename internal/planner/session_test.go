package planner_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/reorder"
	"github.com/okian/crawlplan/internal/domain/route"
	"github.com/okian/crawlplan/internal/domain/selection"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/internal/planner"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSessionSelectionAndRoute(t *testing.T) {
	Convey("Given a session with five discovered venues", t, func() {
		ctx := context.Background()
		vs := bars(5)
		disc := &staticDiscovery{venues: vs}
		router := &countingRouter{}
		rend := &recordingRenderer{}
		s := planner.New(disc, router, planner.WithID("t1"), planner.WithRenderer(rend))
		Reset(func() { _ = s.Close() })

		view, err := s.Discover(ctx, discoverAll())
		So(err, ShouldBeNil)
		So(view.Venues, ShouldHaveLength, 5)
		So(view.SessionID, ShouldEqual, "t1")

		Convey("When searching without a center", func() {
			Convey("Then the session origin is used", func() {
				So(disc.lastQuery().Center, ShouldResemble, planner.DefaultOrigin)
				So(disc.lastQuery().Limit, ShouldEqual, 10)
			})
		})

		Convey("When two venues are toggled and a route is requested", func() {
			ch, _, err := s.Toggle(ctx, "v1")
			So(err, ShouldBeNil)
			So(ch, ShouldEqual, selection.Added)
			_, view, err = s.Toggle(ctx, "v2")
			So(err, ShouldBeNil)
			So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2"})
			So(view.CanRequestRoute, ShouldBeTrue)

			out, view, err := s.RequestRoute(ctx)

			Convey("Then the route is current for that order", func() {
				So(err, ShouldBeNil)
				So(out, ShouldEqual, route.Applied)
				So(view.Route.Present, ShouldBeTrue)
				So(view.Route.Stale, ShouldBeFalse)
				So(view.Route.Basis, ShouldResemble, []string{"v1", "v2"})
				So(view.Route.Render.Mode, ShouldEqual, route.ModeGeometry)
				So(view.Route.Summary.DurationText, ShouldEqual, "6 min")
			})

			Convey("And the selection is reordered", func() {
				view, err := s.Reorder(ctx, []string{"v2", "v1"})

				Convey("Then the route is stale", func() {
					So(err, ShouldBeNil)
					So(view.SelectionIDs(), ShouldResemble, []string{"v2", "v1"})
					So(view.Route.Stale, ShouldBeTrue)
					So(view.Route.Present, ShouldBeTrue)
				})
			})

			Convey("And a member is removed and added back", func() {
				_, _, _ = s.Toggle(ctx, "v3")
				_, view, _ := s.Toggle(ctx, "v3")

				Convey("Then the route stays stale until recomputed", func() {
					So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2"})
					So(view.Route.Stale, ShouldBeTrue)
				})
			})

			Convey("And the selection drops below two venues", func() {
				_, view, _ := s.Toggle(ctx, "v1")

				Convey("Then the route is cleared", func() {
					So(view.Route.Present, ShouldBeFalse)
					So(view.Route.Render.Mode, ShouldEqual, route.ModeNone)
				})
			})

			Convey("And the router fails on the next request", func() {
				_, _ = s.Reorder(ctx, []string{"v2", "v1"})
				router.setErr(errBoom)
				_, view, err := s.RequestRoute(ctx)

				Convey("Then the error is surfaced and the prior route is kept", func() {
					So(errors.Is(err, provider.ErrCollaboratorUnavailable), ShouldBeTrue)
					So(view.Route.Present, ShouldBeTrue)
					So(view.Route.Basis, ShouldResemble, []string{"v1", "v2"})
					So(view.Route.Pending, ShouldBeFalse)
					So(view.SelectionIDs(), ShouldResemble, []string{"v2", "v1"})
				})
			})

			Convey("And discovery runs again", func() {
				view, err := s.Discover(ctx, discoverAll())

				Convey("Then the selection and route are reset", func() {
					So(err, ShouldBeNil)
					So(view.Selection, ShouldBeEmpty)
					So(view.Route.Present, ShouldBeFalse)
					So(view.Route.Render.Mode, ShouldEqual, route.ModeNone)
				})
			})
		})

		Convey("When only one venue is selected", func() {
			_, _, _ = s.Toggle(ctx, "v1")
			_, view, err := s.RequestRoute(ctx)

			Convey("Then the route request is refused and nothing changes", func() {
				So(errors.Is(err, route.ErrInsufficientSelection), ShouldBeTrue)
				So(router.count(), ShouldEqual, 0)
				So(view.SelectionIDs(), ShouldResemble, []string{"v1"})
				So(view.CanRequestRoute, ShouldBeFalse)
			})
		})

		Convey("When toggling a venue that was never discovered", func() {
			_, _, err := s.Toggle(ctx, "ghost")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, planner.ErrUnknownVenue), ShouldBeTrue)
			})
		})

		Convey("When reordering with a foreign id", func() {
			_, _, _ = s.Toggle(ctx, "v1")
			_, _, _ = s.Toggle(ctx, "v2")
			view, err := s.Reorder(ctx, []string{"v1", "v9"})

			Convey("Then the permutation error surfaces and the order holds", func() {
				So(errors.Is(err, selection.ErrInvalidPermutation), ShouldBeTrue)
				So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2"})
			})
		})

		Convey("When the router returns no legs", func() {
			router.noLegs = true
			for _, id := range []string{"v3", "v1", "v2"} {
				_, _, _ = s.Toggle(ctx, id)
			}
			_, view, err := s.RequestRoute(ctx)

			Convey("Then the renderer gets a single straight path over the basis", func() {
				So(err, ShouldBeNil)
				plan := rend.last().Route.Render
				So(plan.Mode, ShouldEqual, route.ModeStraightLine)
				So(plan.Paths, ShouldHaveLength, 1)
				So(plan.Paths[0], ShouldResemble, []venue.Coordinate{vs[2].Location, vs[0].Location, vs[1].Location})
				So(view.Route.Render, ShouldResemble, plan)
			})
		})

		Convey("When optimizing the selection", func() {
			for _, id := range []string{"v1", "v5", "v2", "v4"} {
				_, _, _ = s.Toggle(ctx, id)
			}
			_, _, _ = s.RequestRoute(ctx)
			calls := router.count()
			view, err := s.Optimize(ctx)

			Convey("Then nearest neighbours follow the first stop and no route is requested", func() {
				So(err, ShouldBeNil)
				So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2", "v4", "v5"})
				So(view.Route.Stale, ShouldBeTrue)
				So(router.count(), ShouldEqual, calls)
			})
		})
	})
}

func TestSessionDrag(t *testing.T) {
	Convey("Given a session with three selected venues", t, func() {
		ctx := context.Background()
		router := &countingRouter{}
		s := planner.New(&staticDiscovery{venues: bars(4)}, router)
		Reset(func() { _ = s.Close() })

		_, err := s.Discover(ctx, discoverAll())
		So(err, ShouldBeNil)
		for _, id := range []string{"v1", "v2", "v3"} {
			_, _, err := s.Toggle(ctx, id)
			So(err, ShouldBeNil)
		}
		boxes := reorder.StackLayout([]string{"v1", "v2", "v3"}, 40, 10)

		Convey("When a drag completes and a valid route existed", func() {
			_, _, err := s.RequestRoute(ctx)
			So(err, ShouldBeNil)
			So(router.count(), ShouldEqual, 1)

			_, err = s.DragStart(ctx, "v1")
			So(err, ShouldBeNil)
			view, err := s.DragMove(ctx, 200, boxes)
			So(err, ShouldBeNil)
			So(view.Drag.Items, ShouldResemble, []string{"v2", "v3", "v1"})
			So(view.Drag.State, ShouldEqual, "dragging")
			So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2", "v3"})

			view, err = s.DragEnd(ctx)
			So(err, ShouldBeNil)
			So(view.SelectionIDs(), ShouldResemble, []string{"v2", "v3", "v1"})
			So(view.Route.Pending, ShouldBeTrue)

			Convey("Then the route is recomputed for the new order", func() {
				v, ok := eventually(s, func(v planner.View) bool { return !v.Route.Pending && !v.Route.Stale })
				So(ok, ShouldBeTrue)
				So(v.Route.Basis, ShouldResemble, []string{"v2", "v3", "v1"})
				So(router.count(), ShouldEqual, 2)
			})
		})

		Convey("When the recompute after a drag fails", func() {
			_, _, err := s.RequestRoute(ctx)
			So(err, ShouldBeNil)
			router.setErr(errors.New("directions down"))

			_, err = s.DragStart(ctx, "v1")
			So(err, ShouldBeNil)
			_, err = s.DragMove(ctx, 200, boxes)
			So(err, ShouldBeNil)
			view, err := s.DragEnd(ctx)
			So(err, ShouldBeNil)
			So(view.Route.Error, ShouldBeNil)

			Convey("Then the view reports the failure next to the old route", func() {
				v, ok := eventually(s, func(v planner.View) bool { return !v.Route.Pending })
				So(ok, ShouldBeTrue)
				So(v.Route.Stale, ShouldBeTrue)
				So(v.Route.Render.Stale, ShouldBeTrue)
				So(v.Route.Basis, ShouldResemble, []string{"v1", "v2", "v3"})
				So(v.Route.Error, ShouldNotBeNil)
				So(v.Route.Error.Code, ShouldEqual, "collaborator_unavailable")
				So(v.Route.Error.Message, ShouldContainSubstring, "directions down")

				router.setErr(nil)
				_, v, err = s.RequestRoute(ctx)
				So(err, ShouldBeNil)
				So(v.Route.Error, ShouldBeNil)
				So(v.Route.Stale, ShouldBeFalse)
				So(v.Route.Render.Stale, ShouldBeFalse)
			})
		})

		Convey("When a no-op drag completes and a valid route existed", func() {
			_, _, _ = s.RequestRoute(ctx)
			_, _ = s.DragStart(ctx, "v2")
			view, err := s.DragEnd(ctx)

			Convey("Then the order is unchanged and the route is still recomputed", func() {
				So(err, ShouldBeNil)
				So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2", "v3"})
				_, ok := eventually(s, func(v planner.View) bool { return !v.Route.Pending })
				So(ok, ShouldBeTrue)
				So(router.count(), ShouldEqual, 2)
			})
		})

		Convey("When a drag completes without any route", func() {
			_, _ = s.DragStart(ctx, "v3")
			_, _ = s.DragMove(ctx, -10, boxes)
			view, err := s.DragEnd(ctx)

			Convey("Then no route is requested", func() {
				So(err, ShouldBeNil)
				So(view.SelectionIDs(), ShouldResemble, []string{"v3", "v1", "v2"})
				So(view.Route.Pending, ShouldBeFalse)
				So(router.count(), ShouldEqual, 0)
			})
		})

		Convey("When a drag completes while the route was already stale", func() {
			_, _, _ = s.RequestRoute(ctx)
			_, _ = s.Reorder(ctx, []string{"v3", "v2", "v1"})
			_, _ = s.DragStart(ctx, "v1")
			_, _ = s.DragMove(ctx, -10, boxes)
			_, err := s.DragEnd(ctx)

			Convey("Then no route is requested", func() {
				So(err, ShouldBeNil)
				So(router.count(), ShouldEqual, 1)
			})
		})

		Convey("When a second drag starts during a drag", func() {
			_, _ = s.DragStart(ctx, "v1")
			_, _ = s.DragMove(ctx, 200, boxes)
			view, err := s.DragStart(ctx, "v3")

			Convey("Then it is ignored and the selection is untouched", func() {
				So(errors.Is(err, reorder.ErrDragInProgress), ShouldBeTrue)
				So(view.Drag.Active, ShouldEqual, "v1")
				So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2", "v3"})
			})
		})

		Convey("When the selection is reordered during a drag", func() {
			_, _ = s.DragStart(ctx, "v1")
			_, err := s.Reorder(ctx, []string{"v3", "v2", "v1"})

			Convey("Then the reorder is refused", func() {
				So(errors.Is(err, reorder.ErrDragInProgress), ShouldBeTrue)
			})
		})

		Convey("When membership changes during a drag", func() {
			_, _ = s.DragStart(ctx, "v1")
			_, _ = s.DragMove(ctx, 200, boxes)
			_, view, err := s.Toggle(ctx, "v4")

			Convey("Then the drag is aborted without committing", func() {
				So(err, ShouldBeNil)
				So(view.Drag.State, ShouldEqual, "idle")
				So(view.SelectionIDs(), ShouldResemble, []string{"v1", "v2", "v3", "v4"})
				_, err := s.DragEnd(ctx)
				So(errors.Is(err, reorder.ErrNotDragging), ShouldBeTrue)
			})
		})
	})

	Convey("Given a session with a single selected venue", t, func() {
		ctx := context.Background()
		s := planner.New(&staticDiscovery{venues: bars(2)}, &countingRouter{})
		Reset(func() { _ = s.Close() })
		_, _ = s.Discover(ctx, discoverAll())
		_, _, _ = s.Toggle(ctx, "v1")

		Convey("When it is dragged", func() {
			_, err := s.DragStart(ctx, "v1")
			So(err, ShouldBeNil)
			_, _ = s.DragMove(ctx, 999, reorder.StackLayout([]string{"v1"}, 40, 0))
			view, err := s.DragEnd(ctx)

			Convey("Then nothing changes", func() {
				So(err, ShouldBeNil)
				So(view.SelectionIDs(), ShouldResemble, []string{"v1"})
			})
		})
	})
}

func TestSessionRequestVersioning(t *testing.T) {
	Convey("Given a session whose router holds every call", t, func() {
		ctx := context.Background()
		router := newGatedRouter()
		s := planner.New(&staticDiscovery{venues: bars(3)}, router)
		Reset(func() { _ = s.Close() })

		_, _ = s.Discover(ctx, discoverAll())
		_, _, _ = s.Toggle(ctx, "v1")
		_, _, _ = s.Toggle(ctx, "v2")

		type result struct {
			out route.Outcome
			err error
		}
		request := func() <-chan result {
			ch := make(chan result, 1)
			go func() {
				out, _, err := s.RequestRoute(ctx)
				ch <- result{out, err}
			}()
			return ch
		}

		Convey("When order A is requested, reordered to B and requested again", func() {
			a := request()
			So(<-router.started, ShouldResemble, []string{"v1", "v2"})
			_, err := s.Reorder(ctx, []string{"v2", "v1"})
			So(err, ShouldBeNil)
			b := request()
			So(<-router.started, ShouldResemble, []string{"v2", "v1"})

			Convey("And A answers after B", func() {
				router.release(1, nil)
				So((<-b).out, ShouldEqual, route.Applied)
				router.release(0, nil)
				So((<-a).out, ShouldEqual, route.Superseded)

				Convey("Then the final basis is B", func() {
					v, _ := s.View(ctx)
					So(v.Route.Basis, ShouldResemble, []string{"v2", "v1"})
					So(v.Route.Stale, ShouldBeFalse)
				})
			})

			Convey("And A answers before B", func() {
				router.release(0, nil)
				So((<-a).out, ShouldEqual, route.Superseded)
				router.release(1, nil)
				So((<-b).out, ShouldEqual, route.Applied)

				Convey("Then the final basis is still B", func() {
					v, _ := s.View(ctx)
					So(v.Route.Basis, ShouldResemble, []string{"v2", "v1"})
				})
			})
		})

		Convey("When the order changes while the only request is in flight", func() {
			a := request()
			<-router.started
			_, _ = s.Reorder(ctx, []string{"v2", "v1"})
			router.release(0, nil)
			res := <-a

			Convey("Then the answer is discarded as outdated", func() {
				So(res.err, ShouldBeNil)
				So(res.out, ShouldEqual, route.Outdated)
				v, _ := s.View(ctx)
				So(v.Route.Present, ShouldBeFalse)
				So(v.Route.Pending, ShouldBeFalse)
			})
		})

		Convey("When the caller gives up while the router is slow", func() {
			short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
			defer cancel()
			_, _, err := s.RequestRoute(short)
			So(errors.Is(err, context.DeadlineExceeded), ShouldBeTrue)
			<-router.started
			router.release(0, nil)

			Convey("Then the route is still applied when it arrives", func() {
				v, ok := eventually(s, func(v planner.View) bool { return v.Route.Present })
				So(ok, ShouldBeTrue)
				So(v.Route.Basis, ShouldResemble, []string{"v1", "v2"})
			})
		})
	})
}

func TestSessionDiscovery(t *testing.T) {
	Convey("Given a session whose discovery holds every call", t, func() {
		ctx := context.Background()
		disc := newGatedDiscovery()
		s := planner.New(disc, &countingRouter{})
		Reset(func() { _ = s.Close() })

		Convey("When two discoveries overlap and the first answers last", func() {
			errs := make(chan error, 2)
			go func() { _, err := s.Discover(ctx, discoverAll()); errs <- err }()
			<-disc.started
			go func() { _, err := s.Discover(ctx, discoverAll()); errs <- err }()
			<-disc.started

			disc.release(1, bars(2))
			So(<-errs, ShouldBeNil)
			disc.release(0, bars(5))
			err := <-errs

			Convey("Then only the latest batch is kept", func() {
				So(errors.Is(err, planner.ErrSuperseded), ShouldBeTrue)
				v, _ := s.View(ctx)
				So(v.Venues, ShouldHaveLength, 2)
			})
		})
	})

	Convey("Given a session whose discovery fails", t, func() {
		ctx := context.Background()
		disc := &staticDiscovery{venues: bars(3)}
		s := planner.New(disc, &countingRouter{})
		Reset(func() { _ = s.Close() })
		_, _ = s.Discover(ctx, discoverAll())
		_, _, _ = s.Toggle(ctx, "v1")

		disc.setErr(errBoom)
		view, err := s.Discover(ctx, discoverAll())

		Convey("Then the error is terminal and state is untouched", func() {
			So(errors.Is(err, provider.ErrCollaboratorUnavailable), ShouldBeTrue)
			So(view.Venues, ShouldHaveLength, 3)
			So(view.SelectionIDs(), ShouldResemble, []string{"v1"})
		})
	})

	Convey("Given an invalid discovery request", t, func() {
		s := planner.New(&staticDiscovery{}, &countingRouter{})
		Reset(func() { _ = s.Close() })

		_, err := s.Discover(context.Background(), planner.DiscoverRequest{RadiusMeters: 0, Limit: 5, Price: venue.DefaultPriceRange})
		So(errors.Is(err, planner.ErrInvalidQuery), ShouldBeTrue)
		_, err = s.Discover(context.Background(), planner.DiscoverRequest{RadiusMeters: 10, Limit: 5, Price: venue.PriceRange{Min: 4, Max: 1}})
		So(errors.Is(err, planner.ErrInvalidQuery), ShouldBeTrue)
	})
}

func TestSessionOrigin(t *testing.T) {
	Convey("Given a new session", t, func() {
		ctx := context.Background()
		home := venue.Coordinate{Lat: 40.0, Lng: -75.0}
		s := planner.New(&staticDiscovery{}, &countingRouter{}, planner.WithDefaultOrigin(home))
		Reset(func() { _ = s.Close() })

		Convey("When the locator is denied", func() {
			view, err := s.Locate(ctx, provider.StaticLocator{Err: provider.ErrLocationUnavailable})

			Convey("Then the default origin is used without an error", func() {
				So(err, ShouldBeNil)
				So(view.Origin.Source, ShouldEqual, planner.SourceDefault)
				So(view.Origin.Position, ShouldResemble, home)
			})
		})

		Convey("When the locator answers", func() {
			here := venue.Coordinate{Lat: 39.96, Lng: -75.2}
			view, err := s.Locate(ctx, provider.StaticLocator{Coordinate: here})

			Convey("Then the origin follows the device", func() {
				So(err, ShouldBeNil)
				So(view.Origin.Source, ShouldEqual, planner.SourceGPS)
				So(view.Origin.Position, ShouldResemble, here)
			})
		})

		Convey("When an address resolves", func() {
			at := venue.Coordinate{Lat: 39.94, Lng: -75.15}
			view, err := s.UseAddress(ctx, fixedGeocoder{at: at}, "South Street")

			Convey("Then it becomes a custom origin", func() {
				So(err, ShouldBeNil)
				So(view.Origin.Source, ShouldEqual, planner.SourceCustom)
				So(view.Origin.Label, ShouldEqual, "South Street")
				So(view.Origin.Position, ShouldResemble, at)
			})
		})

		Convey("When an address cannot be found", func() {
			_, err := s.UseAddress(ctx, failingGeocoder{err: provider.ErrNotFound}, "nowhere")

			Convey("Then the error surfaces and the origin is unchanged", func() {
				So(errors.Is(err, provider.ErrNotFound), ShouldBeTrue)
				v, _ := s.View(ctx)
				So(v.Origin.Source, ShouldEqual, planner.SourceDefault)
			})
		})

		Convey("When geocoding is down", func() {
			_, err := s.UseAddress(ctx, failingGeocoder{err: errBoom}, "x")
			So(errors.Is(err, provider.ErrCollaboratorUnavailable), ShouldBeTrue)
		})
	})
}

// blockingRenderer stalls the event loop while its gate is closed.
type blockingRenderer struct {
	mu      sync.Mutex
	block   bool
	entered chan struct{}
	gate    chan struct{}
}

func (r *blockingRenderer) Render(context.Context, planner.View) {
	r.mu.Lock()
	block := r.block
	r.block = false
	r.mu.Unlock()
	if block {
		r.entered <- struct{}{}
		<-r.gate
	}
}

func TestSessionLifecycle(t *testing.T) {
	Convey("Given a session with a one-slot mailbox", t, func() {
		ctx := context.Background()
		rend := &blockingRenderer{entered: make(chan struct{}, 1), gate: make(chan struct{})}
		s := planner.New(&staticDiscovery{venues: bars(2)}, &countingRouter{},
			planner.WithMailboxSize(1), planner.WithRenderer(rend))
		_, err := s.Discover(ctx, discoverAll())
		So(err, ShouldBeNil)

		Convey("When the loop is busy and the mailbox is full", func() {
			rend.mu.Lock()
			rend.block = true
			rend.mu.Unlock()

			go func() { _, _, _ = s.Toggle(ctx, "v1") }()
			<-rend.entered
			So(fillMailbox(s), ShouldBeTrue)

			_, _, err := s.Toggle(ctx, "v2")

			Convey("Then commands are pushed back", func() {
				So(errors.Is(err, planner.ErrBackpressure), ShouldBeTrue)
				close(rend.gate)
				_ = s.Close()
			})
		})

		Convey("When the session is closed", func() {
			So(s.Close(), ShouldBeNil)
			_, err := s.View(ctx)

			Convey("Then every command fails with ErrSessionClosed", func() {
				So(errors.Is(err, planner.ErrSessionClosed), ShouldBeTrue)
				_, _, err = s.Toggle(ctx, "v1")
				So(errors.Is(err, planner.ErrSessionClosed), ShouldBeTrue)
			})
		})
	})
}

// fillMailbox posts views until the mailbox stays full while the loop is
// stalled.
func fillMailbox(s *planner.Session) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if s.Pending() >= 1 {
			time.Sleep(10 * time.Millisecond)
			if s.Pending() >= 1 {
				return true
			}
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_, _ = s.View(ctx)
		}()
		time.Sleep(time.Millisecond)
	}
	return false
}
