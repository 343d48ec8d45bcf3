package service_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/okian/crawlplan/internal/adapters/memory"
	service "github.com/okian/crawlplan/internal/app"
	"github.com/okian/crawlplan/internal/domain/dedupe"
	"github.com/okian/crawlplan/internal/domain/venue"
	"github.com/okian/crawlplan/internal/planner"
	"github.com/okian/crawlplan/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMain(m *testing.M) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

func newService(opts ...service.Option) *service.Service {
	fast := memory.WithLatencyRange(0, 0)
	base := []service.Option{
		service.WithCollaborators(
			memory.NewCatalog(fast),
			memory.NewRouter(true, fast),
			memory.NewGazetteer(nil, fast),
		),
	}
	return service.New(append(base, opts...)...)
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService(service.WithMaxSessions(2))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When creating a session", func() {
			v, err := svc.Create(ctx)
			So(err, ShouldBeNil)

			Convey("Then it starts at the default origin with nothing selected", func() {
				So(v.SessionID, ShouldNotBeEmpty)
				So(v.Origin.Source, ShouldEqual, planner.SourceDefault)
				So(v.Origin.Position, ShouldResemble, planner.DefaultOrigin)
				So(v.Selection, ShouldBeEmpty)
				So(v.CanRequestRoute, ShouldBeFalse)
			})

			Convey("Then it can be looked up and deleted", func() {
				sess, err := svc.Session(v.SessionID)
				So(err, ShouldBeNil)
				So(sess.ID(), ShouldEqual, v.SessionID)

				So(svc.Delete(ctx, v.SessionID), ShouldBeNil)
				_, err = svc.Session(v.SessionID)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				So(errors.Is(svc.Delete(ctx, v.SessionID), service.ErrSessionNotFound), ShouldBeTrue)

				_, err = sess.View(ctx)
				So(errors.Is(err, planner.ErrSessionClosed), ShouldBeTrue)
			})
		})

		Convey("When the session cap is reached", func() {
			_, err1 := svc.Create(ctx)
			_, err2 := svc.Create(ctx)
			_, err3 := svc.Create(ctx)

			Convey("Then further sessions are refused", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(errors.Is(err3, service.ErrTooManySessions), ShouldBeTrue)
				So(svc.GetStats()["activeSessions"], ShouldEqual, 2)
			})
		})

		Convey("When the service stops", func() {
			v, err := svc.Create(ctx)
			So(err, ShouldBeNil)
			sess, _ := svc.Session(v.SessionID)
			svc.Stop()

			Convey("Then every session is closed", func() {
				_, err := sess.View(ctx)
				So(errors.Is(err, planner.ErrSessionClosed), ShouldBeTrue)
				So(svc.Healthy(), ShouldBeFalse)
				So(svc.GetStats()["started"], ShouldBeFalse)
			})
		})
	})

	Convey("Given a service that was never started", t, func() {
		svc := newService()

		Convey("Then creating a session fails", func() {
			_, err := svc.Create(context.Background())
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			So(svc.Size(), ShouldEqual, 0)
		})
	})
}

func TestService_IdleExpiry(t *testing.T) {
	Convey("Given a service on a fake clock", t, func() {
		ctx := context.Background()
		clock := clockwork.NewFakeClock()
		svc := newService(
			service.WithClock(clock),
			service.WithIdleTTL(10*time.Minute),
			service.WithCleanupInterval(time.Hour),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		idle, err := svc.Create(ctx)
		So(err, ShouldBeNil)
		busy, err := svc.Create(ctx)
		So(err, ShouldBeNil)

		Convey("When one session keeps being used past the TTL", func() {
			clock.Advance(6 * time.Minute)
			_, err := svc.Session(busy.SessionID)
			So(err, ShouldBeNil)
			clock.Advance(6 * time.Minute)

			Convey("Then only the idle one is swept", func() {
				So(svc.CleanupIdle(ctx), ShouldEqual, 1)
				_, err := svc.Session(idle.SessionID)
				So(errors.Is(err, service.ErrSessionNotFound), ShouldBeTrue)
				_, err = svc.Session(busy.SessionID)
				So(err, ShouldBeNil)
			})
		})

		Convey("When the cleanup ticker fires after the TTL", func() {
			waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			So(clock.BlockUntilContext(waitCtx, 1), ShouldBeNil)
			clock.Advance(time.Hour)

			Convey("Then both sessions are expired in the background", func() {
				deadline := time.Now().Add(2 * time.Second)
				for time.Now().Before(deadline) && svc.GetStats()["activeSessions"] != 0 {
					time.Sleep(5 * time.Millisecond)
				}
				So(svc.GetStats()["activeSessions"], ShouldEqual, 0)
			})
		})
	})
}

func TestService_Idempotency(t *testing.T) {
	Convey("Given a started service", t, func() {
		ctx := context.Background()
		svc := newService()
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a key is seen for the first time", func() {
			_, seen := svc.SeenAndRecord(ctx, "s1:k1", "f1")
			So(seen, ShouldBeFalse)

			Convey("Then a retry sees a pending entry until it completes", func() {
				e, seen := svc.SeenAndRecord(ctx, "s1:k1", "f1")
				So(seen, ShouldBeTrue)
				So(e.Pending, ShouldBeTrue)

				svc.Complete(ctx, "s1:k1", dedupe.Outcome{Status: 200, Body: []byte(`{}`)})
				e, seen = svc.SeenAndRecord(ctx, "s1:k1", "f1")
				So(seen, ShouldBeTrue)
				So(e.Pending, ShouldBeFalse)
				So(e.Outcome.Status, ShouldEqual, 200)
				So(svc.Size(), ShouldEqual, 1)
				So(svc.GetStats()["idempotencyKeys"], ShouldEqual, int64(1))
			})

			Convey("Then an unrecorded key can run again", func() {
				svc.Unrecord(ctx, "s1:k1")
				_, seen := svc.SeenAndRecord(ctx, "s1:k1", "f1")
				So(seen, ShouldBeFalse)
			})
		})
	})
}

func TestService_DiscoverRequest(t *testing.T) {
	Convey("Given a service with discovery defaults", t, func() {
		svc := newService(service.WithDiscoveryDefaults(800, 7, venue.PriceRange{Min: 2, Max: 3}))

		Convey("When the request leaves everything empty", func() {
			req, err := svc.DiscoverRequest(nil, 0, 0, nil)

			Convey("Then the defaults are used", func() {
				So(err, ShouldBeNil)
				So(req.RadiusMeters, ShouldEqual, 800)
				So(req.Limit, ShouldEqual, 7)
				So(req.Price, ShouldResemble, venue.PriceRange{Min: 2, Max: 3})
				So(req.Center, ShouldBeNil)
			})
		})

		Convey("When only free places are asked for", func() {
			req, err := svc.DiscoverRequest(nil, 300, 2, []venue.PriceTier{0})
			So(err, ShouldBeNil)
			So(req.Price, ShouldResemble, venue.PriceRange{Min: 0, Max: 0})
		})

		Convey("When a tier is out of range", func() {
			_, err := svc.DiscoverRequest(nil, 300, 2, []venue.PriceTier{9})
			So(errors.Is(err, planner.ErrInvalidQuery), ShouldBeTrue)
			So(errors.Is(err, venue.ErrInvalidTier), ShouldBeTrue)
		})
	})
}

func TestService_Stats(t *testing.T) {
	Convey("Given a started service with collaborator health reporting", t, func() {
		ctx := context.Background()
		svc := newService(service.WithCollaboratorHealth(func() map[string]string {
			return map[string]string{"places": "closed"}
		}))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()
		_, err := svc.Create(ctx)
		So(err, ShouldBeNil)

		Convey("Then stats describe sessions and collaborators", func() {
			stats := svc.GetStats()
			So(stats["started"], ShouldBeTrue)
			So(stats["activeSessions"], ShouldEqual, 1)
			So(stats["collaborators"], ShouldResemble, map[string]string{"places": "closed"})
			So(svc.Healthy(), ShouldBeTrue)
		})
	})
}
