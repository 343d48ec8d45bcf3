package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	. "github.com/smartystreets/goconvey/convey"
)

type slowGeocoder struct {
	calls atomic.Int32
	gate  chan struct{}
	err   error
}

func (g *slowGeocoder) Resolve(ctx context.Context, _ string) (venue.Coordinate, error) {
	g.calls.Add(1)
	select {
	case <-g.gate:
	case <-ctx.Done():
		return venue.Coordinate{}, ctx.Err()
	}
	if g.err != nil {
		return venue.Coordinate{}, g.err
	}
	return venue.Coordinate{Lat: 1, Lng: 2}, nil
}

func TestSharedGeocoder(t *testing.T) {
	Convey("Given a slow geocoder behind the shared wrapper", t, func() {
		backend := &slowGeocoder{gate: make(chan struct{})}
		g := newSharedGeocoder(backend, time.Second)

		Convey("When the same address is resolved concurrently", func() {
			var wg sync.WaitGroup
			results := make([]venue.Coordinate, 3)
			for i, addr := range []string{"Old City", "old  city", " OLD CITY "} {
				wg.Add(1)
				go func() {
					defer wg.Done()
					results[i], _ = g.Resolve(context.Background(), addr)
				}()
			}
			time.Sleep(50 * time.Millisecond)
			close(backend.gate)
			wg.Wait()

			Convey("Then one outbound call answers all of them", func() {
				So(backend.calls.Load(), ShouldEqual, 1)
				for _, r := range results {
					So(r, ShouldResemble, venue.Coordinate{Lat: 1, Lng: 2})
				}
			})
		})

		Convey("When the first caller gives up", func() {
			ctx, cancel := context.WithCancel(context.Background())
			errCh := make(chan error, 1)
			go func() {
				_, err := g.Resolve(ctx, "fishtown")
				errCh <- err
			}()
			time.Sleep(20 * time.Millisecond)
			cancel()
			So(errors.Is(<-errCh, context.Canceled), ShouldBeTrue)

			Convey("Then a later caller still gets the shared answer", func() {
				done := make(chan venue.Coordinate, 1)
				go func() {
					pos, _ := g.Resolve(context.Background(), "fishtown")
					done <- pos
				}()
				time.Sleep(20 * time.Millisecond)
				close(backend.gate)
				So(<-done, ShouldResemble, venue.Coordinate{Lat: 1, Lng: 2})
				So(backend.calls.Load(), ShouldEqual, 1)
			})
		})

		Convey("When the lookup fails", func() {
			backend.err = provider.ErrNotFound
			close(backend.gate)
			_, err := g.Resolve(context.Background(), "atlantis")
			So(errors.Is(err, provider.ErrNotFound), ShouldBeTrue)
		})
	})
}
