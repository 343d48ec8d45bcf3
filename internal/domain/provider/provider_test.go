package provider_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/crawlplan/internal/domain/provider"
	"github.com/okian/crawlplan/internal/domain/venue"
	. "github.com/smartystreets/goconvey/convey"
)

func TestFormatting(t *testing.T) {
	Convey("Given route totals", t, func() {
		Convey("When formatting distances", func() {
			So(provider.FormatDistance(0), ShouldEqual, "0.00 mi")
			So(provider.FormatDistance(1609), ShouldEqual, "1.00 mi")
			So(provider.FormatDistance(2414), ShouldEqual, "1.50 mi")
		})

		Convey("When formatting durations", func() {
			So(provider.FormatDuration(59*time.Second), ShouldEqual, "0 min")
			So(provider.FormatDuration(25*time.Minute), ShouldEqual, "25 min")
			So(provider.FormatDuration(time.Hour), ShouldEqual, "1 hr 0 min")
			So(provider.FormatDuration(2*time.Hour+5*time.Minute+30*time.Second), ShouldEqual, "2 hr 5 min")
		})

		Convey("When summarizing", func() {
			s := provider.Summarize(3218, 40*time.Minute)

			Convey("Then texts and raw values agree", func() {
				So(s.DistanceText, ShouldEqual, "2.00 mi")
				So(s.DurationText, ShouldEqual, "40 min")
				So(s.DistanceMeters, ShouldEqual, 3218)
				So(s.DurationSeconds, ShouldEqual, 2400)
			})
		})
	})
}

func TestStaticLocator(t *testing.T) {
	Convey("Given a static locator", t, func() {
		ctx := context.Background()

		Convey("When it holds a valid coordinate", func() {
			c, err := provider.StaticLocator{Coordinate: venue.Coordinate{Lat: 1, Lng: 2}}.Position(ctx)
			So(err, ShouldBeNil)
			So(c, ShouldResemble, venue.Coordinate{Lat: 1, Lng: 2})
		})

		Convey("When it holds an error", func() {
			_, err := provider.StaticLocator{Err: provider.ErrLocationUnavailable}.Position(ctx)
			So(errors.Is(err, provider.ErrLocationUnavailable), ShouldBeTrue)
		})

		Convey("When the coordinate is out of range", func() {
			_, err := provider.StaticLocator{Coordinate: venue.Coordinate{Lat: 100}}.Position(ctx)
			So(errors.Is(err, provider.ErrLocationUnavailable), ShouldBeTrue)
		})
	})
}
