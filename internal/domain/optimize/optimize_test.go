package optimize_test

import (
	"testing"

	"github.com/okian/crawlplan/internal/domain/optimize"
	"github.com/okian/crawlplan/internal/domain/venue"
	. "github.com/smartystreets/goconvey/convey"
)

func at(id string, lat, lng float64) venue.Venue {
	return venue.Venue{ID: id, Location: venue.Coordinate{Lat: lat, Lng: lng}}
}

func TestNearestNeighbour(t *testing.T) {
	Convey("Given venues along a line visited out of order", t, func() {
		vs := []venue.Venue{
			at("start", 39.950, -75.190),
			at("far", 39.980, -75.190),
			at("near", 39.955, -75.190),
			at("mid", 39.965, -75.190),
		}

		Convey("When optimizing", func() {
			got := optimize.NearestNeighbour(vs)

			Convey("Then the first venue stays first and the rest follow by proximity", func() {
				So(got, ShouldResemble, []string{"start", "near", "mid", "far"})
			})

			Convey("Then the total distance does not grow", func() {
				byID := map[string]venue.Venue{}
				for _, v := range vs {
					byID[v.ID] = v
				}
				ordered := make([]venue.Venue, len(got))
				for i, id := range got {
					ordered[i] = byID[id]
				}
				So(optimize.TotalKm(ordered), ShouldBeLessThanOrEqualTo, optimize.TotalKm(vs))
			})
		})

		Convey("When there are two or fewer venues", func() {
			So(optimize.NearestNeighbour(vs[:2]), ShouldResemble, []string{"start", "far"})
			So(optimize.NearestNeighbour(nil), ShouldBeEmpty)
		})
	})
}
