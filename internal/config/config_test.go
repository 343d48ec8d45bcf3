package config_test

import (
	"testing"

	"github.com/okian/crawlplan/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.PlaceType, convey.ShouldEqual, "bar")
			convey.So(cfg.TravelMode, convey.ShouldEqual, "walking")
			convey.So(cfg.DefaultLatitude, convey.ShouldEqual, 39.9566)
			convey.So(cfg.DefaultLongitude, convey.ShouldEqual, -75.1899)
			convey.So(cfg.DefaultRadiusMeters, convey.ShouldEqual, 1609)
			convey.So(cfg.DefaultLimit, convey.ShouldEqual, 5)
			convey.So(cfg.DefaultPriceMin, convey.ShouldEqual, 1)
			convey.So(cfg.DefaultPriceMax, convey.ShouldEqual, 4)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then Google is disabled until a key is configured", func() {
			convey.So(cfg.UseGoogle(), convey.ShouldBeFalse)
			cfg.GoogleAPIKey = "key"
			convey.So(cfg.UseGoogle(), convey.ShouldBeTrue)
			cfg.Offline = true
			convey.So(cfg.UseGoogle(), convey.ShouldBeFalse)
		})
	})
}
