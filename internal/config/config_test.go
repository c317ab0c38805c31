package config_test

import (
	"runtime"
	"testing"

	"github.com/sweeply/tidyboard/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestDefaults(t *testing.T) {
	convey.Convey("Given a config built with no options", t, func() {
		cfg := config.New()

		convey.Convey("Then the stock defaults are in place", func() {
			convey.So(cfg.LogLevel, convey.ShouldEqual, "info")
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 100_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*10)
			convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
			convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
			convey.So(cfg.ArchivePath, convey.ShouldBeEmpty)
			convey.So(cfg.ReportRPS, convey.ShouldEqual, 5)
			convey.So(cfg.ReportBurst, convey.ShouldEqual, 10)
		})

		convey.Convey("Then it should carry the default kind weights", func() {
			convey.So(cfg.DefaultKindWeight, convey.ShouldEqual, 10)
			convey.So(cfg.KindWeights["litter"], convey.ShouldEqual, 10)
			convey.So(cfg.KindWeights["dumping"], convey.ShouldEqual, 40)
			convey.So(cfg.KindWeights["overflow"], convey.ShouldEqual, 15)
			convey.So(cfg.KindWeights["hazard"], convey.ShouldEqual, 30)
			convey.So(cfg.KindWeights["graffiti"], convey.ShouldEqual, 8)
			convey.So(cfg.KindWeights["dog_fouling"], convey.ShouldEqual, 12)
		})
	})
}
