package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/smartystreets/goconvey/convey"
	"github.com/sweeply/tidyboard/internal/config"
)

func TestLoad(t *testing.T) {
	convey.Convey("Given a scrubbed environment", t, func() {
		// Each branch starts clean and anything it sets is undone on the
		// way out, so branches cannot leak settings into each other.
		unsetEnv()
		defer unsetEnv()
		ctx := t.Context()

		convey.Convey("When nothing overrides the defaults", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then the built-in defaults come back", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 100_000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*10)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
				convey.So(cfg.ArchivePath, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When every knob is set through the environment", func() {
			setEnv("TIDYBOARD_ADDR", ":6060")
			setEnv("TIDYBOARD_QUEUE_SIZE", "40000")
			setEnv("TIDYBOARD_WORKER_COUNT", "6")
			setEnv("TIDYBOARD_DEDUPE_SIZE", "120000")
			setEnv("TIDYBOARD_REPORT_RPS", "2.5")
			setEnv("TIDYBOARD_REPORT_BURST", "4")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the environment beats the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 40000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 6)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 120000)
				convey.So(cfg.ReportRPS, convey.ShouldEqual, 2.5)
				convey.So(cfg.ReportBurst, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When a YAML file supplies the settings", func() {
			tmpFile := writeTempYAML(t, `
addr: ":7070"
queue_size: 250000
worker_count: 12
dedupe_size: 640000
max_leaderboard_limit: 50
archive_path: "/var/lib/tidyboard/journal.db"
`)
			setEnv("TIDYBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then every field reflects the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 250000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 12)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 640000)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 50)
				convey.So(cfg.ArchivePath, convey.ShouldEqual, "/var/lib/tidyboard/journal.db")
			})
		})

		convey.Convey("When a file and the environment both speak", func() {
			tmpFile := writeTempYAML(t, `
addr: ":7070"
queue_size: 250000
worker_count: 12
dedupe_size: 640000
`)
			setEnv("TIDYBOARD_CONFIG", tmpFile)
			setEnv("TIDYBOARD_ADDR", ":6060")
			setEnv("TIDYBOARD_WORKER_COUNT", "48")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the environment wins and the rest comes from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":6060")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 48)
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 250000)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 640000)
			})
		})

		convey.Convey("When a file sets some kind weights", func() {
			tmpFile := writeTempYAML(t, `
kind_weights:
  litter: 12
  dumping: 50
default_kind_weight: 7
`)
			setEnv("TIDYBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then file weights land on top of the default table", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.KindWeights["litter"], convey.ShouldEqual, 12)
				convey.So(cfg.KindWeights["dumping"], convey.ShouldEqual, 50)
				convey.So(cfg.KindWeights["hazard"], convey.ShouldEqual, 30)
				convey.So(cfg.KindWeights["graffiti"], convey.ShouldEqual, 8)
				convey.So(cfg.DefaultKindWeight, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When a file leaves most settings out", func() {
			tmpFile := writeTempYAML(t, `
addr: ":7070"
worker_count: 12
`)
			setEnv("TIDYBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the gaps are filled from the defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 12)
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 100_000)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 500_000)
				convey.So(cfg.MaxLeaderboardLimit, convey.ShouldEqual, 100)
			})
		})

		convey.Convey("When the configured file does not exist", func() {
			setEnv("TIDYBOARD_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrLoadConfig", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the file is not parseable YAML", func() {
			tmpFile := writeTempYAML(t, `queue_size: [oops`)
			setEnv("TIDYBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrLoadConfig", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a numeric variable holds text", func() {
			setEnv("TIDYBOARD_QUEUE_SIZE", "plenty")
			setEnv("TIDYBOARD_WORKER_COUNT", "a few")

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading fails with ErrLoadConfig", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the environment blanks the listen address", func() {
			setEnv("TIDYBOARD_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects the config", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr is required")
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func TestLoadEdgeCases(t *testing.T) {
	convey.Convey("Given a scrubbed environment", t, func() {
		unsetEnv()
		defer unsetEnv()
		ctx := t.Context()

		convey.Convey("When the sizes are turned way up", func() {
			setEnv("TIDYBOARD_QUEUE_SIZE", "5000000")
			setEnv("TIDYBOARD_WORKER_COUNT", "768")
			setEnv("TIDYBOARD_DEDUPE_SIZE", "9999999")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the values come through untouched", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 5000000)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 768)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 9999999)
			})
		})

		convey.Convey("When the sizes are zero", func() {
			setEnv("TIDYBOARD_QUEUE_SIZE", "0")
			setEnv("TIDYBOARD_WORKER_COUNT", "0")
			setEnv("TIDYBOARD_DEDUPE_SIZE", "0")

			cfg, err := config.Load(ctx)

			// Zero means "pick for me"; the service substitutes its own
			// defaults, so the loader passes zeros through.
			convey.Convey("Then loading still succeeds", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ReportQueueSize, convey.ShouldBeZeroValue)
				convey.So(cfg.WorkerCount, convey.ShouldBeZeroValue)
				convey.So(cfg.DedupeSize, convey.ShouldBeZeroValue)
			})
		})

		convey.Convey("When the sizes are negative", func() {
			setEnv("TIDYBOARD_QUEUE_SIZE", "-5")
			setEnv("TIDYBOARD_WORKER_COUNT", "-3")
			setEnv("TIDYBOARD_DEDUPE_SIZE", "-7")

			cfg, err := config.Load(ctx)

			convey.Convey("Then loading still succeeds", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, -5)
				convey.So(cfg.WorkerCount, convey.ShouldEqual, -3)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, -7)
			})
		})

		convey.Convey("When the board limit is set to zero", func() {
			setEnv("TIDYBOARD_MAX_LEADERBOARD_LIMIT", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects the config", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "max_leaderboard_limit")
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When the address is set several times over", func() {
			setEnv("TIDYBOARD_ADDR", "localhost:9080")
			setEnv("TIDYBOARD_ADDR", "10.0.0.1:9080")
			setEnv("TIDYBOARD_ADDR", "[::1]:9443")

			cfg, err := config.Load(ctx)

			convey.Convey("Then the last value set is the one loaded", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, "[::1]:9443")
			})
		})

		convey.Convey("When the file carries comments", func() {
			tmpFile := writeTempYAML(t, `
# deployment overrides
addr: ":7070"   # local only
queue_size: 250000
# sized for the staging box
dedupe_size: 640000
`)
			setEnv("TIDYBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the comments are ignored and the values land", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.ReportQueueSize, convey.ShouldEqual, 250000)
				convey.So(cfg.DedupeSize, convey.ShouldEqual, 640000)
			})
		})

		convey.Convey("When the file blanks the listen address", func() {
			tmpFile := writeTempYAML(t, `
addr: ""
queue_size:
worker_count: 12
`)
			setEnv("TIDYBOARD_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then validation rejects the config", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr is required")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}

func setEnv(key, value string) {
	_ = os.Setenv(key, value)
}

func unsetEnv() {
	for _, key := range []string{
		"TIDYBOARD_CONFIG",
		"TIDYBOARD_ADDR",
		"TIDYBOARD_QUEUE_SIZE",
		"TIDYBOARD_WORKER_COUNT",
		"TIDYBOARD_DEDUPE_SIZE",
		"TIDYBOARD_MAX_LEADERBOARD_LIMIT",
		"TIDYBOARD_REPORT_RPS",
		"TIDYBOARD_REPORT_BURST",
	} {
		_ = os.Unsetenv(key)
	}
}

func writeTempYAML(t *testing.T, content string) string {
	t.Helper()
	name := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(name, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return name
}
