package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/civiclens/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.CacheEnabled, convey.ShouldBeTrue)
			convey.So(cfg.CacheTTL, convey.ShouldEqual, time.Hour)
			convey.So(cfg.CacheKeyPrefix, convey.ShouldEqual, "media_analysis:")
			convey.So(cfg.FallbackEnabled, convey.ShouldBeTrue)
			convey.So(cfg.VideoFusion, convey.ShouldEqual, "majority")
			convey.So(cfg.VideoDefaultFrames, convey.ShouldEqual, 5)
			convey.So(cfg.TaskWorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.TaskQueueSize, convey.ShouldEqual, 1_000)
		})

		convey.Convey("Then the defaults validate", func() {
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given invalid configurations", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"unknown backend":    func(c *config.Config) { c.CacheBackend = "memcached" },
			"zero ttl":           func(c *config.Config) { c.CacheTTL = 0 },
			"unknown provider":   func(c *config.Config) { c.AIProvider = "bard" },
			"ai timeout too big": func(c *config.Config) { c.AITimeout = c.HTTPWriteTimeout },
			"sim latency":        func(c *config.Config) { c.AISimLatencyMaxMS = c.AISimLatencyMinMS - 1 },
			"fallback threshold": func(c *config.Config) { c.FallbackMinConfidence = 1.5 },
			"fusion":             func(c *config.Config) { c.VideoFusion = "average" },
			"frames":             func(c *config.Config) { c.VideoDefaultFrames = 11 },
			"workers":            func(c *config.Config) { c.TaskWorkerCount = 0 },
			"queue":              func(c *config.Config) { c.TaskQueueSize = -1 },
			"retention":          func(c *config.Config) { c.TaskRetention = 0 },
		}
		for name, mutate := range cases {
			convey.Convey("Then "+name+" is rejected", func() {
				cfg := config.New()
				mutate(cfg)
				err := cfg.Validate()
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		}

		convey.Convey("Then a disabled cache may have a zero ttl", func() {
			cfg := config.New()
			cfg.CacheEnabled = false
			cfg.CacheTTL = 0
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
