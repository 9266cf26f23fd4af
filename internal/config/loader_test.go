package config_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/okian/civiclens/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()

		convey.Convey("When loading config with defaults only", func() {
			clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.CacheBackend, convey.ShouldEqual, "memory")
				convey.So(cfg.AITimeout, convey.ShouldEqual, 30*time.Second)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CIVICLENS_ADDR", ":8080")
			_ = os.Setenv("CIVICLENS_CACHE_TTL", "15m")
			_ = os.Setenv("CIVICLENS_CACHE_ENABLED", "false")
			_ = os.Setenv("CIVICLENS_TASK_QUEUE_SIZE", "64")
			_ = os.Setenv("CIVICLENS_VIDEO_FUSION", "highest")
			_ = os.Setenv("CIVICLENS_CORS_ORIGINS", "https://a.example, https://b.example")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.CacheTTL, convey.ShouldEqual, 15*time.Minute)
				convey.So(cfg.CacheEnabled, convey.ShouldBeFalse)
				convey.So(cfg.TaskQueueSize, convey.ShouldEqual, 64)
				convey.So(cfg.VideoFusion, convey.ShouldEqual, "highest")
				convey.So(cfg.CORSOrigins, convey.ShouldResemble, []string{"https://a.example", "https://b.example"})
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
cache_backend: redis
redis_addr: "cache:6379"
ai_provider: simulated
task_worker_count: 3
task_retention: 2h
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CIVICLENS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from the file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.CacheBackend, convey.ShouldEqual, "redis")
				convey.So(cfg.RedisAddr, convey.ShouldEqual, "cache:6379")
				convey.So(cfg.AIProvider, convey.ShouldEqual, "simulated")
				convey.So(cfg.TaskWorkerCount, convey.ShouldEqual, 3)
				convey.So(cfg.TaskRetention, convey.ShouldEqual, 2*time.Hour)
				convey.So(cfg.TaskQueueSize, convey.ShouldEqual, 1_000)
			})
		})

		convey.Convey("When both file and environment are set", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
task_worker_count: 3
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CIVICLENS_CONFIG", tmpFile)
			_ = os.Setenv("CIVICLENS_TASK_WORKER_COUNT", "12")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables win", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.TaskWorkerCount, convey.ShouldEqual, 12)
			})
		})

		convey.Convey("When the YAML file is invalid", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CIVICLENS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the YAML file does not exist", func() {
			_ = os.Setenv("CIVICLENS_CONFIG", "/nonexistent/civiclens.yaml")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)
			convey.So(cfg, convey.ShouldBeNil)
			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
		})

		convey.Convey("When addr is empty", func() {
			_ = os.Setenv("CIVICLENS_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(cfg, convey.ShouldBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a numeric env var is malformed", func() {
			_ = os.Setenv("CIVICLENS_TASK_QUEUE_SIZE", "many")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)
			convey.So(cfg, convey.ShouldBeNil)
			convey.So(err, convey.ShouldNotBeNil)
		})
	})
}

func clearConfigEnvVars() {
	for _, envVar := range []string{
		"CIVICLENS_CONFIG",
		"CIVICLENS_ADDR",
		"CIVICLENS_CACHE_TTL",
		"CIVICLENS_CACHE_ENABLED",
		"CIVICLENS_TASK_QUEUE_SIZE",
		"CIVICLENS_TASK_WORKER_COUNT",
		"CIVICLENS_VIDEO_FUSION",
		"CIVICLENS_CORS_ORIGINS",
	} {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "civiclens-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
