package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "CIVICLENS_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CIVICLENS_CONFIG is set
//  3. env (prefix CIVICLENS_)
func Load(_ context.Context) (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CIVICLENS_CACHE_TTL -> cache_ttl (flat keys, underscores preserved).
	envProvider := env.ProviderWithValue(EnvPrefix, ".", func(key, value string) (string, any) {
		key = strings.TrimPrefix(strings.ToLower(key), strings.ToLower(EnvPrefix))
		if key == "cors_origins" {
			return key, splitList(value)
		}
		return key, value
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !oneOf(c.CacheBackend, "redis", "memory"):
		return fmt.Errorf("%w: cache_backend %q", ErrInvalidConfig, c.CacheBackend)
	case c.CacheEnabled && c.CacheTTL <= 0:
		return fmt.Errorf("%w: cache_ttl must be positive", ErrInvalidConfig)
	case !oneOf(c.AIProvider, "openai", "simulated", "none"):
		return fmt.Errorf("%w: ai_provider %q", ErrInvalidConfig, c.AIProvider)
	case c.AITimeout <= 0 || c.AITimeout >= c.HTTPWriteTimeout:
		return fmt.Errorf("%w: ai_timeout must be positive and shorter than http_write_timeout", ErrInvalidConfig)
	case c.AISimLatencyMinMS < 0 || c.AISimLatencyMaxMS < c.AISimLatencyMinMS:
		return fmt.Errorf("%w: ai simulated latency bounds", ErrInvalidConfig)
	case c.FallbackMinConfidence < 0 || c.FallbackMinConfidence > 1:
		return fmt.Errorf("%w: fallback_min_confidence must be within [0,1]", ErrInvalidConfig)
	case !oneOf(c.VideoFusion, "majority", "first", "highest"):
		return fmt.Errorf("%w: video_fusion %q", ErrInvalidConfig, c.VideoFusion)
	case c.VideoDefaultFrames < 1 || c.VideoDefaultFrames > 10:
		return fmt.Errorf("%w: video_default_frames must be within 1..10", ErrInvalidConfig)
	case c.TaskWorkerCount <= 0:
		return fmt.Errorf("%w: task_worker_count must be positive", ErrInvalidConfig)
	case c.TaskQueueSize <= 0:
		return fmt.Errorf("%w: task_queue_size must be positive", ErrInvalidConfig)
	case c.TaskMaxProcessing <= 0 || c.TaskRetention <= 0 || c.TaskSweepInterval <= 0:
		return fmt.Errorf("%w: task durations must be positive", ErrInvalidConfig)
	}
	return nil
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
