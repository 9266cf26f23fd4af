// Package config defines service configuration and its loading hooks.
//
// Conventions:
// - Provide New(...) returning a Config with defaults.
// - Load layers a YAML file and environment variables on top of the defaults.
package config

import (
	"runtime"
	"time"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects the handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`
	// CORSOrigins lists allowed origins for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`
	// HTTPWriteTimeout bounds synchronous analysis responses.
	HTTPWriteTimeout time.Duration `koanf:"http_write_timeout"`

	CacheEnabled   bool          `koanf:"cache_enabled"`
	CacheBackend   string        `koanf:"cache_backend"` // redis or memory
	CacheTTL       time.Duration `koanf:"cache_ttl"`
	CacheKeyPrefix string        `koanf:"cache_key_prefix"`
	RedisAddr      string        `koanf:"redis_addr"`
	RedisPassword  string        `koanf:"redis_password"`
	RedisDB        int           `koanf:"redis_db"`

	// AIProvider is openai, simulated or none.
	AIProvider        string        `koanf:"ai_provider"`
	AIAPIKey          string        `koanf:"ai_api_key"`
	AIBaseURL         string        `koanf:"ai_base_url"`
	AIModel           string        `koanf:"ai_model"`
	AITimeout         time.Duration `koanf:"ai_timeout"`
	AIMaxTokens       int           `koanf:"ai_max_tokens"`
	AIHardFailCooloff time.Duration `koanf:"ai_hard_fail_cooldown"`
	AISimLatencyMinMS int           `koanf:"ai_sim_latency_min_ms"`
	AISimLatencyMaxMS int           `koanf:"ai_sim_latency_max_ms"`

	FallbackEnabled       bool    `koanf:"fallback_enabled"`
	FallbackMinConfidence float64 `koanf:"fallback_min_confidence"`

	// VideoFusion is majority, first or highest.
	VideoFusion        string `koanf:"video_fusion"`
	VideoDefaultFrames int    `koanf:"video_default_frames"`

	StorageEndpoint      string `koanf:"storage_endpoint"`
	StorageAccessKey     string `koanf:"storage_access_key"`
	StorageSecretKey     string `koanf:"storage_secret_key"`
	StorageBucket        string `koanf:"storage_bucket"`
	StorageRegion        string `koanf:"storage_region"`
	StorageUseSSL        bool   `koanf:"storage_use_ssl"`
	StoragePublicBaseURL string `koanf:"storage_public_base_url"`

	FFmpegPath   string        `koanf:"ffmpeg_path"`
	FFprobePath  string        `koanf:"ffprobe_path"`
	FrameTimeout time.Duration `koanf:"frame_timeout"`

	TaskWorkerCount   int           `koanf:"task_worker_count"`
	TaskQueueSize     int           `koanf:"task_queue_size"`
	TaskMaxProcessing time.Duration `koanf:"task_max_processing"`
	TaskRetention     time.Duration `koanf:"task_retention"`
	TaskSweepInterval time.Duration `koanf:"task_sweep_interval"`

	// TaxonomyFile optionally replaces the built-in event taxonomy.
	TaxonomyFile string `koanf:"taxonomy_file"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		CORSOrigins:      []string{"*"},
		HTTPWriteTimeout: 90 * time.Second,

		CacheEnabled:   true,
		CacheBackend:   "memory",
		CacheTTL:       time.Hour,
		CacheKeyPrefix: "media_analysis:",
		RedisAddr:      "localhost:6379",

		AIProvider:        "openai",
		AIModel:           "gpt-4o-mini",
		AITimeout:         30 * time.Second,
		AIMaxTokens:       800,
		AIHardFailCooloff: 5 * time.Minute,
		AISimLatencyMinMS: 80,
		AISimLatencyMaxMS: 150,

		FallbackEnabled:       true,
		FallbackMinConfidence: 0.3,

		VideoFusion:        "majority",
		VideoDefaultFrames: 5,

		StorageBucket: "civiclens-frames",

		FFmpegPath:   "ffmpeg",
		FFprobePath:  "ffprobe",
		FrameTimeout: 20 * time.Second,

		TaskWorkerCount:   runtime.NumCPU() * 2,
		TaskQueueSize:     1_000,
		TaskMaxProcessing: 5 * time.Minute,
		TaskRetention:     time.Hour,
		TaskSweepInterval: time.Minute,
	}
}
