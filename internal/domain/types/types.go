// Package types contains read-only shapes reported to callers.
package types

import "time"

// CacheStats describes the result cache.
type CacheStats struct {
	Enabled       bool          `json:"enabled"`
	TTL           time.Duration `json:"-"`
	TTLSeconds    int64         `json:"ttl_seconds"`
	KeyCount      int           `json:"key_count"`
	BackendMemory string        `json:"backend_memory"`
	Backend       string        `json:"backend"`
}

// EventType is one taxonomy entry as listed to callers.
type EventType struct {
	Type     string   `json:"type"`
	Keywords []string `json:"keywords"`
	Priority string   `json:"priority"`
	Category string   `json:"category"`
}

// ServiceStatus summarises the analysis service.
type ServiceStatus struct {
	AIAvailable     bool       `json:"ai_available"`
	Provider        string     `json:"provider"`
	FallbackEnabled bool       `json:"fallback_enabled"`
	CacheEnabled    bool       `json:"cache_enabled"`
	FrameExtraction bool       `json:"frame_extraction"`
	VideoFusion     string     `json:"video_fusion"`
	EventTypes      int        `json:"event_types"`
	Tasks           *TaskStats `json:"tasks,omitempty"`
}

// TaskStats summarises the async task manager.
type TaskStats struct {
	Tracked       int `json:"tracked"`
	QueueLength   int `json:"queue_length"`
	QueueCapacity int `json:"queue_capacity"`
	Workers       int `json:"workers"`
}

// CacheClearResult reports what an administrative clear removed.
type CacheClearResult struct {
	Pattern       string `json:"pattern"`
	KeysDeleted   int    `json:"keys_deleted"`
	FramesDeleted int    `json:"frames_deleted"`
}
