// Package cache stores analysis results in a shared key-value service, keyed by
// media fingerprint.
package cache

import (
	"context"
	"time"
)

// Backend is the key-value service contract the cache needs.
type Backend interface {
	// Get returns the value and whether it exists. Expired entries do not exist.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Keys lists keys matching a glob pattern.
	Keys(ctx context.Context, pattern string) ([]string, error)
	Delete(ctx context.Context, keys ...string) (int, error)
	// MemoryUsage is a human-readable size of the backend's memory.
	MemoryUsage(ctx context.Context) (string, error)
	Name() string
}
