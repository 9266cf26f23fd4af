package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/types"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/okian/civiclens/pkg/metrics"
)

// Cache maps fingerprints to serialised AnalysisResults.
type Cache struct {
	backend Backend
	enabled bool
	ttl     time.Duration
	prefix  string
	log     logger.Logger
}

// Option configures a Cache.
type Option func(*Cache)

// WithEnabled toggles the cache. A disabled cache never hits and never stores.
func WithEnabled(enabled bool) Option {
	return func(c *Cache) { c.enabled = enabled }
}

// WithTTL sets the entry lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithKeyPrefix namespaces keys inside a shared backend.
func WithKeyPrefix(prefix string) Option {
	return func(c *Cache) { c.prefix = prefix }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.log = l
		}
	}
}

// New builds a cache over backend.
func New(backend Backend, opts ...Option) *Cache {
	c := &Cache{
		backend: backend,
		enabled: true,
		ttl:     time.Hour,
		prefix:  "media_analysis:",
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Enabled reports whether lookups and stores are active.
func (c *Cache) Enabled() bool { return c.enabled }

func (c *Cache) key(fingerprint string) string { return c.prefix + fingerprint }

// Get returns the cached result for fingerprint. Absent entries return ok=false.
func (c *Cache) Get(ctx context.Context, fingerprint string) (model.AnalysisResult, bool, error) {
	if !c.enabled {
		return model.AnalysisResult{}, false, nil
	}
	raw, ok, err := c.backend.Get(ctx, c.key(fingerprint))
	if err != nil {
		metrics.RecordCacheError("get")
		return model.AnalysisResult{}, false, model.NewError("cache get", model.ErrStorage, err)
	}
	if !ok {
		metrics.RecordCacheMiss()
		return model.AnalysisResult{}, false, nil
	}
	var r model.AnalysisResult
	if err := json.Unmarshal(raw, &r); err != nil {
		// A corrupt entry is treated as a miss and overwritten by the next Put.
		c.log.Warn(ctx, "discarding undecodable cache entry", logger.String("fingerprint", fingerprint), logger.Error(err))
		metrics.RecordCacheMiss()
		return model.AnalysisResult{}, false, nil
	}
	metrics.RecordCacheHit()
	return r, true, nil
}

// Put stores result under fingerprint for the configured TTL.
func (c *Cache) Put(ctx context.Context, fingerprint string, result model.AnalysisResult) error {
	if !c.enabled {
		return nil
	}
	raw, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	if err := c.backend.Set(ctx, c.key(fingerprint), raw, c.ttl); err != nil {
		metrics.RecordCacheError("put")
		return model.NewError("cache put", model.ErrStorage, err)
	}
	return nil
}

// Invalidate deletes entries whose fingerprint matches a glob pattern and reports
// how many were removed. An empty pattern clears everything under the prefix.
func (c *Cache) Invalidate(ctx context.Context, pattern string) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	keys, err := c.backend.Keys(ctx, c.key(pattern))
	if err != nil {
		metrics.RecordCacheError("invalidate")
		return 0, model.NewError("cache invalidate", model.ErrStorage, err)
	}
	if len(keys) == 0 {
		return 0, nil
	}
	n, err := c.backend.Delete(ctx, keys...)
	if err != nil {
		metrics.RecordCacheError("invalidate")
		return n, model.NewError("cache invalidate", model.ErrStorage, err)
	}
	c.log.Info(ctx, "cache invalidated", logger.String("pattern", pattern), logger.Int("deleted", n))
	return n, nil
}

// Stats reports the cache configuration and backend occupancy.
func (c *Cache) Stats(ctx context.Context) (types.CacheStats, error) {
	s := types.CacheStats{
		Enabled:    c.enabled,
		TTL:        c.ttl,
		TTLSeconds: int64(c.ttl / time.Second),
		Backend:    c.backend.Name(),
	}
	keys, err := c.backend.Keys(ctx, c.key("*"))
	if err != nil {
		metrics.RecordCacheError("stats")
		return s, model.NewError("cache stats", model.ErrStorage, err)
	}
	s.KeyCount = len(keys)
	mem, err := c.backend.MemoryUsage(ctx)
	if err != nil {
		c.log.Warn(ctx, "backend memory usage unavailable", logger.Error(err))
		mem = "unknown"
	}
	s.BackendMemory = mem
	return s, nil
}
