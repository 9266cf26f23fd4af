package cache

import (
	"context"
	"fmt"
	"path"
	"sync"
	"time"
)

type memEntry struct {
	value    []byte
	expires  time.Time
	inserted uint64
}

// MemoryBackend is an in-process Backend. In bounded mode the oldest insertion is
// evicted once the entry limit is reached.
type MemoryBackend struct {
	mu         sync.RWMutex
	entries    map[string]memEntry
	maxEntries int
	seq        uint64
	now        func() time.Time
}

// MemoryOption configures a MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithMaxEntries bounds the number of stored keys. Zero or negative means unbounded.
func WithMaxEntries(n int) MemoryOption {
	return func(m *MemoryBackend) { m.maxEntries = n }
}

// WithMemoryClock overrides the clock used for expiry.
func WithMemoryClock(now func() time.Time) MemoryOption {
	return func(m *MemoryBackend) {
		if now != nil {
			m.now = now
		}
	}
}

// NewMemoryBackend creates an empty in-process backend.
func NewMemoryBackend(opts ...MemoryOption) *MemoryBackend {
	m := &MemoryBackend{
		entries:    make(map[string]memEntry),
		maxEntries: 50_000,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *MemoryBackend) Name() string { return "memory" }

func (m *MemoryBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || m.expired(e) {
		return nil, false, nil
	}
	return append([]byte(nil), e.value...), true, nil
}

func (m *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.entries[key]; !exists && m.maxEntries > 0 && len(m.entries) >= m.maxEntries {
		m.purgeExpiredLocked()
		if len(m.entries) >= m.maxEntries {
			m.evictOldestLocked()
		}
	}
	m.seq++
	e := memEntry{value: append([]byte(nil), value...), inserted: m.seq}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.entries[key] = e
	return nil
}

func (m *MemoryBackend) Keys(_ context.Context, pattern string) ([]string, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0)
	for k, e := range m.entries {
		if m.expired(e) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	return out, nil
}

func (m *MemoryBackend) Delete(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range keys {
		if e, ok := m.entries[k]; ok {
			delete(m.entries, k)
			if !m.expired(e) {
				n++
			}
		}
	}
	return n, nil
}

func (m *MemoryBackend) MemoryUsage(_ context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var total int
	for k, e := range m.entries {
		total += len(k) + len(e.value)
	}
	return humanBytes(total), nil
}

// Len returns the number of stored entries, expired ones included until purged.
func (m *MemoryBackend) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func (m *MemoryBackend) expired(e memEntry) bool {
	return !e.expires.IsZero() && !m.now().Before(e.expires)
}

// Must be called with m.mu held.
func (m *MemoryBackend) purgeExpiredLocked() {
	for k, e := range m.entries {
		if m.expired(e) {
			delete(m.entries, k)
		}
	}
}

// Must be called with m.mu held.
func (m *MemoryBackend) evictOldestLocked() {
	var (
		oldestKey string
		oldestSeq uint64
		found     bool
	)
	for k, e := range m.entries {
		if !found || e.inserted < oldestSeq {
			oldestKey, oldestSeq, found = k, e.inserted, true
		}
	}
	if found {
		delete(m.entries, oldestKey)
	}
}

func humanBytes(n int) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%dB", n)
	}
	div, exp := unit, 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f%c", float64(n)/float64(div), "KMGTPE"[exp])
}
