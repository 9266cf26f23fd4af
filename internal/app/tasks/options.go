package tasks

import (
	"time"

	"github.com/okian/civiclens/pkg/logger"
)

// Option configures a Manager.
type Option func(*Manager)

// WithWorkers sets the size of the worker pool.
func WithWorkers(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = n
		}
	}
}

// WithMaxProcessing bounds how long one task may run before it is failed.
func WithMaxProcessing(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.maxProcessing = d
		}
	}
}

// WithRetention sets how long finished tasks stay queryable.
func WithRetention(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.retention = d
		}
	}
}

// WithSweepInterval sets how often expired tasks are evicted.
func WithSweepInterval(d time.Duration) Option {
	return func(m *Manager) {
		if d > 0 {
			m.sweepInterval = d
		}
	}
}

// WithClock overrides task timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator overrides task id generation.
func WithIDGenerator(gen func() string) Option {
	return func(m *Manager) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.log = l
		}
	}
}
