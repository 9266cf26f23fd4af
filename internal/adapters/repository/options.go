package repository

import "time"

// Option configures a MemoryTaskStore.
type Option func(*MemoryTaskStore)

// WithTrackedGaugeInterval sets how often the tasks_tracked gauge is sampled.
func WithTrackedGaugeInterval(d time.Duration) Option {
	return func(s *MemoryTaskStore) {
		if d > 0 {
			s.gaugeInterval = d
		}
	}
}
