package queue

import "time"

// Option configures an InMemoryQueue.
type Option func(*InMemoryQueue)

// WithCapacity bounds the number of jobs waiting for a worker. Non-positive values keep the default.
func WithCapacity(n int) Option {
	return func(q *InMemoryQueue) {
		if n > 0 {
			q.capacity = n
		}
	}
}

// WithClock sets the clock used to stamp Job.EnqueuedAt.
func WithClock(now func() time.Time) Option {
	return func(q *InMemoryQueue) {
		if now != nil {
			q.now = now
		}
	}
}
