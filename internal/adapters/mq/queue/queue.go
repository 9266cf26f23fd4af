// Package queue holds async analysis jobs waiting for a worker.
//
// The queue is bounded. When it is full new jobs are rejected rather than blocking
// the submitter or displacing older jobs.
package queue

import (
	"context"
	"sync"
	"time"

	"github.com/okian/civiclens/pkg/metrics"
)

const defaultQueueCapacity = 1_000

// Job references a task to process.
type Job struct {
	TaskID     string
	EnqueuedAt time.Time
}

// Queue provides non-blocking enqueue and channel-based dequeue semantics.
type Queue interface {
	// Enqueue adds a job or fails with ErrFull or ErrClosed.
	Enqueue(ctx context.Context, job Job) error
	// Dequeue returns the channel workers receive from. It is closed by Close.
	Dequeue() <-chan Job
	Len() int
	Cap() int
	Close() error
	IsClosed() bool
}

// InMemoryQueue implements Queue using a buffered channel.
type InMemoryQueue struct {
	jobs     chan Job
	capacity int
	now      func() time.Time

	mu     sync.RWMutex
	closed bool
}

// NewInMemoryQueue creates a new in-memory queue.
func NewInMemoryQueue(opts ...Option) *InMemoryQueue {
	q := &InMemoryQueue{capacity: defaultQueueCapacity, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	q.jobs = make(chan Job, q.capacity)

	metrics.UpdateQueueCapacity(q.capacity)
	metrics.UpdateQueueSize(0)
	metrics.UpdateQueueUtilization(0)
	return q
}

// Enqueue adds a job to the queue without blocking.
func (q *InMemoryQueue) Enqueue(ctx context.Context, job Job) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		metrics.RecordQueueReject()
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		metrics.RecordQueueReject()
		return err
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = q.now()
	}

	select {
	case q.jobs <- job:
		metrics.RecordQueueEnqueue()
		q.observe()
		return nil
	default:
		metrics.RecordQueueReject()
		return ErrFull
	}
}

// Dequeue returns the receive side of the queue.
func (q *InMemoryQueue) Dequeue() <-chan Job {
	return q.jobs
}

// Len returns the current number of queued jobs.
func (q *InMemoryQueue) Len() int {
	q.observe()
	return len(q.jobs)
}

// Cap returns the queue capacity.
func (q *InMemoryQueue) Cap() int { return q.capacity }

func (q *InMemoryQueue) observe() {
	size := len(q.jobs)
	metrics.UpdateQueueSize(size)
	metrics.UpdateQueueUtilization(float64(size) * 100 / float64(q.capacity))
}

// Close stops accepting jobs. Jobs already queued can still be drained.
func (q *InMemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return nil
	}
	close(q.jobs)
	q.closed = true
	return nil
}

// IsClosed returns true if the queue has been closed.
func (q *InMemoryQueue) IsClosed() bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	return q.closed
}
