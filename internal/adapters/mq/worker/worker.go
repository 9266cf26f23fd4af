// Package worker runs async analysis jobs taken from the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/okian/civiclens/internal/adapters/mq/queue"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/okian/civiclens/pkg/metrics"
)

const (
	defaultWorkerMultiplier = 2 // multiplier for runtime.NumCPU()
	poolShutdownTimeout     = 30 * time.Second
)

// Processor handles one job. Errors are logged and counted; the job is not retried.
type Processor interface {
	Process(ctx context.Context, job queue.Job) error
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job queue.Job) error

func (f ProcessorFunc) Process(ctx context.Context, job queue.Job) error { return f(ctx, job) }

// Source is where workers receive jobs.
type Source interface {
	Dequeue() <-chan queue.Job
}

// Worker processes jobs until its source closes or it is told to stop.
type Worker interface {
	Run(ctx context.Context)
	Shutdown(ctx context.Context) error
}

// InMemoryWorker implements Worker.
type InMemoryWorker struct {
	source    Source
	processor Processor
	name      string

	stopOnce sync.Once
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(source Source, processor Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		source:    source,
		processor: processor,
		name:      "worker",
		shutdown:  make(chan struct{}),
		done:      make(chan struct{}),
		logger:    logger.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.logger = w.logger.With(logger.String("worker", w.name))
	return w
}

// Run starts the worker loop.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.source.Dequeue()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.shutdown:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			w.process(ctx, job)
		}
	}
}

func (w *InMemoryWorker) process(ctx context.Context, job queue.Job) {
	metrics.RecordQueueDequeue()
	metrics.RecordQueueWait(time.Since(job.EnqueuedAt))

	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			metrics.RecordWorkerError()
			w.logger.Error(ctx, "job panicked", logger.String("task_id", job.TaskID), logger.Any("panic", r))
		}
		metrics.RecordWorkerProcessing(time.Since(start))
	}()

	if err := w.processor.Process(ctx, job); err != nil {
		metrics.RecordWorkerError()
		w.logger.Error(ctx, "error processing job", logger.String("task_id", job.TaskID), logger.Error(err))
	}
}

// Shutdown stops the worker after its current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.stopOnce.Do(func() { close(w.shutdown) })
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		w.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed when Run has returned.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

// Pool manages multiple workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   queue.Queue
	logger  logger.Logger
}

// NewPool creates a pool. A non-positive count defaults to NumCPU*2.
func NewPool(workerCount int, q queue.Queue, processor Processor, opts ...PoolOption) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU() * defaultWorkerMultiplier
	}
	p := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	for i := range p.workers {
		p.workers[i] = NewInMemoryWorker(q, processor,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger),
		)
	}
	metrics.UpdateWorkerCount(workerCount)
	return p
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start starts all workers.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		go w.Run(ctx)
	}
}

// Shutdown closes the queue, lets workers drain what is left, and forces them to
// stop once ctx or the pool timeout expires.
func (p *Pool) Shutdown(ctx context.Context) error {
	if err := p.queue.Close(); err != nil {
		p.logger.Error(ctx, "error closing queue", logger.Error(err))
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, poolShutdownTimeout)
	defer cancel()

	var timedOut int
	for _, w := range p.workers {
		select {
		case <-w.done:
		case <-shutdownCtx.Done():
			timedOut++
		}
	}
	for _, w := range p.workers {
		w.stopOnce.Do(func() { close(w.shutdown) })
	}
	metrics.UpdateWorkerCount(0)
	if timedOut > 0 {
		p.logger.Warn(ctx, "workers still busy at shutdown", logger.Int("workers", timedOut))
		return fmt.Errorf("%d workers did not drain: %w", timedOut, shutdownCtx.Err())
	}
	return nil
}
