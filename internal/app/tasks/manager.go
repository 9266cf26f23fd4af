// Package tasks runs analyses asynchronously and tracks each through
// pending, processing, then completed or failed.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/civiclens/internal/adapters/mq/queue"
	"github.com/okian/civiclens/internal/adapters/mq/worker"
	"github.com/okian/civiclens/internal/adapters/repository"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/types"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/okian/civiclens/pkg/metrics"
)

// Analyzer is the work a task performs.
type Analyzer interface {
	AnalyzeImage(ctx context.Context, url string) (model.AnalysisResult, error)
	AnalyzeVideo(ctx context.Context, url string, maxFrames int) (model.AnalysisResult, error)
}

// Manager owns task state. Only the worker holding a task's job changes it, apart
// from the processing watchdog and shutdown, and every change goes through the
// store's atomic Update.
type Manager struct {
	store    repository.TaskStore
	queue    queue.Queue
	analyzer Analyzer
	pool     *worker.Pool

	workers       int
	maxProcessing time.Duration
	retention     time.Duration
	sweepInterval time.Duration

	now   func() time.Time
	newID func() string
	log   logger.Logger

	mu       sync.Mutex
	started  bool
	stopping bool
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a manager. Call Start before submitting.
func New(store repository.TaskStore, q queue.Queue, analyzer Analyzer, opts ...Option) *Manager {
	m := &Manager{
		store:         store,
		queue:         q,
		analyzer:      analyzer,
		workers:       runtime.NumCPU() * 2,
		maxProcessing: 5 * time.Minute,
		retention:     time.Hour,
		sweepInterval: time.Minute,
		now:           time.Now,
		newID:         uuid.NewString,
		log:           logger.Nop(),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Start launches the worker pool and the retention sweeper.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.pool = worker.NewPool(m.workers, m.queue, worker.ProcessorFunc(m.Process), worker.WithPoolLogger(m.log))
	m.pool.Start(ctx)

	m.wg.Add(1)
	go m.sweepLoop(ctx)
	m.started = true
	m.log.Info(ctx, "task manager started",
		logger.Int("workers", m.pool.Size()),
		logger.Int("queue_capacity", m.queue.Cap()),
		logger.Duration("max_processing", m.maxProcessing),
		logger.Duration("retention", m.retention),
	)
}

// Stop drains queued work, then fails whatever could not finish.
func (m *Manager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started || m.stopping {
		m.mu.Unlock()
		return nil
	}
	m.stopping = true
	m.mu.Unlock()

	err := m.pool.Shutdown(ctx)
	close(m.stopCh)
	m.wg.Wait()

	for _, t := range m.store.Unfinished(ctx) {
		m.fail(ctx, t.ID, model.NewError("shutdown", model.ErrUnavailable, ErrShuttingDown))
	}
	m.log.Info(ctx, "task manager stopped")
	return err
}

// Submit validates req, records a pending task and queues it. It never waits for a
// worker: a full queue rejects the task with a capacity error.
func (m *Manager) Submit(ctx context.Context, req model.TaskRequest) (string, error) {
	req, err := normalise(req)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	ready := m.started && !m.stopping
	m.mu.Unlock()
	if !ready {
		return "", model.NewError("submit task", model.ErrUnavailable, ErrNotStarted)
	}

	now := m.now()
	task := model.NewTask(m.newID(), req, now)
	if err := m.store.Create(ctx, task); err != nil {
		return "", fmt.Errorf("submit task: %w", err)
	}
	if err := m.queue.Enqueue(ctx, queue.Job{TaskID: task.ID, EnqueuedAt: now}); err != nil {
		m.store.Delete(ctx, task.ID)
		m.log.Warn(ctx, "task rejected", logger.String("task_id", task.ID), logger.Error(err))
		return "", fmt.Errorf("submit task: %w", err)
	}
	metrics.RecordTaskTransition(string(model.TaskPending))
	m.log.Debug(ctx, "task submitted", logger.String("task_id", task.ID), logger.String("media_type", string(req.MediaType)))
	return task.ID, nil
}

func normalise(req model.TaskRequest) (model.TaskRequest, error) {
	mt, err := model.ParseMediaType(string(req.MediaType))
	if err != nil {
		return req, err
	}
	req.MediaType = mt
	if err := model.ValidateMediaURL(req.MediaURL); err != nil {
		return req, err
	}
	switch {
	case mt == model.MediaImage:
		req.MaxFrames = 0
	case req.MaxFrames != 0:
		if err := model.ValidateMaxFrames(req.MaxFrames); err != nil {
			return req, err
		}
	}
	return req, nil
}

// GetStatus returns a snapshot of the task. Unknown and expired ids both report
// not found.
func (m *Manager) GetStatus(ctx context.Context, id string) (model.Task, error) {
	return m.store.Get(ctx, id)
}

// Evict forgets a task regardless of its state and reports whether it existed.
// A running analysis is not interrupted; its outcome is discarded.
func (m *Manager) Evict(ctx context.Context, id string) bool {
	ok := m.store.Delete(ctx, id)
	if ok {
		metrics.RecordTasksEvicted(1)
	}
	return ok
}

// Sweep evicts finished tasks older than the retention window.
func (m *Manager) Sweep(ctx context.Context) int {
	n := m.store.EvictFinishedBefore(ctx, m.now().Add(-m.retention))
	if n > 0 {
		metrics.RecordTasksEvicted(n)
		m.log.Debug(ctx, "expired tasks evicted", logger.Int("count", n))
	}
	metrics.UpdateTasksTracked(m.store.Count(ctx))
	return n
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}

// Stats summarises the manager.
func (m *Manager) Stats(ctx context.Context) types.TaskStats {
	workers := 0
	m.mu.Lock()
	if m.pool != nil && !m.stopping {
		workers = m.pool.Size()
	}
	m.mu.Unlock()
	return types.TaskStats{
		Tracked:       m.store.Count(ctx),
		QueueLength:   m.queue.Len(),
		QueueCapacity: m.queue.Cap(),
		Workers:       workers,
	}
}

type outcome struct {
	result model.AnalysisResult
	err    error
}

// Process runs one queued task to a terminal state.
func (m *Manager) Process(ctx context.Context, job queue.Job) error {
	log := m.log.With(logger.String("task_id", job.TaskID))

	task, err := m.store.Update(ctx, job.TaskID, func(t *model.Task) error { return t.Start(m.now()) })
	switch {
	case errors.Is(err, model.ErrNotFound):
		log.Debug(ctx, "task evicted before it started")
		return nil
	case err != nil:
		log.Warn(ctx, "task not startable", logger.Error(err))
		return nil
	}
	metrics.RecordTaskTransition(string(model.TaskProcessing))

	runCtx, cancel := context.WithTimeout(ctx, m.maxProcessing)
	defer cancel()

	// Buffered so an abandoned analysis can still finish and exit.
	done := make(chan outcome, 1)
	go func() {
		res, err := m.run(runCtx, task.Request)
		done <- outcome{result: res, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			log.Error(ctx, "analysis failed", logger.String("stage", "analyze"), logger.String("kind", model.KindName(o.err)), logger.Error(o.err))
			m.fail(ctx, task.ID, o.err)
			return nil
		}
		m.complete(ctx, task.ID, o.result)
	case <-runCtx.Done():
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			metrics.RecordTaskTimeout()
			log.Error(ctx, "task exceeded processing limit", logger.String("stage", "watchdog"), logger.Duration("limit", m.maxProcessing))
			m.fail(ctx, task.ID, model.NewError("process task", model.ErrTaskTimeout, runCtx.Err()))
			return nil
		}
		m.fail(context.WithoutCancel(ctx), task.ID, model.NewError("process task", model.ErrUnavailable, ErrShuttingDown))
	}
	return nil
}

func (m *Manager) run(ctx context.Context, req model.TaskRequest) (model.AnalysisResult, error) {
	if req.MediaType == model.MediaVideo {
		return m.analyzer.AnalyzeVideo(ctx, req.MediaURL, req.MaxFrames)
	}
	return m.analyzer.AnalyzeImage(ctx, req.MediaURL)
}

func (m *Manager) complete(ctx context.Context, id string, res model.AnalysisResult) {
	_, err := m.store.Update(ctx, id, func(t *model.Task) error { return t.Complete(m.now(), res) })
	if err != nil {
		m.log.Warn(ctx, "completion discarded", logger.String("task_id", id), logger.Error(err))
		return
	}
	metrics.RecordTaskTransition(string(model.TaskCompleted))
}

// fail records a sanitized message; err itself only reaches the log.
func (m *Manager) fail(ctx context.Context, id string, err error) {
	msg := model.Sanitize(err)
	_, uerr := m.store.Update(ctx, id, func(t *model.Task) error { return t.Fail(m.now(), msg) })
	if uerr != nil {
		m.log.Warn(ctx, "failure discarded", logger.String("task_id", id), logger.Error(uerr))
		return
	}
	metrics.RecordTaskTransition(string(model.TaskFailed))
}
