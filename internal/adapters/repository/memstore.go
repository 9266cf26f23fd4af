package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/metrics"
)

// MemoryTaskStore is an in-process TaskStore.
type MemoryTaskStore struct {
	mu    sync.RWMutex
	tasks map[string]model.Task

	gaugeInterval time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
	stopChan chan struct{}
}

// NewMemoryTaskStore constructs a store and starts its metrics updater.
func NewMemoryTaskStore(ctx context.Context, opts ...Option) *MemoryTaskStore {
	s := &MemoryTaskStore{
		tasks:         make(map[string]model.Task),
		gaugeInterval: 5 * time.Second,
		stopChan:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.startMetricsUpdater(ctx)
	return s
}

func (s *MemoryTaskStore) Create(_ context.Context, task model.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tasks[task.ID]; exists {
		return ErrTaskExists
	}
	s.tasks[task.ID] = task.Clone()
	return nil
}

func (s *MemoryTaskStore) Get(_ context.Context, id string) (model.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	return t.Clone(), nil
}

func (s *MemoryTaskStore) Update(_ context.Context, id string, fn func(*model.Task) error) (model.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, ErrNotFound
	}
	next := t.Clone()
	if err := fn(&next); err != nil {
		return t.Clone(), err
	}
	s.tasks[id] = next
	return next.Clone(), nil
}

func (s *MemoryTaskStore) Delete(_ context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

func (s *MemoryTaskStore) EvictFinishedBefore(_ context.Context, cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, t := range s.tasks {
		if t.Status.Terminal() && t.FinishedAt().Before(cutoff) {
			delete(s.tasks, id)
			n++
		}
	}
	return n
}

func (s *MemoryTaskStore) Unfinished(_ context.Context) []model.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Task, 0)
	for _, t := range s.tasks {
		if !t.Status.Terminal() {
			out = append(out, t.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *MemoryTaskStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// Close stops the background metrics updater.
func (s *MemoryTaskStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

func (s *MemoryTaskStore) startMetricsUpdater(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.gaugeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopChan:
				return
			case <-ticker.C:
				metrics.UpdateTasksTracked(s.Count(ctx))
			}
		}
	}()
}
