// Package repository holds async analysis tasks while they run and for a retention
// window afterwards.
package repository

import (
	"context"
	"time"

	"github.com/okian/civiclens/internal/domain/model"
)

// TaskStore is the shared task state. Readers always receive copies, so a snapshot
// never reflects a half-applied transition.
type TaskStore interface {
	// Create adds a new task. Returns ErrTaskExists for a duplicate id.
	Create(ctx context.Context, task model.Task) error
	// Get returns a snapshot. Returns ErrNotFound for unknown ids.
	Get(ctx context.Context, id string) (model.Task, error)
	// Update applies fn atomically to the stored task. If fn fails nothing changes.
	Update(ctx context.Context, id string, fn func(*model.Task) error) (model.Task, error)
	// Delete removes a task and reports whether it existed.
	Delete(ctx context.Context, id string) bool
	// EvictFinishedBefore removes terminal tasks that finished before cutoff.
	EvictFinishedBefore(ctx context.Context, cutoff time.Time) int
	// Unfinished returns snapshots of tasks not yet in a terminal state.
	Unfinished(ctx context.Context) []model.Task
	Count(ctx context.Context) int
}
