package model

import (
	"fmt"
	"time"
)

// TaskStatus is the lifecycle state of an async analysis.
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
)

// Terminal reports whether no further transition is possible.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed
}

// CanTransition encodes pending -> processing -> completed|failed. A pending task may
// also fail directly (e.g. it expired in the queue).
func (s TaskStatus) CanTransition(to TaskStatus) bool {
	switch s {
	case TaskPending:
		return to == TaskProcessing || to == TaskFailed
	case TaskProcessing:
		return to == TaskCompleted || to == TaskFailed
	}
	return false
}

// TaskRequest is what a caller submits for async analysis.
type TaskRequest struct {
	MediaURL  string    `json:"media_url"`
	MediaType MediaType `json:"media_type"`
	MaxFrames int       `json:"max_frames,omitempty"`
}

// Task is one async analysis. Mutate only through Start, Complete and Fail.
type Task struct {
	ID          string          `json:"task_id"`
	Request     TaskRequest     `json:"request"`
	Status      TaskStatus      `json:"status"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	FailedAt    *time.Time      `json:"failed_at,omitempty"`
	Result      *AnalysisResult `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// NewTask returns a pending task.
func NewTask(id string, req TaskRequest, now time.Time) Task {
	return Task{ID: id, Request: req, Status: TaskPending, CreatedAt: now}
}

func (t *Task) transition(to TaskStatus) error {
	if !t.Status.CanTransition(to) {
		return fmt.Errorf("task %s: illegal transition %s -> %s", t.ID, t.Status, to)
	}
	t.Status = to
	return nil
}

// Start moves a pending task to processing.
func (t *Task) Start(now time.Time) error {
	if err := t.transition(TaskProcessing); err != nil {
		return err
	}
	t.StartedAt = &now
	return nil
}

// Complete records the result of a processing task.
func (t *Task) Complete(now time.Time, result AnalysisResult) error {
	if err := t.transition(TaskCompleted); err != nil {
		return err
	}
	t.CompletedAt = &now
	t.Result = &result
	return nil
}

// Fail records a caller-visible error message.
func (t *Task) Fail(now time.Time, msg string) error {
	if err := t.transition(TaskFailed); err != nil {
		return err
	}
	t.FailedAt = &now
	t.Error = msg
	return nil
}

// FinishedAt returns when the task reached a terminal state, or zero.
func (t Task) FinishedAt() time.Time {
	switch {
	case t.CompletedAt != nil:
		return *t.CompletedAt
	case t.FailedAt != nil:
		return *t.FailedAt
	}
	return time.Time{}
}

// Clone returns a copy that shares no mutable state with t.
func (t Task) Clone() Task {
	c := t
	if t.StartedAt != nil {
		v := *t.StartedAt
		c.StartedAt = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	if t.FailedAt != nil {
		v := *t.FailedAt
		c.FailedAt = &v
	}
	if t.Result != nil {
		r := *t.Result
		r.Details = cloneMap(t.Result.Details)
		c.Result = &r
	}
	return c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

// cloneValue copies the container shapes details hold after a JSON round trip,
// plus the typed slices results carry before one.
func cloneValue(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return cloneMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = cloneValue(e)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(x))
		for i, e := range x {
			out[i] = cloneMap(e)
		}
		return out
	case []string:
		return append([]string(nil), x...)
	case []float64:
		return append([]float64(nil), x...)
	case []int:
		return append([]int(nil), x...)
	case []Region:
		out := make([]Region, len(x))
		for i, r := range x {
			r.Box = append([]float64(nil), r.Box...)
			out[i] = r
		}
		return out
	}
	return v
}
