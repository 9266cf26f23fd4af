package smoke

import (
	"fmt"
	"time"

	"github.com/okian/civiclens/internal/domain/model"
)

func statusRank(s model.TaskStatus) int {
	switch s {
	case model.TaskPending:
		return 0
	case model.TaskProcessing:
		return 1
	case model.TaskCompleted, model.TaskFailed:
		return 2
	}
	return -1
}

// observer accumulates the snapshots polled for one task.
type observer struct {
	id   string
	last *model.Task
	errs []string
}

func (o *observer) violate(format string, args ...any) {
	o.errs = append(o.errs, fmt.Sprintf("task %s: ", o.id)+fmt.Sprintf(format, args...))
}

// observe checks a snapshot on its own and against the previous one.
func (o *observer) observe(t model.Task) {
	if statusRank(t.Status) < 0 {
		o.violate("unknown status %q", t.Status)
		return
	}
	checkSnapshot(o, t)

	if prev := o.last; prev != nil {
		if statusRank(t.Status) < statusRank(prev.Status) {
			o.violate("status went backwards %s -> %s", prev.Status, t.Status)
		}
		if prev.Status.Terminal() && t.Status != prev.Status {
			o.violate("terminal status changed %s -> %s", prev.Status, t.Status)
		}
		if !t.CreatedAt.Equal(prev.CreatedAt) {
			o.violate("created_at changed")
		}
		if prev.StartedAt != nil && (t.StartedAt == nil || !t.StartedAt.Equal(*prev.StartedAt)) {
			o.violate("started_at changed after being set")
		}
	}
	o.last = &t
}

func checkSnapshot(o *observer, t model.Task) {
	after := func(name string, ts *time.Time, ref time.Time) {
		if ts != nil && ts.Before(ref) {
			o.violate("%s precedes its predecessor", name)
		}
	}

	after("started_at", t.StartedAt, t.CreatedAt)
	ref := t.CreatedAt
	if t.StartedAt != nil {
		ref = *t.StartedAt
	}
	after("completed_at", t.CompletedAt, ref)
	after("failed_at", t.FailedAt, ref)

	switch t.Status {
	case model.TaskPending:
		if t.StartedAt != nil || t.CompletedAt != nil || t.FailedAt != nil {
			o.violate("pending task carries progress timestamps")
		}
	case model.TaskProcessing:
		if t.StartedAt == nil {
			o.violate("processing task without started_at")
		}
	case model.TaskCompleted:
		if t.CompletedAt == nil || t.Result == nil {
			o.violate("completed task without completed_at or result")
		}
		if t.Error != "" {
			o.violate("completed task carries an error")
		}
	case model.TaskFailed:
		if t.FailedAt == nil || t.Error == "" {
			o.violate("failed task without failed_at or error")
		}
		if t.Result != nil {
			o.violate("failed task carries a result")
		}
	}
}
