package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/logger"
)

// TasksHandler serves async analysis.
type TasksHandler struct {
	deps TaskDependencies
	log  logger.Logger
}

// NewTasksHandler creates a tasks handler.
func NewTasksHandler(deps TaskDependencies, log logger.Logger) *TasksHandler {
	return &TasksHandler{deps: deps, log: log}
}

type submitResponse struct {
	TaskID string           `json:"task_id"`
	Status model.TaskStatus `json:"status"`
}

// HandleSubmit handles POST /v1/tasks. It returns as soon as the task is queued.
func (h *TasksHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit_task"
	var req taskRequest
	if err := decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	id, err := h.deps.SubmitAsync(r.Context(), model.TaskRequest{
		MediaURL:  req.MediaURL,
		MediaType: model.MediaType(req.MediaType),
		MaxFrames: req.MaxFrames,
	})
	if err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	w.Header().Set("Location", "/v1/tasks/"+id)
	writeJSON(w, http.StatusAccepted, submitResponse{TaskID: id, Status: model.TaskPending})
}

// HandleGet handles GET /v1/tasks/{id}.
func (h *TasksHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	task, err := h.deps.GetTaskStatus(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), h.log, w, "api.get_task", err)
		return
	}
	writeJSON(w, http.StatusOK, task)
}

// HandleEvict handles DELETE /v1/tasks/{id}.
func (h *TasksHandler) HandleEvict(w http.ResponseWriter, r *http.Request) {
	const op = "api.evict_task"
	ok, err := h.deps.EvictTask(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	if !ok {
		writeError(r.Context(), h.log, w, op, ErrNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
