package api

import (
	"net/http"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/logger"
)

// AnalysisHandler serves the synchronous analysis routes.
type AnalysisHandler struct {
	deps AnalysisDependencies
	log  logger.Logger
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(deps AnalysisDependencies, log logger.Logger) *AnalysisHandler {
	return &AnalysisHandler{deps: deps, log: log}
}

// HandleAnalyzeImage handles POST /v1/analyze/image.
func (h *AnalysisHandler) HandleAnalyzeImage(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze_image"
	var req mediaRequest
	if err := decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	res, err := h.deps.AnalyzeImage(r.Context(), req.MediaURL)
	if err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleAnalyzeVideo handles POST /v1/analyze/video.
func (h *AnalysisHandler) HandleAnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	const op = "api.analyze_video"
	var req mediaRequest
	if err := decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	res, err := h.deps.AnalyzeVideo(r.Context(), req.MediaURL, req.MaxFrames)
	if err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type framesResponse struct {
	Frames []model.Frame `json:"frames"`
	Count  int           `json:"count"`
}

// HandleExtractFrames handles POST /v1/frames.
func (h *AnalysisHandler) HandleExtractFrames(w http.ResponseWriter, r *http.Request) {
	const op = "api.extract_frames"
	req := mediaRequest{MaxFrames: 5}
	if err := decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	frames, err := h.deps.ExtractFrames(r.Context(), req.MediaURL, req.MaxFrames)
	if err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, framesResponse{Frames: frames, Count: len(frames)})
}

// HandleClassify handles POST /v1/classify.
func (h *AnalysisHandler) HandleClassify(w http.ResponseWriter, r *http.Request) {
	const op = "api.classify"
	var req classifyRequest
	if err := decode(w, r, &req); err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	cl, err := h.deps.ClassifyEvent(r.Context(), req.Text)
	if err != nil {
		writeError(r.Context(), h.log, w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, cl)
}

// HandleEventTypes handles GET /v1/event-types.
func (h *AnalysisHandler) HandleEventTypes(w http.ResponseWriter, r *http.Request) {
	list, err := h.deps.ListEventTypes(r.Context())
	if err != nil {
		writeError(r.Context(), h.log, w, "api.event_types", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"event_types": list})
}

// HandleStatus handles GET /v1/status.
func (h *AnalysisHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.GetServiceStatus(r.Context())
	if err != nil {
		writeError(r.Context(), h.log, w, "api.status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
