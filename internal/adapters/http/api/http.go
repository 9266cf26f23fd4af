// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/types"
	"github.com/okian/civiclens/pkg/logger"
)

const maxBodyBytes = 1 << 20

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	AnalysisDependencies
	TaskDependencies
	CacheDependencies
}

// AnalysisDependencies covers the synchronous operations.
type AnalysisDependencies interface {
	AnalyzeImage(ctx context.Context, url string) (model.AnalysisResult, error)
	AnalyzeVideo(ctx context.Context, url string, maxFrames int) (model.AnalysisResult, error)
	ExtractFrames(ctx context.Context, url string, maxFrames int) ([]model.Frame, error)
	ClassifyEvent(ctx context.Context, text string) (model.Classification, error)
	ListEventTypes(ctx context.Context) ([]types.EventType, error)
	GetServiceStatus(ctx context.Context) (types.ServiceStatus, error)
}

// TaskDependencies covers async analysis.
type TaskDependencies interface {
	SubmitAsync(ctx context.Context, req model.TaskRequest) (string, error)
	GetTaskStatus(ctx context.Context, id string) (model.Task, error)
	EvictTask(ctx context.Context, id string) (bool, error)
}

// CacheDependencies covers cache administration.
type CacheDependencies interface {
	GetCacheStats(ctx context.Context) (types.CacheStats, error)
	ClearCache(ctx context.Context, pattern string, purgeFrames bool) (types.CacheClearResult, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler   *HealthHandler
	statsHandler    *StatsHandler
	analysisHandler *AnalysisHandler
	tasksHandler    *TasksHandler
	cacheHandler    *CacheHandler

	corsOrigins []string
	log         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed browser origins.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.corsOrigins = origins
		}
	}
}

// WithLogger sets the logger used for request failures.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider, opts ...Option) *Server {
	s := &Server{
		corsOrigins: []string{"*"},
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.healthHandler = NewHealthHandler()
	s.statsHandler = NewStatsHandler(statsProvider)
	s.analysisHandler = NewAnalysisHandler(deps, s.log)
	s.tasksHandler = NewTasksHandler(deps, s.log)
	s.cacheHandler = NewCacheHandler(deps, s.log)
	return s
}

// Register attaches middleware and all routes to r. Call it before adding other
// routes to r.
func (s *Server) Register(_ context.Context, r chi.Router) {
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "Authorization"},
		MaxAge:         300,
	}))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", s.healthHandler.HandleHealth)
	r.Get("/metrics", s.healthHandler.HandleMetrics)
	r.Get("/stats", s.statsHandler.HandleStats)

	r.Route("/v1", func(v1 chi.Router) {
		v1.Post("/analyze/image", s.analysisHandler.HandleAnalyzeImage)
		v1.Post("/analyze/video", s.analysisHandler.HandleAnalyzeVideo)
		v1.Post("/frames", s.analysisHandler.HandleExtractFrames)
		v1.Post("/classify", s.analysisHandler.HandleClassify)
		v1.Get("/event-types", s.analysisHandler.HandleEventTypes)
		v1.Get("/status", s.analysisHandler.HandleStatus)

		v1.Post("/tasks", s.tasksHandler.HandleSubmit)
		v1.Get("/tasks/{id}", s.tasksHandler.HandleGet)
		v1.Delete("/tasks/{id}", s.tasksHandler.HandleEvict)

		v1.Get("/cache/stats", s.cacheHandler.HandleStats)
		v1.Delete("/cache", s.cacheHandler.HandleClear)
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with a sanitized message; the full error goes to the log.
func writeError(ctx context.Context, log logger.Logger, w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	msg := model.Sanitize(err)
	if errors.Is(err, ErrBadRequest) {
		msg = err.Error()
	}
	if status >= http.StatusInternalServerError {
		log.Error(ctx, "request failed", logger.String("op", op), logger.String("kind", model.KindName(err)), logger.Error(err))
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// decode reads a JSON body, rejecting unknown fields and oversized payloads.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrBadRequest)
		}
		return fmt.Errorf("%w: invalid JSON body", ErrBadRequest)
	}
	return nil
}

type mediaRequest struct {
	MediaURL  string `json:"media_url"`
	MaxFrames int    `json:"max_frames,omitempty"`
}

func (m mediaRequest) validate() error {
	if strings.TrimSpace(m.MediaURL) == "" {
		return fmt.Errorf("%w: missing media_url", ErrBadRequest)
	}
	return nil
}

type taskRequest struct {
	MediaURL  string `json:"media_url"`
	MediaType string `json:"media_type"`
	MaxFrames int    `json:"max_frames,omitempty"`
}

func (t taskRequest) validate() error {
	switch {
	case strings.TrimSpace(t.MediaURL) == "":
		return fmt.Errorf("%w: missing media_url", ErrBadRequest)
	case strings.TrimSpace(t.MediaType) == "":
		return fmt.Errorf("%w: missing media_type", ErrBadRequest)
	}
	return nil
}

type classifyRequest struct {
	Text string `json:"text"`
}
