package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/civiclens/internal/adapters/http/api"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/types"
)

type mockDependencies struct {
	result     model.AnalysisResult
	err        error
	frames     []model.Frame
	gotFrames  int
	gotPattern string
	gotPurge   bool
	tasks      map[string]model.Task
	submitErr  error
}

func (m *mockDependencies) AnalyzeImage(context.Context, string) (model.AnalysisResult, error) {
	return m.result, m.err
}

func (m *mockDependencies) AnalyzeVideo(_ context.Context, _ string, maxFrames int) (model.AnalysisResult, error) {
	m.gotFrames = maxFrames
	return m.result, m.err
}

func (m *mockDependencies) ExtractFrames(_ context.Context, _ string, maxFrames int) ([]model.Frame, error) {
	m.gotFrames = maxFrames
	return m.frames, m.err
}

func (m *mockDependencies) ClassifyEvent(_ context.Context, text string) (model.Classification, error) {
	if text == "" {
		return model.Classification{}, model.NewError("classify", model.ErrValidation, errors.New("text is required"))
	}
	return model.Classification{PrimaryType: "道路损坏", Confidence: 0.25, Priority: model.PriorityHigh}, nil
}

func (m *mockDependencies) ListEventTypes(context.Context) ([]types.EventType, error) {
	return []types.EventType{{Type: "道路损坏"}, {Type: "其他问题"}}, nil
}

func (m *mockDependencies) GetServiceStatus(context.Context) (types.ServiceStatus, error) {
	return types.ServiceStatus{Provider: "none", FallbackEnabled: true}, nil
}

func (m *mockDependencies) SubmitAsync(_ context.Context, req model.TaskRequest) (string, error) {
	if m.submitErr != nil {
		return "", m.submitErr
	}
	id := fmt.Sprintf("task-%d", len(m.tasks)+1)
	m.tasks[id] = model.NewTask(id, req, time.Now())
	return id, nil
}

func (m *mockDependencies) GetTaskStatus(_ context.Context, id string) (model.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return model.Task{}, fmt.Errorf("task %w", model.ErrNotFound)
	}
	return t, nil
}

func (m *mockDependencies) EvictTask(_ context.Context, id string) (bool, error) {
	_, ok := m.tasks[id]
	delete(m.tasks, id)
	return ok, nil
}

func (m *mockDependencies) GetCacheStats(context.Context) (types.CacheStats, error) {
	return types.CacheStats{Enabled: true, TTLSeconds: 3600, KeyCount: 2, Backend: "memory"}, nil
}

func (m *mockDependencies) ClearCache(_ context.Context, pattern string, purge bool) (types.CacheClearResult, error) {
	m.gotPattern, m.gotPurge = pattern, purge
	return types.CacheClearResult{Pattern: pattern, KeysDeleted: 2}, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any { return m.stats }

func newRouter(deps *mockDependencies) http.Handler {
	r := chi.NewRouter()
	api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}).Register(context.Background(), r)
	return r
}

func do(h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var out map[string]string
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return out
}

func TestAnalysisRoutes(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{
			tasks:  map[string]model.Task{},
			result: model.AnalysisResult{EventType: "道路损坏", Confidence: 0.8, Details: map[string]any{"fallback": false}},
		}
		h := newRouter(deps)

		Convey("Health, stats and metrics answer", func() {
			So(do(h, http.MethodGet, "/healthz", "").Code, ShouldEqual, http.StatusOK)
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
			So(w.Header().Get("Cache-Control"), ShouldEqual, "no-store")
			So(do(h, http.MethodGet, "/metrics", "").Code, ShouldEqual, http.StatusOK)
		})

		Convey("Image analysis returns the result", func() {
			w := do(h, http.MethodPost, "/v1/analyze/image", `{"media_url":"https://x/a.jpg"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			var res model.AnalysisResult
			So(json.Unmarshal(w.Body.Bytes(), &res), ShouldBeNil)
			So(res.EventType, ShouldEqual, "道路损坏")
		})

		Convey("Malformed bodies are bad requests", func() {
			for _, body := range []string{"", "{", `{"media_url":""}`, `{"media_url":"https://x","extra":1}`} {
				w := do(h, http.MethodPost, "/v1/analyze/image", body)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			}
		})

		Convey("Validation errors surface their message", func() {
			deps.err = model.NewError("validate url", model.ErrValidation, errors.New("media url must use http or https"))
			w := do(h, http.MethodPost, "/v1/analyze/video", `{"media_url":"ftp://x/a.mp4","max_frames":3}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
			So(decodeError(w)["message"], ShouldEqual, "media url must use http or https")
			So(deps.gotFrames, ShouldEqual, 3)
		})

		Convey("Internal details never reach the caller", func() {
			deps.err = model.NewError("analyze video", model.ErrStorage, errors.New("dial tcp 10.1.2.3:6379: refused"))
			w := do(h, http.MethodPost, "/v1/analyze/video", `{"media_url":"https://x/a.mp4"}`)
			So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			So(w.Body.String(), ShouldNotContainSubstring, "10.1.2.3")
			So(decodeError(w)["message"], ShouldEqual, "storage temporarily unavailable")
		})

		Convey("Frame extraction defaults to five frames", func() {
			deps.frames = []model.Frame{{Index: 0, URL: "https://s3/0.jpg"}}
			w := do(h, http.MethodPost, "/v1/frames", `{"media_url":"https://x/a.mp4"}`)
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotFrames, ShouldEqual, 5)
			So(w.Body.String(), ShouldContainSubstring, `"count":1`)
		})

		Convey("Classification, event types and status", func() {
			So(do(h, http.MethodPost, "/v1/classify", `{"text":"路面坑洼"}`).Code, ShouldEqual, http.StatusOK)
			So(do(h, http.MethodPost, "/v1/classify", `{"text":""}`).Code, ShouldEqual, http.StatusBadRequest)
			w := do(h, http.MethodGet, "/v1/event-types", "")
			So(w.Body.String(), ShouldContainSubstring, "event_types")
			So(do(h, http.MethodGet, "/v1/status", "").Code, ShouldEqual, http.StatusOK)
		})
	})
}

func TestTaskRoutes(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{tasks: map[string]model.Task{}}
		h := newRouter(deps)

		Convey("Submitting returns 202 with the task id", func() {
			w := do(h, http.MethodPost, "/v1/tasks", `{"media_url":"https://x/a.jpg","media_type":"image"}`)
			So(w.Code, ShouldEqual, http.StatusAccepted)
			So(w.Header().Get("Location"), ShouldEqual, "/v1/tasks/task-1")

			g := do(h, http.MethodGet, "/v1/tasks/task-1", "")
			So(g.Code, ShouldEqual, http.StatusOK)
			So(g.Body.String(), ShouldContainSubstring, `"status":"pending"`)

			So(do(h, http.MethodDelete, "/v1/tasks/task-1", "").Code, ShouldEqual, http.StatusNoContent)
			So(do(h, http.MethodDelete, "/v1/tasks/task-1", "").Code, ShouldEqual, http.StatusNotFound)
			So(do(h, http.MethodGet, "/v1/tasks/task-1", "").Code, ShouldEqual, http.StatusNotFound)
		})

		Convey("A missing media type is rejected", func() {
			w := do(h, http.MethodPost, "/v1/tasks", `{"media_url":"https://x/a.jpg"}`)
			So(w.Code, ShouldEqual, http.StatusBadRequest)
		})

		Convey("A full queue is backpressure", func() {
			deps.submitErr = fmt.Errorf("submit task: queue full: %w", model.ErrCapacity)
			w := do(h, http.MethodPost, "/v1/tasks", `{"media_url":"https://x/a.jpg","media_type":"image"}`)
			So(w.Code, ShouldEqual, http.StatusTooManyRequests)
			So(decodeError(w)["code"], ShouldEqual, "backpressure")
		})
	})
}

func TestCacheRoutes(t *testing.T) {
	Convey("Given the API router", t, func() {
		deps := &mockDependencies{tasks: map[string]model.Task{}}
		h := newRouter(deps)

		Convey("Stats are reported", func() {
			w := do(h, http.MethodGet, "/v1/cache/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"key_count":2`)
		})

		Convey("Clear passes pattern and frame purge through", func() {
			w := do(h, http.MethodDelete, "/v1/cache?pattern=ab*&frames=true", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.gotPattern, ShouldEqual, "ab*")
			So(deps.gotPurge, ShouldBeTrue)
		})

		Convey("A bad frames flag is rejected", func() {
			So(do(h, http.MethodDelete, "/v1/cache?frames=maybe", "").Code, ShouldEqual, http.StatusBadRequest)
		})
	})
}
