package swagger

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/smartystreets/goconvey/convey"
	"gopkg.in/yaml.v3"
)

func TestSwaggerHandler(t *testing.T) {
	convey.Convey("Given a router with the docs registered", t, func() {
		r := chi.NewRouter()
		Register(context.Background(), r)

		convey.Convey("Then it serves /openapi.yaml", func() {
			req := httptest.NewRequest(http.MethodGet, "/openapi.yaml", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "application/yaml; charset=utf-8")
			convey.So(w.Body.Len(), convey.ShouldBeGreaterThan, 0)
		})

		convey.Convey("And it serves /api-docs", func() {
			req := httptest.NewRequest(http.MethodGet, "/api-docs", http.NoBody)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			convey.So(w.Code, convey.ShouldEqual, http.StatusOK)
			convey.So(w.Header().Get("Content-Type"), convey.ShouldEqual, "text/html; charset=utf-8")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, "redoc-container")
			convey.So(w.Body.String(), convey.ShouldContainSubstring, redocScript)
		})
	})

	convey.Convey("The embedded document lists every route", t, func() {
		var doc struct {
			OpenAPI string                    `yaml:"openapi"`
			Paths   map[string]map[string]any `yaml:"paths"`
		}
		convey.So(yaml.Unmarshal(OpenAPI, &doc), convey.ShouldBeNil)
		convey.So(doc.OpenAPI, convey.ShouldStartWith, "3.")
		for path, method := range map[string]string{
			"/v1/analyze/image": "post",
			"/v1/analyze/video": "post",
			"/v1/frames":        "post",
			"/v1/classify":      "post",
			"/v1/event-types":   "get",
			"/v1/status":        "get",
			"/v1/tasks":         "post",
			"/v1/tasks/{id}":    "get",
			"/v1/cache/stats":   "get",
			"/v1/cache":         "delete",
			"/stats":            "get",
			"/healthz":          "get",
		} {
			convey.So(doc.Paths[path], convey.ShouldContainKey, method)
		}
		convey.So(doc.Paths["/v1/tasks/{id}"], convey.ShouldContainKey, "delete")
	})
}
