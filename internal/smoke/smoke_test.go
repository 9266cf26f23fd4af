package smoke

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/okian/civiclens/internal/adapters/http/api"
	app "github.com/okian/civiclens/internal/app"
	"github.com/okian/civiclens/internal/config"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestObserver(t *testing.T) {
	Convey("Given an observer", t, func() {
		created := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		started := created.Add(time.Second)
		done := started.Add(time.Second)
		obs := &observer{id: "t-1"}

		pending := model.Task{ID: "t-1", Status: model.TaskPending, CreatedAt: created}
		processing := pending
		processing.Status = model.TaskProcessing
		processing.StartedAt = &started
		completed := processing
		completed.Status = model.TaskCompleted
		completed.CompletedAt = &done
		completed.Result = &model.AnalysisResult{EventType: "道路损坏"}

		Convey("A forward lifecycle is clean", func() {
			obs.observe(pending)
			obs.observe(processing)
			obs.observe(completed)
			obs.observe(completed)
			So(obs.errs, ShouldBeEmpty)
		})

		Convey("A status regression is flagged", func() {
			obs.observe(processing)
			obs.observe(pending)
			So(obs.errs, ShouldNotBeEmpty)
		})

		Convey("A completion before start is flagged", func() {
			early := created.Add(-time.Second)
			bad := completed
			bad.CompletedAt = &early
			obs.observe(bad)
			So(obs.errs, ShouldHaveLength, 1)
		})

		Convey("A failed task needs an error", func() {
			failed := processing
			failed.Status = model.TaskFailed
			failed.FailedAt = &done
			obs.observe(failed)
			So(obs.errs, ShouldHaveLength, 1)
		})
	})
}

func TestGenerateRequests(t *testing.T) {
	Convey("Generated requests are distinct and typed", t, func() {
		reqs := generateRequests(&Config{Count: 12, MediaType: model.MediaVideo, MaxFrames: 3})
		So(reqs, ShouldHaveLength, 12)

		seen := map[string]bool{}
		for _, r := range reqs {
			So(seen[r.MediaURL], ShouldBeFalse)
			seen[r.MediaURL] = true
			So(r.MediaType, ShouldEqual, model.MediaVideo)
			So(r.MaxFrames, ShouldEqual, 3)
			err := model.ValidateMediaURL(r.MediaURL)
			So(err, ShouldBeNil)
		}
	})
}

func TestClientBackpressure(t *testing.T) {
	Convey("A 429 submit surfaces as backpressure", t, func() {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTooManyRequests)
		}))
		defer ts.Close()

		c := NewClient(ts.URL, time.Second)
		_, err := c.Submit(context.Background(), model.TaskRequest{MediaURL: "https://x/a.jpg", MediaType: model.MediaImage})
		So(err, ShouldEqual, ErrBackpressure)
	})
}

func TestRunAgainstService(t *testing.T) {
	Convey("Given a running service", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		cfg := config.New()
		cfg.AIProvider = "none"
		cfg.TaskWorkerCount = 2
		cfg.TaskQueueSize = 64

		svc := app.New(app.WithConfig(cfg), app.WithLogger(logger.Nop()))
		So(svc.Start(ctx), ShouldBeNil)
		defer func() { _ = svc.Stop(context.Background()) }()

		r := chi.NewRouter()
		api.NewServer(svc, svc).Register(ctx, r)
		ts := httptest.NewServer(r)
		defer ts.Close()

		c := NewClient(ts.URL, time.Second)

		Convey("Every submitted task settles cleanly", func() {
			st, err := Run(ctx, &Config{
				BaseURL:      ts.URL,
				Count:        12,
				Workers:      3,
				PollInterval: 5 * time.Millisecond,
				Deadline:     3 * time.Second,
				MediaType:    model.MediaImage,
			}, c)
			So(err, ShouldBeNil)
			So(st.OK(), ShouldBeTrue)
			So(st.Submitted, ShouldEqual, 12)
			So(st.Completed, ShouldEqual, 12)
		})

		Convey("Classification round-trips", func() {
			out, err := c.Classify(ctx, "garbage piled up by the bus stop")
			So(err, ShouldBeNil)
			So(out.PrimaryType, ShouldEqual, "垃圾堆积")
		})

		Convey("Unknown tasks are reported as errors", func() {
			_, err := c.Task(ctx, "missing")
			So(err, ShouldNotBeNil)
		})
	})
}
