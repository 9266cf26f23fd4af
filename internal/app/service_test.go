package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/civiclens/internal/adapters/ai"
	"github.com/okian/civiclens/internal/adapters/ai/simulated"
	"github.com/okian/civiclens/internal/adapters/cache"
	service "github.com/okian/civiclens/internal/app"
	"github.com/okian/civiclens/internal/config"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/taxonomy"
	"github.com/okian/civiclens/pkg/logger"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

type fakeRunner struct{}

func (fakeRunner) Run(_ context.Context, name string, _ ...string) ([]byte, error) {
	if strings.Contains(name, "ffprobe") {
		return []byte("9.0\n"), nil
	}
	return []byte{0xff, 0xd8, 0xff, 0xd9}, nil
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore { return &memStore{objects: map[string][]byte{}} }

func (m *memStore) Put(_ context.Context, key string, data []byte, _ string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return "https://objects.test/" + key, nil
}

func (m *memStore) Delete(_ context.Context, keys ...string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, k := range keys {
		if _, ok := m.objects[k]; ok {
			delete(m.objects, k)
			n++
		}
	}
	return n, nil
}

func (m *memStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out, nil
}

func testConfig() *config.Config {
	cfg := config.New()
	cfg.TaskWorkerCount = 2
	cfg.TaskQueueSize = 16
	cfg.AIProvider = "none"
	return cfg
}

func waitTerminal(svc *service.Service, id string) model.Task {
	deadline := time.Now().Add(3 * time.Second)
	for {
		t, err := svc.GetTaskStatus(context.Background(), id)
		if (err == nil && t.Status.Terminal()) || time.Now().After(deadline) {
			return t
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a new service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithConfig(testConfig()))

		Convey("Operations before Start are unavailable", func() {
			_, err := svc.AnalyzeImage(ctx, "https://x/a.jpg")
			So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
			So(svc.GetStats()["started"], ShouldEqual, false)
		})

		Convey("When started", func() {
			So(svc.Start(ctx), ShouldBeNil)
			So(svc.Start(ctx), ShouldBeNil)

			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, true)
			So(stats["provider"], ShouldEqual, "none")
			So(stats["cacheBackend"], ShouldEqual, "memory")

			Convey("And stopped, it reports stopped", func() {
				So(svc.Stop(ctx), ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, false)
				_, err := svc.SubmitAsync(ctx, model.TaskRequest{MediaURL: "https://x/a.jpg", MediaType: model.MediaImage})
				So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
			})

			Reset(func() { _ = svc.Stop(ctx) })
		})
	})
}

func TestService_Fallback(t *testing.T) {
	Convey("Given a service whose AI provider is unavailable", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithConfig(testConfig()), service.WithGateway(ai.Disabled{}))
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("A pothole photo is classified by keyword", func() {
			res, err := svc.AnalyzeImage(ctx, "https://cdn.example.com/reports/pothole.jpg")
			So(err, ShouldBeNil)
			So(res.EventType, ShouldEqual, "道路损坏")
			So(res.IsFallback(), ShouldBeTrue)
			So(res.Confidence, ShouldBeGreaterThan, 0.1)
		})

		Convey("The status reflects the fallback", func() {
			st, err := svc.GetServiceStatus(ctx)
			So(err, ShouldBeNil)
			So(st.AIAvailable, ShouldBeFalse)
			So(st.FallbackEnabled, ShouldBeTrue)
			So(st.Tasks, ShouldNotBeNil)
			So(st.Tasks.Workers, ShouldEqual, 2)
		})

		Convey("Video frames are unavailable without object storage", func() {
			_, err := svc.ExtractFrames(ctx, "https://cdn.example.com/v.mp4", 3)
			So(errors.Is(err, model.ErrUnavailable), ShouldBeTrue)
		})

		Convey("The cache keeps results until cleared", func() {
			_, err := svc.AnalyzeImage(ctx, "https://cdn.example.com/trash.jpg")
			So(err, ShouldBeNil)
			stats, err := svc.GetCacheStats(ctx)
			So(err, ShouldBeNil)
			So(stats.KeyCount, ShouldEqual, 1)

			cleared, err := svc.ClearCache(ctx, "", false)
			So(err, ShouldBeNil)
			So(cleared.KeysDeleted, ShouldEqual, 1)
			So(cleared.Pattern, ShouldEqual, "*")
		})
	})
}

func TestService_AsyncVideo(t *testing.T) {
	Convey("Given a healthy provider and frame storage", t, func() {
		ctx := context.Background()
		tax := taxonomy.Default()
		objects := newMemStore()
		backend := cache.NewMemoryBackend()
		svc := service.New(
			service.WithConfig(testConfig()),
			service.WithTaxonomy(tax),
			service.WithGateway(simulated.New(tax, simulated.WithLatencyRange(0, 2*time.Millisecond))),
			service.WithObjectStore(objects),
			service.WithFrameRunner(fakeRunner{}),
			service.WithCacheBackend(backend),
		)
		So(svc.Start(ctx), ShouldBeNil)
		Reset(func() { _ = svc.Stop(ctx) })

		Convey("A video task with three frames completes", func() {
			id, err := svc.SubmitAsync(ctx, model.TaskRequest{
				MediaURL:  "https://cdn.example.com/clip.mp4",
				MediaType: model.MediaVideo,
				MaxFrames: 3,
			})
			So(err, ShouldBeNil)

			task := waitTerminal(svc, id)
			So(task.Status, ShouldEqual, model.TaskCompleted)
			So(tax.Has(task.Result.EventType), ShouldBeTrue)
			So(task.Result.Details["frame_count"], ShouldEqual, float64(3))
			So(task.StartedAt.Before(task.CreatedAt), ShouldBeFalse)
			So(task.CompletedAt.Before(*task.StartedAt), ShouldBeFalse)

			Convey("and clearing with frames removes the stored stills", func() {
				cleared, err := svc.ClearCache(ctx, "*", true)
				So(err, ShouldBeNil)
				So(cleared.FramesDeleted, ShouldEqual, 3)
				So(cleared.KeysDeleted, ShouldEqual, 1)
			})
		})

		Convey("Standalone frame extraction returns ordered frames", func() {
			frames, err := svc.ExtractFrames(ctx, "https://cdn.example.com/clip.mp4", 3)
			So(err, ShouldBeNil)
			So(len(frames), ShouldEqual, 3)
			for i := 1; i < len(frames); i++ {
				So(frames[i].Seconds, ShouldBeGreaterThan, frames[i-1].Seconds)
			}
		})

		Convey("Evicted tasks are no longer found", func() {
			id, err := svc.SubmitAsync(ctx, model.TaskRequest{MediaURL: "https://cdn.example.com/a.jpg", MediaType: model.MediaImage})
			So(err, ShouldBeNil)
			waitTerminal(svc, id)
			ok, err := svc.EvictTask(ctx, id)
			So(err, ShouldBeNil)
			So(ok, ShouldBeTrue)
			_, err = svc.GetTaskStatus(ctx, id)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})
	})
}

func TestService_FailedStartReleasesBackend(t *testing.T) {
	Convey("Given a redis cache and an incomplete storage config", t, func() {
		mr := miniredis.RunT(t)
		cfg := testConfig()
		cfg.CacheBackend = "redis"
		cfg.RedisAddr = mr.Addr()
		cfg.StorageEndpoint = "objects.test:9000"
		cfg.StorageBucket = ""
		svc := service.New(service.WithConfig(cfg), service.WithLogger(logger.Nop()))

		Convey("Start fails and the redis connection is closed", func() {
			So(svc.Start(context.Background()), ShouldNotBeNil)
			deadline := time.Now().Add(time.Second)
			for mr.CurrentConnectionCount() > 0 && time.Now().Before(deadline) {
				time.Sleep(5 * time.Millisecond)
			}
			So(mr.CurrentConnectionCount(), ShouldEqual, 0)

			Convey("and a corrected config starts on a fresh backend", func() {
				cfg.StorageEndpoint = ""
				So(svc.Start(context.Background()), ShouldBeNil)
				st, err := svc.GetCacheStats(context.Background())
				So(err, ShouldBeNil)
				So(st.Backend, ShouldEqual, "redis")
				So(svc.Stop(context.Background()), ShouldBeNil)
			})
		})
	})
}
