// Package service wires configuration into the analysis components and exposes the
// operations the HTTP API is built on.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/okian/civiclens/internal/adapters/ai"
	"github.com/okian/civiclens/internal/adapters/ai/openai"
	"github.com/okian/civiclens/internal/adapters/ai/simulated"
	"github.com/okian/civiclens/internal/adapters/cache"
	"github.com/okian/civiclens/internal/adapters/media"
	"github.com/okian/civiclens/internal/adapters/mq/queue"
	"github.com/okian/civiclens/internal/adapters/repository"
	"github.com/okian/civiclens/internal/adapters/storage"
	"github.com/okian/civiclens/internal/app/analysis"
	"github.com/okian/civiclens/internal/app/tasks"
	"github.com/okian/civiclens/internal/config"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/taxonomy"
	"github.com/okian/civiclens/internal/domain/types"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/okian/civiclens/pkg/metrics"
)

// ErrNotStarted is returned by operations called before Start or after Stop.
var ErrNotStarted = errors.New("service not started")

// Service implements the API dependencies for media analysis.
type Service struct {
	mu sync.RWMutex

	cfg    *config.Config
	logger logger.Logger

	// Injected or built in Start.
	tax     *taxonomy.Taxonomy
	gateway ai.Gateway
	backend cache.Backend
	objects storage.ObjectStore
	runner  media.Runner

	// Built in Start.
	cache     *cache.Cache
	extractor *media.Extractor
	engine    *analysis.Engine
	store     *repository.MemoryTaskStore
	queue     *queue.InMemoryQueue
	tasks     *tasks.Manager

	ownsBackend bool
	started     bool
	startedAt   time.Time
}

// New constructs a Service. Nothing connects until Start.
func New(opts ...Option) *Service {
	s := &Service{cfg: config.New()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and starts the components. A failed Start releases the cache backend
// it opened.
func (s *Service) Start(ctx context.Context) (err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	cfg := s.cfg
	s.logger.Info(ctx, "starting media analysis service...")

	if s.tax == nil {
		tax, err := loadTaxonomy(cfg.TaxonomyFile)
		if err != nil {
			return err
		}
		s.tax = tax
	}

	if s.backend == nil {
		b, err := s.buildBackend(ctx)
		if err != nil {
			return err
		}
		s.backend = b
		s.ownsBackend = true
		defer func() {
			if err != nil {
				_ = s.releaseBackend()
			}
		}()
	}
	s.cache = cache.New(s.backend,
		cache.WithEnabled(cfg.CacheEnabled),
		cache.WithTTL(cfg.CacheTTL),
		cache.WithKeyPrefix(cfg.CacheKeyPrefix),
		cache.WithLogger(s.logger.Named("cache")),
	)

	if s.gateway == nil {
		s.gateway = s.buildGateway()
	}
	metrics.UpdateProviderAvailable(s.gateway.IsAvailable())

	if s.objects == nil && cfg.StorageEndpoint != "" {
		store, err := storage.NewMinio(ctx, storage.MinioConfig{
			Endpoint:      cfg.StorageEndpoint,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			Bucket:        cfg.StorageBucket,
			Region:        cfg.StorageRegion,
			UseSSL:        cfg.StorageUseSSL,
			PublicBaseURL: cfg.StoragePublicBaseURL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		s.objects = store
	}

	engineOpts := []analysis.Option{
		analysis.WithGateway(s.gateway),
		analysis.WithCache(s.cache),
		analysis.WithFallback(cfg.FallbackEnabled),
		analysis.WithMinConfidence(cfg.FallbackMinConfidence),
		analysis.WithFusion(analysis.Fusion(cfg.VideoFusion)),
		analysis.WithDefaultFrames(cfg.VideoDefaultFrames),
		analysis.WithLogger(s.logger.Named("analysis")),
	}
	if s.objects != nil {
		xopts := []media.Option{
			media.WithBinaries(cfg.FFmpegPath, cfg.FFprobePath),
			media.WithFrameTimeout(cfg.FrameTimeout),
			media.WithLogger(s.logger.Named("frames")),
		}
		if s.runner != nil {
			xopts = append(xopts, media.WithRunner(s.runner))
		}
		s.extractor = media.New(s.objects, xopts...)
		engineOpts = append(engineOpts, analysis.WithFrameExtractor(s.extractor))
	} else {
		s.logger.Warn(ctx, "object storage not configured, video frames unavailable")
	}
	s.engine = analysis.New(s.tax, engineOpts...)

	s.store = repository.NewMemoryTaskStore(ctx)
	s.queue = queue.NewInMemoryQueue(queue.WithCapacity(cfg.TaskQueueSize))
	s.tasks = tasks.New(s.store, s.queue, s.engine,
		tasks.WithWorkers(cfg.TaskWorkerCount),
		tasks.WithMaxProcessing(cfg.TaskMaxProcessing),
		tasks.WithRetention(cfg.TaskRetention),
		tasks.WithSweepInterval(cfg.TaskSweepInterval),
		tasks.WithLogger(s.logger.Named("tasks")),
	)
	s.tasks.Start(ctx)

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "media analysis service started",
		logger.String("provider", s.gateway.Name()),
		logger.Bool("ai_available", s.gateway.IsAvailable()),
		logger.String("cache_backend", s.backend.Name()),
		logger.Bool("cache_enabled", cfg.CacheEnabled),
		logger.Bool("frame_extraction", s.extractor != nil),
		logger.Int("workers", cfg.TaskWorkerCount),
		logger.Int("queue_size", cfg.TaskQueueSize),
	)
	return nil
}

func loadTaxonomy(path string) (*taxonomy.Taxonomy, error) {
	if path == "" {
		return taxonomy.Default(), nil
	}
	tax, err := taxonomy.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("taxonomy: %w", err)
	}
	return tax, nil
}

func (s *Service) buildBackend(ctx context.Context) (cache.Backend, error) {
	if s.cfg.CacheBackend != "redis" {
		return cache.NewMemoryBackend(), nil
	}
	b, err := cache.NewRedisBackend(ctx, cache.RedisOptions{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPassword,
		DB:       s.cfg.RedisDB,
	})
	if err != nil {
		return nil, fmt.Errorf("cache backend: %w", err)
	}
	return b, nil
}

func (s *Service) buildGateway() ai.Gateway {
	cfg := s.cfg
	switch strings.ToLower(cfg.AIProvider) {
	case "openai":
		return openai.New(openai.Config{
			APIKey:           cfg.AIAPIKey,
			BaseURL:          cfg.AIBaseURL,
			Model:            cfg.AIModel,
			Timeout:          cfg.AITimeout,
			MaxTokens:        cfg.AIMaxTokens,
			HardFailCooldown: cfg.AIHardFailCooloff,
			EventTypes:       s.tax.Types(),
		}, openai.WithLogger(s.logger.Named("ai")))
	case "simulated":
		return simulated.New(s.tax, simulated.WithLatencyRange(
			time.Duration(cfg.AISimLatencyMinMS)*time.Millisecond,
			time.Duration(cfg.AISimLatencyMaxMS)*time.Millisecond,
		))
	}
	return ai.Disabled{}
}

// Stop drains the task manager and releases connections.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping media analysis service...")

	var errs []error
	if err := s.tasks.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	_ = s.store.Close()
	if err := s.releaseBackend(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info(ctx, "media analysis service stopped")
	return errors.Join(errs...)
}

// releaseBackend closes and forgets a backend the service opened itself.
func (s *Service) releaseBackend() error {
	if !s.ownsBackend {
		return nil
	}
	var err error
	if closer, ok := s.backend.(interface{ Close() error }); ok {
		err = closer.Close()
	}
	s.backend = nil
	s.ownsBackend = false
	return err
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.NewError("service", model.ErrUnavailable, ErrNotStarted)
	}
	return nil
}

// AnalyzeImage classifies one image synchronously.
func (s *Service) AnalyzeImage(ctx context.Context, url string) (model.AnalysisResult, error) {
	if err := s.running(); err != nil {
		return model.AnalysisResult{}, err
	}
	return s.engine.AnalyzeImage(ctx, url)
}

// AnalyzeVideo classifies one video synchronously.
func (s *Service) AnalyzeVideo(ctx context.Context, url string, maxFrames int) (model.AnalysisResult, error) {
	if err := s.running(); err != nil {
		return model.AnalysisResult{}, err
	}
	return s.engine.AnalyzeVideo(ctx, url, maxFrames)
}

// ExtractFrames samples and stores video frames without analyzing them.
func (s *Service) ExtractFrames(ctx context.Context, url string, maxFrames int) ([]model.Frame, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.engine.ExtractFrames(ctx, url, maxFrames)
}

// ClassifyEvent runs the keyword classifier over text.
func (s *Service) ClassifyEvent(_ context.Context, text string) (model.Classification, error) {
	if err := s.running(); err != nil {
		return model.Classification{}, err
	}
	return s.engine.ClassifyEvent(text)
}

// ListEventTypes dumps the taxonomy.
func (s *Service) ListEventTypes(_ context.Context) ([]types.EventType, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	return s.engine.ListEventTypes(), nil
}

// GetServiceStatus reports provider availability, fallback and task state.
func (s *Service) GetServiceStatus(ctx context.Context) (types.ServiceStatus, error) {
	if err := s.running(); err != nil {
		return types.ServiceStatus{}, err
	}
	st := s.engine.Status()
	ts := s.tasks.Stats(ctx)
	st.Tasks = &ts
	return st, nil
}

// SubmitAsync queues an analysis and returns its task id.
func (s *Service) SubmitAsync(ctx context.Context, req model.TaskRequest) (string, error) {
	if err := s.running(); err != nil {
		return "", err
	}
	return s.tasks.Submit(ctx, req)
}

// GetTaskStatus returns a task snapshot.
func (s *Service) GetTaskStatus(ctx context.Context, id string) (model.Task, error) {
	if err := s.running(); err != nil {
		return model.Task{}, err
	}
	return s.tasks.GetStatus(ctx, id)
}

// EvictTask forgets a task.
func (s *Service) EvictTask(ctx context.Context, id string) (bool, error) {
	if err := s.running(); err != nil {
		return false, err
	}
	return s.tasks.Evict(ctx, id), nil
}

// GetCacheStats reports cache configuration and occupancy.
func (s *Service) GetCacheStats(ctx context.Context) (types.CacheStats, error) {
	if err := s.running(); err != nil {
		return types.CacheStats{}, err
	}
	return s.cache.Stats(ctx)
}

// ClearCache removes cached results matching pattern and, when purgeFrames is set,
// every stored video frame.
func (s *Service) ClearCache(ctx context.Context, pattern string, purgeFrames bool) (types.CacheClearResult, error) {
	if err := s.running(); err != nil {
		return types.CacheClearResult{}, err
	}
	if pattern == "" {
		pattern = "*"
	}
	out := types.CacheClearResult{Pattern: pattern}
	n, err := s.cache.Invalidate(ctx, pattern)
	out.KeysDeleted = n
	if err != nil {
		return out, err
	}
	if purgeFrames && s.extractor != nil {
		n, err := s.extractor.Purge(ctx)
		out.FramesDeleted = n
		if err != nil {
			return out, model.NewError("purge frames", model.ErrStorage, err)
		}
	}
	s.logger.Info(ctx, "cache cleared",
		logger.String("pattern", pattern),
		logger.Int("keys", out.KeysDeleted),
		logger.Int("frames", out.FramesDeleted),
	)
	return out, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":     s.started,
		"workerCount": s.cfg.TaskWorkerCount,
		"queueSize":   s.cfg.TaskQueueSize,
	}
	if !s.started {
		return stats
	}

	ts := s.tasks.Stats(ctx)
	stats["uptimeSeconds"] = int64(time.Since(s.startedAt) / time.Second)
	stats["provider"] = s.gateway.Name()
	stats["aiAvailable"] = s.gateway.IsAvailable()
	stats["fallbackEnabled"] = s.cfg.FallbackEnabled
	stats["cacheEnabled"] = s.cfg.CacheEnabled
	stats["cacheBackend"] = s.backend.Name()
	stats["frameExtraction"] = s.extractor != nil
	stats["queueLength"] = ts.QueueLength
	stats["tasksTracked"] = ts.Tracked

	metrics.UpdateQueueSize(ts.QueueLength)
	metrics.UpdateTasksTracked(ts.Tracked)
	metrics.UpdateProviderAvailable(s.gateway.IsAvailable())
	return stats
}
