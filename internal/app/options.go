package service

import (
	"github.com/okian/civiclens/internal/adapters/ai"
	"github.com/okian/civiclens/internal/adapters/cache"
	"github.com/okian/civiclens/internal/adapters/media"
	"github.com/okian/civiclens/internal/adapters/storage"
	"github.com/okian/civiclens/internal/config"
	"github.com/okian/civiclens/internal/domain/taxonomy"
	"github.com/okian/civiclens/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig sets the configuration. Defaults come from config.New.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithGateway replaces the AI provider selected by ai_provider.
func WithGateway(g ai.Gateway) Option {
	return func(s *Service) { s.gateway = g }
}

// WithCacheBackend replaces the backend selected by cache_backend.
func WithCacheBackend(b cache.Backend) Option {
	return func(s *Service) { s.backend = b }
}

// WithObjectStore replaces the S3-compatible store built from storage_* settings.
func WithObjectStore(o storage.ObjectStore) Option {
	return func(s *Service) { s.objects = o }
}

// WithFrameRunner replaces the ffmpeg/ffprobe process runner.
func WithFrameRunner(r media.Runner) Option {
	return func(s *Service) { s.runner = r }
}

// WithTaxonomy replaces the built-in or file-loaded taxonomy.
func WithTaxonomy(t *taxonomy.Taxonomy) Option {
	return func(s *Service) { s.tax = t }
}
