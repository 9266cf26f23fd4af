package analysis

import (
	"time"

	"github.com/okian/civiclens/internal/adapters/ai"
	"github.com/okian/civiclens/pkg/logger"
)

// Option configures an Engine.
type Option func(*Engine)

// WithGateway sets the AI provider. Without one every analysis falls back.
func WithGateway(g ai.Gateway) Option {
	return func(e *Engine) {
		if g != nil {
			e.gateway = g
		}
	}
}

// WithCache sets the result cache.
func WithCache(c ResultCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// WithFrameExtractor enables video analysis and frame extraction.
func WithFrameExtractor(x FrameExtractor) Option {
	return func(e *Engine) { e.frames = x }
}

// WithFallback toggles the keyword classifier as a substitute for failed provider calls.
func WithFallback(enabled bool) Option {
	return func(e *Engine) { e.fallbackEnabled = enabled }
}

// WithMinConfidence sets the provider confidence below which the keyword classifier
// may refine the answer.
func WithMinConfidence(v float64) Option {
	return func(e *Engine) {
		if v >= 0 && v <= 1 {
			e.minConfidence = v
		}
	}
}

// WithFusion sets how per-frame verdicts are combined.
func WithFusion(f Fusion) Option {
	return func(e *Engine) {
		if f.Valid() {
			e.fusion = f
		}
	}
}

// WithDefaultFrames sets the frame count used when a video request names none.
func WithDefaultFrames(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.defaultFrames = n
		}
	}
}

// WithClock overrides result timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}
