// Package simulated provides an offline ai.Gateway for local runs and load tests. It
// imitates provider latency and answers deterministically from the media URL.
package simulated

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/civiclens/internal/domain/fallback"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/taxonomy"
	"github.com/okian/civiclens/pkg/metrics"
)

const (
	defaultMinLatency = 80 * time.Millisecond
	defaultMaxLatency = 150 * time.Millisecond
	defaultRandomSeed = 42
)

// ErrSimulatedFailure is returned for injected failures.
var ErrSimulatedFailure = errors.New("simulated provider failure")

// Option applies a configuration option to the Gateway.
type Option func(*Gateway)

// WithLatencyRange sets the simulated latency range.
func WithLatencyRange(minLatency, maxLatency time.Duration) Option {
	return func(g *Gateway) {
		if minLatency >= 0 && maxLatency > minLatency {
			g.minLatency = minLatency
			g.maxLatency = maxLatency
		}
	}
}

// WithFailureRate makes a fraction of calls fail with a provider error.
func WithFailureRate(rate float64) Option {
	return func(g *Gateway) {
		if rate >= 0 && rate <= 1 {
			g.failureRate = rate
		}
	}
}

// Gateway is the simulated provider.
type Gateway struct {
	classifier  *fallback.Classifier
	minLatency  time.Duration
	maxLatency  time.Duration
	failureRate float64

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a simulated gateway answering from tax.
func New(tax *taxonomy.Taxonomy, opts ...Option) *Gateway {
	g := &Gateway{
		classifier: fallback.New(tax),
		minLatency: defaultMinLatency,
		maxLatency: defaultMaxLatency,
		rng:        rand.New(rand.NewSource(defaultRandomSeed)), //nolint:gosec // reproducible simulation
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Gateway) Name() string { return "simulated" }

func (g *Gateway) IsAvailable() bool { return true }

func (g *Gateway) draw() (time.Duration, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	latency := g.minLatency
	if span := int64(g.maxLatency - g.minLatency); span > 0 {
		latency += time.Duration(g.rng.Int63n(span))
	}
	return latency, g.rng.Float64() < g.failureRate
}

// Analyze waits a simulated latency, then classifies the URL's file name.
func (g *Gateway) Analyze(ctx context.Context, media model.MediaRef) (model.RawAnalysis, error) {
	start := time.Now()
	latency, fail := g.draw()
	select {
	case <-ctx.Done():
		metrics.RecordProviderCall(g.Name(), "error", time.Since(start))
		return model.RawAnalysis{}, model.NewError("simulate", model.ErrProvider, ctx.Err())
	case <-time.After(latency):
	}
	if fail {
		metrics.RecordProviderCall(g.Name(), "error", time.Since(start))
		return model.RawAnalysis{}, model.NewError("simulate", model.ErrProvider, ErrSimulatedFailure)
	}
	metrics.RecordProviderCall(g.Name(), "ok", time.Since(start))

	cl := g.classifier.Classify(fallback.SignalFromURL(media.URL))
	return model.RawAnalysis{
		EventType:   cl.PrimaryType,
		Description: fmt.Sprintf("模拟识别结果: %s", cl.PrimaryType),
		Confidence:  confidenceFor(media.URL),
		Labels:      cl.MatchedKeywords,
		Model:       "simulated",
	}, nil
}

// confidenceFor maps a URL to a stable confidence in [0.6, 0.95).
func confidenceFor(url string) float64 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(url))
	return 0.6 + float64(h.Sum32()%35)/100
}
