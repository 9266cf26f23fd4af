// Package analysis composes the result cache, the AI gateway and the keyword
// classifier into image and video analysis.
//
// Every analysis of valid input yields a result. Provider trouble is absorbed by
// the keyword classifier. Malformed input, a disabled fallback, a caller that gave up
// mid-call, or storage and cache being down together surface as errors.
package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/civiclens/internal/adapters/ai"
	"github.com/okian/civiclens/internal/adapters/media"
	"github.com/okian/civiclens/internal/domain/fallback"
	"github.com/okian/civiclens/internal/domain/fingerprint"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/taxonomy"
	"github.com/okian/civiclens/internal/domain/types"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/okian/civiclens/pkg/metrics"
)

// Fingerprint operations.
const (
	OpAnalyzeImage = "analyze_image"
	opVideoFormat  = "analyze_video_f%d"
)

// Result sources reported to metrics.
const (
	sourceCache    = "cache"
	sourceProvider = "ai"
	sourceFallback = "fallback"
)

// Fallback reasons.
const (
	reasonUnavailable = "provider_unavailable"
	reasonError       = "provider_error"
	reasonNoFrames    = "no_frames"
)

// ResultCache stores results by fingerprint.
type ResultCache interface {
	Get(ctx context.Context, fingerprint string) (model.AnalysisResult, bool, error)
	Put(ctx context.Context, fingerprint string, result model.AnalysisResult) error
	Enabled() bool
}

// FrameExtractor samples and persists video frames.
type FrameExtractor interface {
	Extract(ctx context.Context, videoURL string, maxFrames int) ([]model.Frame, error)
}

// Engine runs analyses. It is safe for concurrent use.
type Engine struct {
	tax        *taxonomy.Taxonomy
	classifier *fallback.Classifier
	gateway    ai.Gateway
	cache      ResultCache
	frames     FrameExtractor

	fallbackEnabled bool
	minConfidence   float64
	fusion          Fusion
	defaultFrames   int

	now func() time.Time
	log logger.Logger
}

// New builds an engine over a taxonomy.
func New(tax *taxonomy.Taxonomy, opts ...Option) *Engine {
	e := &Engine{
		tax:             tax,
		gateway:         ai.Disabled{},
		cache:           noCache{},
		fallbackEnabled: true,
		minConfidence:   0.3,
		fusion:          FuseMajority,
		defaultFrames:   5,
		now:             time.Now,
		log:             logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.classifier = fallback.New(tax, fallback.WithClock(e.now))
	return e
}

// AnalyzeImage classifies the image at url.
func (e *Engine) AnalyzeImage(ctx context.Context, url string) (model.AnalysisResult, error) {
	if err := model.ValidateMediaURL(url); err != nil {
		return model.AnalysisResult{}, err
	}
	start := time.Now()
	fp := fingerprint.Compute(url, model.MediaImage, OpAnalyzeImage)
	log := e.log.With(logger.String("fingerprint", short(fp)), logger.String("media_type", string(model.MediaImage)))

	if hit, ok, _ := e.lookup(ctx, log, fp); ok {
		metrics.RecordAnalysis(string(model.MediaImage), sourceCache, time.Since(start))
		return hit, nil
	}

	res, err := e.analyzeOne(ctx, log, model.MediaRef{URL: url, Type: model.MediaImage}, fallback.SignalFromURL(url))
	if err != nil {
		metrics.RecordAnalysisFailure(model.KindName(err))
		return model.AnalysisResult{}, err
	}
	res = e.finish(ctx, log, fp, res)
	metrics.RecordAnalysis(string(model.MediaImage), sourceOf(res), time.Since(start))
	return res, nil
}

// AnalyzeVideo samples up to maxFrames frames, analyzes each and fuses the verdicts.
// A zero maxFrames uses the configured default.
func (e *Engine) AnalyzeVideo(ctx context.Context, url string, maxFrames int) (model.AnalysisResult, error) {
	if err := model.ValidateMediaURL(url); err != nil {
		return model.AnalysisResult{}, err
	}
	if maxFrames == 0 {
		maxFrames = e.defaultFrames
	}
	if err := model.ValidateMaxFrames(maxFrames); err != nil {
		return model.AnalysisResult{}, err
	}
	start := time.Now()
	fp := fingerprint.Compute(url, model.MediaVideo, fmt.Sprintf(opVideoFormat, maxFrames))
	log := e.log.With(logger.String("fingerprint", short(fp)), logger.String("media_type", string(model.MediaVideo)))

	hit, ok, cacheErr := e.lookup(ctx, log, fp)
	if ok {
		metrics.RecordAnalysis(string(model.MediaVideo), sourceCache, time.Since(start))
		return hit, nil
	}

	res, err := e.video(ctx, log, url, maxFrames, cacheErr)
	if err != nil {
		metrics.RecordAnalysisFailure(model.KindName(err))
		return model.AnalysisResult{}, err
	}
	res = e.finish(ctx, log, fp, res)
	metrics.RecordAnalysis(string(model.MediaVideo), sourceOf(res), time.Since(start))
	return res, nil
}

func (e *Engine) video(ctx context.Context, log logger.Logger, url string, maxFrames int, cacheErr error) (model.AnalysisResult, error) {
	signal := fallback.SignalFromURL(url)
	if !e.gateway.IsAvailable() {
		return e.fallback(log, signal, reasonUnavailable)
	}
	if e.frames == nil {
		return e.fallback(log, signal, reasonNoFrames)
	}

	frames, err := e.frames.Extract(ctx, url, maxFrames)
	if err != nil {
		if cerr := abandoned(ctx); cerr != nil {
			return model.AnalysisResult{}, cerr
		}
		switch {
		case errors.Is(err, model.ErrValidation):
			return model.AnalysisResult{}, err
		case errors.Is(err, model.ErrStorage) && cacheErr != nil:
			log.Error(ctx, "cache and frame storage both unavailable", logger.String("stage", "frames"), logger.Error(err))
			return model.AnalysisResult{}, model.NewError("analyze video", model.ErrStorage, errors.Join(cacheErr, err))
		}
		log.Warn(ctx, "no frames extracted, using keyword classifier", logger.String("stage", "frames"), logger.Error(err))
		return e.fallback(log, signal, reasonNoFrames)
	}

	verdicts := make([]frameVerdict, 0, len(frames))
	var lastErr error
	for _, f := range frames {
		r, err := e.analyzeOne(ctx, log.With(logger.Int("frame", f.Index)), model.MediaRef{URL: f.URL, Type: model.MediaImage}, signal)
		if err != nil {
			if cerr := abandoned(ctx); cerr != nil {
				return model.AnalysisResult{}, cerr
			}
			lastErr = err
			continue
		}
		verdicts = append(verdicts, frameVerdict{frame: f, result: r})
	}
	if len(verdicts) == 0 {
		return model.AnalysisResult{}, lastErr
	}
	return e.fused(verdicts), nil
}

func (e *Engine) fused(verdicts []frameVerdict) model.AnalysisResult {
	f := fuse(e.fusion, verdicts)
	entry, _ := e.tax.Get(f.eventType)

	allFallback := true
	perFrame := make([]map[string]any, 0, len(verdicts))
	for _, v := range verdicts {
		allFallback = allFallback && v.result.IsFallback()
		perFrame = append(perFrame, map[string]any{
			"index":      v.frame.Index,
			"timestamp":  v.frame.Seconds,
			"url":        v.frame.URL,
			"event_type": v.result.EventType,
			"confidence": v.result.Confidence,
		})
	}
	return model.AnalysisResult{
		EventType:   f.eventType,
		Description: f.description,
		Confidence:  f.confidence,
		Details: map[string]any{
			"fallback":        allFallback,
			"source":          e.gateway.Name(),
			"fusion":          string(e.fusion),
			"frame_count":     len(verdicts),
			"frames":          perFrame,
			"agreeing_frames": f.agreeing,
			"priority":        string(entry.Priority),
			"category":        entry.Category,
		},
		Timestamp: e.now(),
	}
}

// analyzeOne asks the provider about one image and falls back on any failure other
// than the caller giving up.
func (e *Engine) analyzeOne(ctx context.Context, log logger.Logger, ref model.MediaRef, signal string) (model.AnalysisResult, error) {
	if !e.gateway.IsAvailable() {
		return e.fallback(log, signal, reasonUnavailable)
	}
	raw, err := e.gateway.Analyze(ctx, ref)
	if err != nil {
		if cerr := abandoned(ctx); cerr != nil {
			return model.AnalysisResult{}, cerr
		}
		log.Warn(ctx, "provider call failed, using keyword classifier", logger.String("stage", "provider"), logger.Error(err))
		return e.fallback(log, signal, reasonError)
	}
	return e.fromRaw(raw), nil
}

// abandoned reports a done caller context as an unavailable error. A verdict built
// after the caller left must not reach the cache.
func abandoned(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return model.NewError("analyze", model.ErrUnavailable, err)
	}
	return nil
}

func (e *Engine) fallback(log logger.Logger, signal, reason string) (model.AnalysisResult, error) {
	if !e.fallbackEnabled {
		return model.AnalysisResult{}, model.NewError("analyze", model.ErrUnavailable, fmt.Errorf("%w (%s)", ErrFallbackDisabled, reason))
	}
	metrics.RecordFallback(reason)
	log.Debug(context.Background(), "keyword fallback", logger.String("reason", reason), logger.String("signal", signal))
	return e.classifier.Result(signal, reason), nil
}

// fromRaw maps a provider answer onto the taxonomy.
func (e *Engine) fromRaw(raw model.RawAnalysis) model.AnalysisResult {
	conf := clamp01(raw.Confidence)
	eventType := raw.EventType
	details := map[string]any{
		"fallback": false,
		"source":   e.gateway.Name(),
	}
	if raw.Model != "" {
		details["model"] = raw.Model
	}
	if len(raw.Labels) > 0 {
		details["labels"] = raw.Labels
	}
	if len(raw.Regions) > 0 {
		details["regions"] = raw.Regions
	}
	if raw.Text != "" {
		details["raw"] = raw.Text
	}

	text := strings.TrimSpace(raw.Description + " " + strings.Join(raw.Labels, " "))
	switch {
	case !e.tax.Has(eventType):
		cl := e.classifier.Classify(text)
		details["provider_event_type"] = raw.EventType
		eventType = cl.PrimaryType
	case conf < e.minConfidence:
		if cl := e.classifier.Classify(text); cl.PrimaryType != taxonomy.OtherType {
			details["provider_event_type"] = raw.EventType
			details["provider_confidence"] = conf
			details["low_confidence_refined"] = true
			details["matched_keywords"] = cl.MatchedKeywords
			eventType = cl.PrimaryType
			conf = cl.Confidence
		}
	}

	entry, _ := e.tax.Get(eventType)
	details["priority"] = string(entry.Priority)
	details["category"] = entry.Category
	return model.AnalysisResult{
		EventType:   eventType,
		Description: raw.Description,
		Confidence:  conf,
		Details:     details,
		Timestamp:   e.now(),
	}
}

// lookup treats cache failures as misses and hands the error back for callers that
// need to know whether the cache was reachable.
func (e *Engine) lookup(ctx context.Context, log logger.Logger, fp string) (model.AnalysisResult, bool, error) {
	res, ok, err := e.cache.Get(ctx, fp)
	if err != nil {
		log.Warn(ctx, "cache lookup failed, treating as miss", logger.String("stage", "cache"), logger.Error(err))
		return model.AnalysisResult{}, false, err
	}
	return res, ok, nil
}

// finish normalises details to their JSON shape, so a fresh result and a later cache
// hit marshal identically, and stores the result.
func (e *Engine) finish(ctx context.Context, log logger.Logger, fp string, res model.AnalysisResult) model.AnalysisResult {
	res.Details = normalise(res.Details)
	// A completed analysis is kept even if the caller has since given up.
	if err := e.cache.Put(context.WithoutCancel(ctx), fp, res); err != nil {
		log.Warn(ctx, "cache store failed", logger.String("stage", "cache"), logger.Error(err))
	}
	return res
}

// ExtractFrames samples and stores up to maxFrames frames. Fewer, or none, may come
// back when frames fail individually.
func (e *Engine) ExtractFrames(ctx context.Context, url string, maxFrames int) ([]model.Frame, error) {
	if err := model.ValidateMediaURL(url); err != nil {
		return nil, err
	}
	if err := model.ValidateMaxFrames(maxFrames); err != nil {
		return nil, err
	}
	if e.frames == nil {
		return nil, model.NewError("extract frames", model.ErrUnavailable, ErrFramesDisabled)
	}
	frames, err := e.frames.Extract(ctx, url, maxFrames)
	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, model.ErrValidation), errors.Is(err, model.ErrStorage):
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	}
	if !errors.Is(err, media.ErrNoFrames) {
		e.log.Warn(ctx, "frame extraction failed", logger.String("stage", "frames"), logger.Error(err))
	}
	return []model.Frame{}, nil
}

// ClassifyEvent runs the keyword classifier over free text, typically a description
// an earlier analysis produced.
func (e *Engine) ClassifyEvent(text string) (model.Classification, error) {
	if strings.TrimSpace(text) == "" {
		return model.Classification{}, model.NewError("classify", model.ErrValidation, ErrEmptyText)
	}
	return e.classifier.Classify(text), nil
}

// ListEventTypes dumps the taxonomy in type order.
func (e *Engine) ListEventTypes() []types.EventType {
	entries := e.tax.Entries()
	out := make([]types.EventType, 0, len(entries))
	for _, en := range entries {
		out = append(out, types.EventType{
			Type:     en.Type,
			Keywords: en.Keywords,
			Priority: string(en.Priority),
			Category: en.Category,
		})
	}
	return out
}

// Status reports provider availability and the analysis configuration.
func (e *Engine) Status() types.ServiceStatus {
	available := e.gateway.IsAvailable()
	metrics.UpdateProviderAvailable(available)
	return types.ServiceStatus{
		AIAvailable:     available,
		Provider:        e.gateway.Name(),
		FallbackEnabled: e.fallbackEnabled,
		CacheEnabled:    e.cache.Enabled(),
		FrameExtraction: e.frames != nil,
		VideoFusion:     string(e.fusion),
		EventTypes:      len(e.tax.Types()),
	}
}

func sourceOf(r model.AnalysisResult) string {
	if r.IsFallback() {
		return sourceFallback
	}
	return sourceProvider
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func normalise(details map[string]any) map[string]any {
	raw, err := json.Marshal(details)
	if err != nil {
		return details
	}
	out := make(map[string]any, len(details))
	if err := json.Unmarshal(raw, &out); err != nil {
		return details
	}
	return out
}

func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}

type noCache struct{}

func (noCache) Get(context.Context, string) (model.AnalysisResult, bool, error) {
	return model.AnalysisResult{}, false, nil
}

func (noCache) Put(context.Context, string, model.AnalysisResult) error { return nil }

func (noCache) Enabled() bool { return false }
