// Package media extracts still frames from videos with ffprobe and ffmpeg.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/okian/civiclens/internal/adapters/storage"
	"github.com/okian/civiclens/internal/domain/fingerprint"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/pkg/logger"
	"github.com/okian/civiclens/pkg/metrics"
)

// FramePrefix is where frames live in the object store.
const FramePrefix = "frames/"

// Runner executes an external command and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs binaries with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, fmt.Errorf("%s: %w: %s", name, err, msg)
	}
	return stdout.Bytes(), nil
}

// Extractor implements frame extraction.
type Extractor struct {
	store        storage.ObjectStore
	runner       Runner
	ffmpeg       string
	ffprobe      string
	frameTimeout time.Duration
	log          logger.Logger
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithRunner swaps the command runner.
func WithRunner(r Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

// WithBinaries sets the ffmpeg and ffprobe paths.
func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(e *Extractor) {
		if ffmpeg != "" {
			e.ffmpeg = ffmpeg
		}
		if ffprobe != "" {
			e.ffprobe = ffprobe
		}
	}
}

// WithFrameTimeout bounds each probe and grab.
func WithFrameTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.frameTimeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.log = l
		}
	}
}

// New creates an Extractor persisting frames to store.
func New(store storage.ObjectStore, opts ...Option) *Extractor {
	e := &Extractor{
		store:        store,
		runner:       ExecRunner{},
		ffmpeg:       "ffmpeg",
		ffprobe:      "ffprobe",
		frameTimeout: 20 * time.Second,
		log:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Timestamps returns n evenly spaced offsets starting at zero: i*duration/n.
func Timestamps(duration time.Duration, n int) []time.Duration {
	out := make([]time.Duration, n)
	for i := range out {
		out[i] = time.Duration(int64(duration) * int64(i) / int64(n))
	}
	return out
}

// FrameKey is the object key of frame index of the given video.
func FrameKey(videoURL string, index int, ts time.Duration) string {
	fp := fingerprint.Compute(videoURL, model.MediaVideo, "frames")
	return fmt.Sprintf("%s%s/%02d_%d.jpg", FramePrefix, fp, index, ts.Milliseconds())
}

// Duration probes the container duration.
func (e *Extractor) Duration(ctx context.Context, videoURL string) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, e.frameTimeout)
	defer cancel()
	out, err := e.runner.Run(ctx, e.ffprobe,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		videoURL)
	if err != nil {
		return 0, err
	}
	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil || secs <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrNoDuration, strings.TrimSpace(string(out)))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (e *Extractor) grab(ctx context.Context, videoURL string, ts time.Duration) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, e.frameTimeout)
	defer cancel()
	out, err := e.runner.Run(ctx, e.ffmpeg,
		"-v", "error",
		"-ss", fmt.Sprintf("%.3f", ts.Seconds()),
		"-i", videoURL,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"pipe:1")
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmptyFrame
	}
	return out, nil
}

// Extract returns up to maxFrames frames in timestamp order. Frames that fail are
// skipped. When none succeed only because storage failed, the error carries
// model.ErrStorage.
func (e *Extractor) Extract(ctx context.Context, videoURL string, maxFrames int) ([]model.Frame, error) {
	if err := model.ValidateMediaURL(videoURL); err != nil {
		return nil, err
	}
	if err := model.ValidateMaxFrames(maxFrames); err != nil {
		return nil, err
	}

	duration, err := e.Duration(ctx, videoURL)
	if err != nil {
		e.log.Warn(ctx, "video probe failed", logger.String("stage", "frames"), logger.Error(err))
		metrics.RecordFrames(0, maxFrames)
		return nil, fmt.Errorf("probe: %w", err)
	}

	frames := make([]model.Frame, 0, maxFrames)
	var storageErr error
	grabbed := 0
	for i, ts := range Timestamps(duration, maxFrames) {
		if ctx.Err() != nil {
			break
		}
		data, err := e.grab(ctx, videoURL, ts)
		if err != nil {
			e.log.Warn(ctx, "frame grab failed", logger.Int("index", i), logger.Duration("at", ts), logger.Error(err))
			continue
		}
		grabbed++
		key := FrameKey(videoURL, i, ts)
		url, err := e.store.Put(ctx, key, data, "image/jpeg")
		if err != nil {
			storageErr = err
			e.log.Warn(ctx, "frame persist failed", logger.String("key", key), logger.Error(err))
			continue
		}
		frames = append(frames, model.Frame{Index: i, Timestamp: ts, Seconds: ts.Seconds(), Key: key, URL: url})
	}
	metrics.RecordFrames(len(frames), maxFrames-len(frames))

	if len(frames) == 0 {
		if grabbed > 0 && storageErr != nil {
			return nil, model.NewError("persist frames", model.ErrStorage, storageErr)
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, ErrNoFrames
	}
	return frames, nil
}

// Purge deletes every stored frame and reports how many objects were removed.
func (e *Extractor) Purge(ctx context.Context) (int, error) {
	keys, err := e.store.List(ctx, FramePrefix)
	if err != nil {
		return 0, err
	}
	return e.store.Delete(ctx, keys...)
}
