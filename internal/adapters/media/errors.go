package media

import "errors"

var (
	// ErrNoDuration means ffprobe did not report a usable duration.
	ErrNoDuration = errors.New("video duration unavailable")
	// ErrEmptyFrame means ffmpeg produced no image bytes.
	ErrEmptyFrame = errors.New("empty frame")
	// ErrNoFrames means not a single frame could be extracted.
	ErrNoFrames = errors.New("no frames extracted")
)
