package analysis

import "errors"

var (
	ErrFramesDisabled   = errors.New("frame extraction is not configured")
	ErrFallbackDisabled = errors.New("ai provider failed and fallback is disabled")
	ErrEmptyText        = errors.New("text is required")
)
