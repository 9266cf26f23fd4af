// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// MediaType distinguishes still images from videos.
type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
)

// ParseMediaType accepts "image" or "video" in any case.
func ParseMediaType(s string) (MediaType, error) {
	switch MediaType(strings.ToLower(strings.TrimSpace(s))) {
	case MediaImage:
		return MediaImage, nil
	case MediaVideo:
		return MediaVideo, nil
	}
	return "", NewError("parse media type", ErrValidation, fmt.Errorf("unsupported media type %q", s))
}

// Frame limits for video analysis and extraction.
const (
	MinFrames = 1
	MaxFrames = 10
)

// MediaRef points an AI provider at something to look at. Inline Data wins over URL.
type MediaRef struct {
	URL      string
	Data     []byte
	MIMEType string
	Type     MediaType
}

// Frame is one still extracted from a video and persisted to object storage.
type Frame struct {
	Index     int           `json:"index"`
	Timestamp time.Duration `json:"-"`
	Seconds   float64       `json:"timestamp"`
	Key       string        `json:"key"`
	URL       string        `json:"url"`
}

// ValidateMediaURL checks that raw is an absolute http(s) URL.
func ValidateMediaURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return NewError("validate url", ErrValidation, fmt.Errorf("media url is required"))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return NewError("validate url", ErrValidation, fmt.Errorf("media url is malformed"))
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return NewError("validate url", ErrValidation, fmt.Errorf("media url must use http or https"))
	}
	if u.Host == "" {
		return NewError("validate url", ErrValidation, fmt.Errorf("media url must include a host"))
	}
	return nil
}

// ValidateMaxFrames checks the requested frame count.
func ValidateMaxFrames(n int) error {
	if n < MinFrames || n > MaxFrames {
		return NewError("validate frames", ErrValidation, fmt.Errorf("max_frames must be between %d and %d", MinFrames, MaxFrames))
	}
	return nil
}
