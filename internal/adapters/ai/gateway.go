// Package ai defines the port to vision-language providers.
package ai

import (
	"context"

	"github.com/okian/civiclens/internal/domain/model"
)

// Gateway analyzes one image per call. Implementations make at most one outbound call
// per Analyze and never retry; failures come back as model.ErrProvider kinds.
type Gateway interface {
	Analyze(ctx context.Context, media model.MediaRef) (model.RawAnalysis, error)
	// IsAvailable must be cheap and side-effect free.
	IsAvailable() bool
	Name() string
}

// Disabled is a Gateway that is never available.
type Disabled struct{}

func (Disabled) Analyze(context.Context, model.MediaRef) (model.RawAnalysis, error) {
	return model.RawAnalysis{}, model.NewError("analyze", model.ErrProvider, ErrNotConfigured)
}

func (Disabled) IsAvailable() bool { return false }

func (Disabled) Name() string { return "none" }
