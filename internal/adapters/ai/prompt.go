package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/okian/civiclens/internal/domain/model"
)

// SystemPrompt directs the provider to answer with one JSON object naming one of types.
func SystemPrompt(types []string) string {
	return `You inspect photos submitted by citizens to a city service desk and identify the municipal issue shown.
Respond with one JSON object only, no markdown, no commentary.

Rules:
- event_type must be exactly one of: ` + strings.Join(types, ", ") + `.
- Use "其他问题" when nothing in the list fits.
- description is one or two sentences in Chinese describing what is visible.
- confidence is a number between 0 and 1.
- regions lists areas showing the issue with box [x, y, w, h] in relative units (0..1).

Schema:
{
  "event_type": "<string>",
  "description": "<string>",
  "confidence": 0.0,
  "labels": ["<string>"],
  "regions": [{"label": "<string>", "box": [0, 0, 0, 0], "confidence": 0.0}]
}`
}

// UserPrompt is the text part accompanying the image.
func UserPrompt(media model.MediaRef) string {
	if media.Type == model.MediaVideo {
		return "This image is a frame from a citizen's video report. Classify the issue and answer per the schema."
	}
	return "Classify the issue in this citizen's photo and answer per the schema."
}

type response struct {
	EventType   string         `json:"event_type"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Labels      []string       `json:"labels"`
	Regions     []model.Region `json:"regions"`
}

// ParseResponse decodes the provider's JSON answer. Code fences are tolerated.
func ParseResponse(content string) (model.RawAnalysis, error) {
	trimmed := strings.TrimSpace(content)
	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)

	var r response
	if err := json.Unmarshal([]byte(trimmed), &r); err != nil {
		return model.RawAnalysis{}, fmt.Errorf("%w: %w", ErrBadResponse, err)
	}
	if r.EventType == "" && r.Description == "" {
		return model.RawAnalysis{}, fmt.Errorf("%w: empty analysis", ErrBadResponse)
	}
	return model.RawAnalysis{
		EventType:   strings.TrimSpace(r.EventType),
		Description: strings.TrimSpace(r.Description),
		Confidence:  r.Confidence,
		Labels:      r.Labels,
		Regions:     r.Regions,
		Text:        content,
	}, nil
}
