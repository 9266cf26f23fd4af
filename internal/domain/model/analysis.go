package model

import "time"

// AnalysisResult is the caller-visible outcome of one analysis.
// Details keys used across the service: fallback, source, matched_keywords, signal,
// secondary_type, priority, category, frame_count, frames, agreeing_frames, fusion,
// labels, regions, model, low_confidence_refined.
type AnalysisResult struct {
	EventType   string         `json:"event_type"`
	Description string         `json:"description"`
	Confidence  float64        `json:"confidence"`
	Details     map[string]any `json:"details"`
	Timestamp   time.Time      `json:"timestamp"`
}

// IsFallback reports whether the keyword classifier produced the result.
func (r AnalysisResult) IsFallback() bool {
	v, _ := r.Details["fallback"].(bool)
	return v
}

// Region is a labelled area reported by a provider, box as [x, y, w, h] in relative units.
type Region struct {
	Label      string    `json:"label"`
	Box        []float64 `json:"box,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
}

// RawAnalysis is what an AI provider returned before it is mapped onto the taxonomy.
type RawAnalysis struct {
	EventType   string
	Description string
	Confidence  float64
	Labels      []string
	Regions     []Region
	Model       string
	Text        string
}

// Classification is the keyword classifier's verdict over a text signal.
type Classification struct {
	PrimaryType     string   `json:"primary_type"`
	SecondaryType   string   `json:"secondary_type,omitempty"`
	Confidence      float64  `json:"confidence"`
	Priority        Priority `json:"priority"`
	Category        string   `json:"category"`
	MatchedKeywords []string `json:"matched_keywords"`
}

// Priority orders how urgently a municipal issue needs attention.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Valid reports whether p is one of the known priorities.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
