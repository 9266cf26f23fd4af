package analysis

import (
	"fmt"
	"sort"
	"strings"

	"github.com/okian/civiclens/internal/domain/model"
)

// Fusion selects how per-frame results become one video verdict.
type Fusion string

const (
	// FuseMajority picks the most frequent event type, ties to the smallest type name,
	// and averages confidence over the agreeing frames.
	FuseMajority Fusion = "majority"
	// FuseFirst trusts the earliest frame.
	FuseFirst Fusion = "first"
	// FuseHighest trusts the most confident frame.
	FuseHighest Fusion = "highest"
)

// ParseFusion accepts a configured strategy name.
func ParseFusion(s string) (Fusion, error) {
	f := Fusion(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", model.NewError("parse fusion", model.ErrValidation, fmt.Errorf("unknown video fusion %q", s))
	}
	return f, nil
}

// Valid reports whether f is a known strategy.
func (f Fusion) Valid() bool {
	switch f {
	case FuseMajority, FuseFirst, FuseHighest:
		return true
	}
	return false
}

type frameVerdict struct {
	frame  model.Frame
	result model.AnalysisResult
}

type fused struct {
	eventType   string
	confidence  float64
	description string
	agreeing    []int
}

// fuse expects at least one verdict, ordered by frame index.
func fuse(strategy Fusion, verdicts []frameVerdict) fused {
	switch strategy {
	case FuseFirst:
		first := verdicts[0].result
		return fused{
			eventType:   first.EventType,
			confidence:  first.Confidence,
			description: first.Description,
			agreeing:    agreeing(verdicts, first.EventType),
		}
	case FuseHighest:
		best := verdicts[0].result
		for _, v := range verdicts[1:] {
			if v.result.Confidence > best.Confidence {
				best = v.result
			}
		}
		return fused{
			eventType:   best.EventType,
			confidence:  best.Confidence,
			description: best.Description,
			agreeing:    agreeing(verdicts, best.EventType),
		}
	}

	counts := make(map[string]int)
	for _, v := range verdicts {
		counts[v.result.EventType]++
	}
	candidates := make([]string, 0, len(counts))
	for t := range counts {
		candidates = append(candidates, t)
	}
	sort.Slice(candidates, func(i, j int) bool {
		if counts[candidates[i]] != counts[candidates[j]] {
			return counts[candidates[i]] > counts[candidates[j]]
		}
		return candidates[i] < candidates[j]
	})
	winner := candidates[0]

	out := fused{eventType: winner, agreeing: agreeing(verdicts, winner)}
	var sum, top float64
	for _, v := range verdicts {
		if v.result.EventType != winner {
			continue
		}
		sum += v.result.Confidence
		if v.result.Confidence > top || out.description == "" {
			top = v.result.Confidence
			out.description = v.result.Description
		}
	}
	out.confidence = sum / float64(len(out.agreeing))
	return out
}

func agreeing(verdicts []frameVerdict, eventType string) []int {
	out := make([]int, 0, len(verdicts))
	for _, v := range verdicts {
		if v.result.EventType == eventType {
			out = append(out, v.frame.Index)
		}
	}
	return out
}
