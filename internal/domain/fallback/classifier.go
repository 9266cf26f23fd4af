// Package fallback classifies municipal issues from text by keyword matching. It is
// deterministic and has no external dependencies, so it always yields a result.
package fallback

import (
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/taxonomy"
)

// Confidence bounds for keyword matches.
const (
	MinConfidence = 0.1
	MaxConfidence = 0.9
)

// Classifier scores text against a taxonomy.
type Classifier struct {
	tax *taxonomy.Taxonomy
	now func() time.Time
}

// Option configures a Classifier.
type Option func(*Classifier)

// WithClock overrides the timestamp source for built results.
func WithClock(now func() time.Time) Option {
	return func(c *Classifier) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a classifier over tax.
func New(tax *taxonomy.Taxonomy, opts ...Option) *Classifier {
	c := &Classifier{tax: tax, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type score struct {
	typ     string
	hits    int
	matched []string
	total   int
}

// Classify counts keyword occurrences per type. The highest count wins, ties go to
// the lexicographically smallest type name.
func (c *Classifier) Classify(text string) model.Classification {
	lowered := strings.ToLower(text)
	scores := make([]score, 0, len(c.tax.Types()))
	for _, e := range c.tax.Entries() {
		s := score{typ: e.Type, total: len(e.Keywords)}
		for _, kw := range e.Keywords {
			if n := strings.Count(lowered, kw); n > 0 {
				s.hits += n
				s.matched = append(s.matched, kw)
			}
		}
		if s.hits > 0 {
			scores = append(scores, s)
		}
	}

	if len(scores) == 0 {
		other := c.tax.Other()
		return model.Classification{
			PrimaryType:     other.Type,
			Confidence:      MinConfidence,
			Priority:        model.PriorityLow,
			Category:        other.Category,
			MatchedKeywords: []string{},
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].hits != scores[j].hits {
			return scores[i].hits > scores[j].hits
		}
		return scores[i].typ < scores[j].typ
	})

	best := scores[0]
	entry, _ := c.tax.Get(best.typ)
	out := model.Classification{
		PrimaryType:     best.typ,
		Confidence:      clamp(float64(len(best.matched)) / float64(best.total)),
		Priority:        entry.Priority,
		Category:        entry.Category,
		MatchedKeywords: best.matched,
	}
	if len(scores) > 1 {
		out.SecondaryType = scores[1].typ
	}
	return out
}

func clamp(v float64) float64 {
	if v < MinConfidence {
		return MinConfidence
	}
	if v > MaxConfidence {
		return MaxConfidence
	}
	return v
}

// Result builds an AnalysisResult from a text signal, marked as a fallback.
func (c *Classifier) Result(signal, reason string) model.AnalysisResult {
	cl := c.Classify(signal)
	details := map[string]any{
		"fallback":         true,
		"fallback_reason":  reason,
		"source":           "keyword",
		"matched_keywords": cl.MatchedKeywords,
		"signal":           signal,
		"priority":         string(cl.Priority),
		"category":         cl.Category,
	}
	if cl.SecondaryType != "" {
		details["secondary_type"] = cl.SecondaryType
	}
	return model.AnalysisResult{
		EventType:   cl.PrimaryType,
		Description: describe(cl),
		Confidence:  cl.Confidence,
		Details:     details,
		Timestamp:   c.now(),
	}
}

func describe(cl model.Classification) string {
	if len(cl.MatchedKeywords) == 0 {
		return "未能识别具体问题类型，已归类为" + cl.PrimaryType
	}
	return "根据关键词(" + strings.Join(cl.MatchedKeywords, ", ") + ")判定为" + cl.PrimaryType
}

// SignalFromURL turns a media URL into keyword-matchable text: the decoded file name
// without extension, separators replaced by spaces.
func SignalFromURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p, err := url.PathUnescape(u.EscapedPath())
	if err != nil {
		p = u.Path
	}
	base := path.Base(p)
	if base == "/" || base == "." {
		return ""
	}
	base = strings.TrimSuffix(base, path.Ext(base))
	return strings.Map(func(r rune) rune {
		switch r {
		case '_', '-', '.', '+':
			return ' '
		}
		return r
	}, base)
}
