// Package taxonomy holds the closed set of municipal event types and the keywords
// used to recognise them.
package taxonomy

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/okian/civiclens/internal/domain/model"
)

// OtherType is the designated catch-all event type.
const OtherType = "其他问题"

// Entry describes one event type.
type Entry struct {
	Type     string         `json:"type" yaml:"type"`
	Keywords []string       `json:"keywords" yaml:"keywords"`
	Priority model.Priority `json:"priority" yaml:"priority"`
	Category string         `json:"category" yaml:"category"`
}

// Taxonomy is immutable after construction and safe for concurrent reads.
type Taxonomy struct {
	entries map[string]Entry
	types   []string
}

var defaultEntries = []Entry{
	{Type: "道路损坏", Priority: model.PriorityHigh, Category: "道路交通",
		Keywords: []string{"坑洼", "裂缝", "路面破损", "塌陷", "pothole", "crack", "road damage", "sinkhole"}},
	{Type: "垃圾堆积", Priority: model.PriorityMedium, Category: "环境卫生",
		Keywords: []string{"垃圾", "废弃物", "脏乱", "异味", "garbage", "trash", "litter", "rubbish"}},
	{Type: "路灯故障", Priority: model.PriorityMedium, Category: "市政设施",
		Keywords: []string{"路灯", "灯不亮", "照明", "闪烁", "streetlight", "street light", "lamp post"}},
	{Type: "井盖问题", Priority: model.PriorityUrgent, Category: "市政设施",
		Keywords: []string{"井盖", "窨井", "下水道口", "manhole", "sewer cover", "drain cover"}},
	{Type: "违章停车", Priority: model.PriorityLow, Category: "道路交通",
		Keywords: []string{"违停", "乱停", "占道停车", "illegal parking", "double parked", "parked on sidewalk"}},
	{Type: "绿化破坏", Priority: model.PriorityLow, Category: "园林绿化",
		Keywords: []string{"树木", "草坪", "绿化", "倒伏", "fallen tree", "broken branch", "damaged lawn"}},
	{Type: "积水内涝", Priority: model.PriorityHigh, Category: "市政设施",
		Keywords: []string{"积水", "内涝", "淹水", "排水不畅", "flood", "waterlogging", "standing water"}},
	{Type: "违章建筑", Priority: model.PriorityMedium, Category: "城市管理",
		Keywords: []string{"违建", "私搭乱建", "违章建筑", "illegal construction", "unauthorized structure"}},
	{Type: OtherType, Priority: model.PriorityLow, Category: "其他", Keywords: nil},
}

// Default returns the built-in taxonomy.
func Default() *Taxonomy {
	t, err := New(defaultEntries)
	if err != nil {
		panic(err)
	}
	return t
}

// New validates entries and builds a taxonomy. The other type is added when missing.
func New(entries []Entry) (*Taxonomy, error) {
	t := &Taxonomy{entries: make(map[string]Entry, len(entries)+1)}
	for _, e := range entries {
		e.Type = strings.TrimSpace(e.Type)
		if e.Type == "" {
			return nil, fmt.Errorf("%w: entry without type", ErrInvalidTaxonomy)
		}
		if _, dup := t.entries[e.Type]; dup {
			return nil, fmt.Errorf("%w: duplicate type %q", ErrInvalidTaxonomy, e.Type)
		}
		if e.Priority == "" {
			e.Priority = model.PriorityLow
		}
		if !e.Priority.Valid() {
			return nil, fmt.Errorf("%w: type %q has priority %q", ErrInvalidTaxonomy, e.Type, e.Priority)
		}
		kws := make([]string, 0, len(e.Keywords))
		for _, k := range e.Keywords {
			if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
				kws = append(kws, k)
			}
		}
		e.Keywords = kws
		t.entries[e.Type] = e
	}
	if _, ok := t.entries[OtherType]; !ok {
		t.entries[OtherType] = Entry{Type: OtherType, Priority: model.PriorityLow, Category: "其他"}
	}
	for name := range t.entries {
		t.types = append(t.types, name)
	}
	sort.Strings(t.types)
	return t, nil
}

type fileFormat struct {
	EventTypes []Entry `yaml:"event_types"`
}

// LoadFile reads a YAML taxonomy:
//
//	event_types:
//	  - type: 道路损坏
//	    priority: HIGH
//	    category: 道路交通
//	    keywords: [坑洼, pothole]
func LoadFile(path string) (*Taxonomy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTaxonomy, err)
	}
	var f fileFormat
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTaxonomy, path, err)
	}
	if len(f.EventTypes) == 0 {
		return nil, fmt.Errorf("%w: %s has no event_types", ErrInvalidTaxonomy, path)
	}
	return New(f.EventTypes)
}

// Has reports whether name is a known type.
func (t *Taxonomy) Has(name string) bool {
	_, ok := t.entries[name]
	return ok
}

// Get returns the entry for name.
func (t *Taxonomy) Get(name string) (Entry, bool) {
	e, ok := t.entries[name]
	if !ok {
		return Entry{}, false
	}
	e.Keywords = append([]string(nil), e.Keywords...)
	return e, true
}

// Other returns the catch-all entry.
func (t *Taxonomy) Other() Entry {
	e, _ := t.Get(OtherType)
	return e
}

// Types returns the type names sorted lexicographically.
func (t *Taxonomy) Types() []string {
	return append([]string(nil), t.types...)
}

// Entries returns copies of all entries in Types order.
func (t *Taxonomy) Entries() []Entry {
	out := make([]Entry, 0, len(t.types))
	for _, name := range t.types {
		e, _ := t.Get(name)
		out = append(out, e)
	}
	return out
}
