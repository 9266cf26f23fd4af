package taxonomy

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/civiclens/internal/domain/model"
)

func TestDefaultTaxonomy(t *testing.T) {
	Convey("Given the built-in taxonomy", t, func() {
		tx := Default()

		Convey("It contains the other type with no keywords", func() {
			other := tx.Other()
			So(other.Type, ShouldEqual, OtherType)
			So(other.Priority, ShouldEqual, model.PriorityLow)
			So(other.Keywords, ShouldBeEmpty)
		})

		Convey("Road damage recognises potholes in both languages", func() {
			e, ok := tx.Get("道路损坏")
			So(ok, ShouldBeTrue)
			So(e.Keywords, ShouldContain, "pothole")
			So(e.Keywords, ShouldContain, "坑洼")
			So(e.Priority, ShouldEqual, model.PriorityHigh)
		})

		Convey("Types are sorted and every entry is reachable", func() {
			types := tx.Types()
			So(sort.StringsAreSorted(types), ShouldBeTrue)
			So(len(tx.Entries()), ShouldEqual, len(types))
			for _, name := range types {
				So(tx.Has(name), ShouldBeTrue)
			}
		})

		Convey("Entries do not exceed nine keywords", func() {
			for _, e := range tx.Entries() {
				So(len(e.Keywords), ShouldBeLessThanOrEqualTo, 9)
			}
		})

		Convey("Returned entries cannot mutate the table", func() {
			e, _ := tx.Get("道路损坏")
			e.Keywords[0] = "mutated"
			again, _ := tx.Get("道路损坏")
			So(again.Keywords[0], ShouldNotEqual, "mutated")
		})
	})
}

func TestNewTaxonomy(t *testing.T) {
	Convey("Given custom entries", t, func() {
		Convey("Keywords are normalised and the other type is added", func() {
			tx, err := New([]Entry{{Type: "Graffiti", Keywords: []string{" Spray ", ""}, Priority: model.PriorityMedium}})
			So(err, ShouldBeNil)
			e, _ := tx.Get("Graffiti")
			So(e.Keywords, ShouldResemble, []string{"spray"})
			So(tx.Has(OtherType), ShouldBeTrue)
		})

		Convey("Duplicates, blank types and bad priorities are rejected", func() {
			_, err := New([]Entry{{Type: "a"}, {Type: "a"}})
			So(errors.Is(err, ErrInvalidTaxonomy), ShouldBeTrue)
			_, err = New([]Entry{{Type: " "}})
			So(errors.Is(err, ErrInvalidTaxonomy), ShouldBeTrue)
			_, err = New([]Entry{{Type: "a", Priority: "CRITICAL"}})
			So(errors.Is(err, ErrInvalidTaxonomy), ShouldBeTrue)
		})
	})
}

func TestLoadFile(t *testing.T) {
	Convey("Given a YAML taxonomy file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "taxonomy.yaml")
		So(os.WriteFile(path, []byte(`
event_types:
  - type: 道路损坏
    priority: HIGH
    category: 道路交通
    keywords: [坑洼, pothole]
  - type: 涂鸦
    priority: LOW
    keywords: [graffiti]
`), 0o600), ShouldBeNil)

		tx, err := LoadFile(path)
		So(err, ShouldBeNil)
		So(tx.Types(), ShouldResemble, []string{"其他问题", "涂鸦", "道路损坏"})

		Convey("Missing and empty files fail", func() {
			_, err := LoadFile(filepath.Join(dir, "missing.yaml"))
			So(errors.Is(err, ErrInvalidTaxonomy), ShouldBeTrue)

			empty := filepath.Join(dir, "empty.yaml")
			So(os.WriteFile(empty, []byte("event_types: []\n"), 0o600), ShouldBeNil)
			_, err = LoadFile(empty)
			So(errors.Is(err, ErrInvalidTaxonomy), ShouldBeTrue)
		})
	})
}
