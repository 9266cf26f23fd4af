package ai

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/civiclens/internal/domain/model"
)

func TestParseResponse(t *testing.T) {
	Convey("Given provider answers", t, func() {
		Convey("A plain JSON object is decoded", func() {
			raw, err := ParseResponse(`{"event_type":"道路损坏","description":"路面坑洼","confidence":0.8,"labels":["pothole"],"regions":[{"label":"pothole","box":[0.1,0.2,0.3,0.4]}]}`)
			So(err, ShouldBeNil)
			So(raw.EventType, ShouldEqual, "道路损坏")
			So(raw.Confidence, ShouldEqual, 0.8)
			So(raw.Labels, ShouldResemble, []string{"pothole"})
			So(raw.Regions[0].Box, ShouldResemble, []float64{0.1, 0.2, 0.3, 0.4})
			So(raw.Text, ShouldNotBeEmpty)
		})

		Convey("Code fences are tolerated", func() {
			raw, err := ParseResponse("```json\n{\"event_type\":\"垃圾堆积\",\"description\":\"x\"}\n```")
			So(err, ShouldBeNil)
			So(raw.EventType, ShouldEqual, "垃圾堆积")
		})

		Convey("Prose and empty objects are rejected", func() {
			_, err := ParseResponse("I think this is a pothole.")
			So(errors.Is(err, ErrBadResponse), ShouldBeTrue)
			_, err = ParseResponse("{}")
			So(errors.Is(err, ErrBadResponse), ShouldBeTrue)
		})
	})
}

func TestPrompts(t *testing.T) {
	Convey("The system prompt lists every type", t, func() {
		p := SystemPrompt([]string{"道路损坏", "其他问题"})
		So(p, ShouldContainSubstring, "道路损坏, 其他问题")
		So(UserPrompt(model.MediaRef{Type: model.MediaVideo}), ShouldContainSubstring, "frame")
		So(UserPrompt(model.MediaRef{Type: model.MediaImage}), ShouldContainSubstring, "photo")
	})
}

func TestDisabled(t *testing.T) {
	Convey("The disabled gateway is never available", t, func() {
		var g Gateway = Disabled{}
		So(g.IsAvailable(), ShouldBeFalse)
		So(g.Name(), ShouldEqual, "none")
		_, err := g.Analyze(context.Background(), model.MediaRef{})
		So(errors.Is(err, model.ErrProvider), ShouldBeTrue)
		So(errors.Is(err, ErrNotConfigured), ShouldBeTrue)
	})
}
