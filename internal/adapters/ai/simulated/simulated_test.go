package simulated_test

import (
	"context"
	"errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/civiclens/internal/adapters/ai/simulated"
	"github.com/okian/civiclens/internal/domain/model"
	"github.com/okian/civiclens/internal/domain/taxonomy"
)

func TestSimulatedGateway(t *testing.T) {
	Convey("Given a fast simulated gateway", t, func() {
		g := simulated.New(taxonomy.Default(), simulated.WithLatencyRange(time.Millisecond, 2*time.Millisecond))
		ctx := context.Background()

		So(g.IsAvailable(), ShouldBeTrue)
		So(g.Name(), ShouldEqual, "simulated")

		Convey("It answers from the file name deterministically", func() {
			ref := model.MediaRef{URL: "https://cdn.example.com/garbage_pile.jpg", Type: model.MediaImage}
			a, err := g.Analyze(ctx, ref)
			So(err, ShouldBeNil)
			So(a.EventType, ShouldEqual, "垃圾堆积")
			So(a.Confidence, ShouldBeBetweenOrEqual, 0.6, 0.95)

			b, err := g.Analyze(ctx, ref)
			So(err, ShouldBeNil)
			So(b.Confidence, ShouldEqual, a.Confidence)
		})

		Convey("Cancelled contexts abort the call", func() {
			slow := simulated.New(taxonomy.Default(), simulated.WithLatencyRange(time.Second, 2*time.Second))
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := slow.Analyze(cctx, model.MediaRef{URL: "https://x/a.jpg"})
			So(errors.Is(err, model.ErrProvider), ShouldBeTrue)
		})
	})

	Convey("Given a gateway that always fails", t, func() {
		g := simulated.New(taxonomy.Default(), simulated.WithLatencyRange(0, time.Millisecond), simulated.WithFailureRate(1))
		_, err := g.Analyze(context.Background(), model.MediaRef{URL: "https://x/a.jpg"})
		So(errors.Is(err, simulated.ErrSimulatedFailure), ShouldBeTrue)
		So(errors.Is(err, model.ErrProvider), ShouldBeTrue)
	})
}
