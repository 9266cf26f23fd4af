package fingerprint

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/civiclens/internal/domain/model"
)

func TestNormalize(t *testing.T) {
	Convey("Given media URLs", t, func() {
		Convey("Scheme and host are lower-cased, path case is kept", func() {
			So(Normalize("HTTPS://CDN.Example.COM/Uploads/A.jpg"), ShouldEqual, "https://cdn.example.com/Uploads/A.jpg")
		})

		Convey("Tracking params and fragments are stripped", func() {
			So(Normalize("https://cdn.example.com/a.jpg?utm_source=wx&utm_medium=app&fbclid=1#top"), ShouldEqual, "https://cdn.example.com/a.jpg")
		})

		Convey("Remaining params are sorted", func() {
			So(Normalize("https://cdn.example.com/a.jpg?w=10&h=5&share_id=9"), ShouldEqual, "https://cdn.example.com/a.jpg?h=5&w=10")
		})

		Convey("Default ports are dropped, others kept", func() {
			So(Normalize("http://cdn.example.com:80/a.jpg"), ShouldEqual, "http://cdn.example.com/a.jpg")
			So(Normalize("http://cdn.example.com:8080/a.jpg"), ShouldEqual, "http://cdn.example.com:8080/a.jpg")
		})

		Convey("Input that is not an absolute URL is only trimmed", func() {
			So(Normalize("  not a url "), ShouldEqual, "not a url")
		})
	})
}

func TestCompute(t *testing.T) {
	Convey("Given fingerprints", t, func() {
		a := Compute("https://CDN.example.com/a.jpg?utm_source=x", model.MediaImage, "analyze_image")
		b := Compute("https://cdn.example.com/a.jpg", model.MediaImage, "analyze_image")

		Convey("Equivalent URLs share a fingerprint", func() {
			So(a, ShouldEqual, b)
			So(len(a), ShouldEqual, 64)
		})

		Convey("Media type and operation change the fingerprint", func() {
			So(Compute("https://cdn.example.com/a.jpg", model.MediaVideo, "analyze_image"), ShouldNotEqual, b)
			So(Compute("https://cdn.example.com/a.jpg", model.MediaImage, "analyze_video"), ShouldNotEqual, b)
		})
	})
}
