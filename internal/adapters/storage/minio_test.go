package storage

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestObjectURLs(t *testing.T) {
	Convey("Given object URL construction", t, func() {
		Convey("The endpoint and bucket form the default base", func() {
			So(objectBaseURL(MinioConfig{Endpoint: "minio:9000", Bucket: "frames"}), ShouldEqual, "http://minio:9000/frames")
			So(objectBaseURL(MinioConfig{Endpoint: "s3.example.com", Bucket: "frames", UseSSL: true}), ShouldEqual, "https://s3.example.com/frames")
		})

		Convey("A public base URL wins and loses its trailing slash", func() {
			So(objectBaseURL(MinioConfig{Endpoint: "minio:9000", Bucket: "frames", PublicBaseURL: "https://cdn.example.com/f/"}), ShouldEqual, "https://cdn.example.com/f")
		})

		Convey("Key segments are escaped but slashes kept", func() {
			So(objectURL("http://minio:9000/frames", "frames/abc/0_0 1.jpg"), ShouldEqual, "http://minio:9000/frames/frames/abc/0_0%201.jpg")
		})
	})
}

func TestNewMinioValidation(t *testing.T) {
	Convey("Missing endpoint or bucket is a configuration error", t, func() {
		_, err := NewMinio(context.Background(), MinioConfig{Bucket: "frames"})
		So(errors.Is(err, ErrNotConfigured), ShouldBeTrue)
		_, err = NewMinio(context.Background(), MinioConfig{Endpoint: "minio:9000"})
		So(errors.Is(err, ErrNotConfigured), ShouldBeTrue)
	})
}
