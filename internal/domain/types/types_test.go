package types_test

import (
	"encoding/json"
	"testing"
	"time"

	types "github.com/okian/civiclens/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestCacheStatsJSON(t *testing.T) {
	Convey("Given cache stats", t, func() {
		s := types.CacheStats{Enabled: true, TTL: time.Hour, TTLSeconds: 3600, KeyCount: 2, BackendMemory: "1.2M", Backend: "redis"}
		raw, err := json.Marshal(s)
		So(err, ShouldBeNil)

		Convey("The ttl is reported in seconds only", func() {
			So(string(raw), ShouldContainSubstring, `"ttl_seconds":3600`)
			So(string(raw), ShouldNotContainSubstring, `"TTL"`)
		})
	})
}

func TestServiceStatusJSON(t *testing.T) {
	Convey("Given a status without task stats", t, func() {
		raw, err := json.Marshal(types.ServiceStatus{Provider: "none"})
		So(err, ShouldBeNil)
		So(string(raw), ShouldNotContainSubstring, `"tasks"`)
	})
}
