package report

import (
	"bytes"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSinkWritesAndCachesTravelTime(t *testing.T) {
	Convey("Given a sink backed by a buffer with capacity 2", t, func() {
		var buf bytes.Buffer
		s, err := NewSink(&buf, 2)
		So(err, ShouldBeNil)

		Convey("WritePosition emits a POS line", func() {
			err := s.WritePosition(PositionRecord{Role: "driver", AgentID: 1, Frame: 5, XCM: 100, YCM: 200})
			So(err, ShouldBeNil)
			So(strings.HasPrefix(buf.String(), "POS,driver,1,5,100,200"), ShouldBeTrue)
		})

		Convey("WriteTravelTime emits a TT line and is retrievable from cache", func() {
			err := s.WriteTravelTime(TravelTimeRecord{SegmentID: 42, MeanTravelTimeMS: 1500, SampleCount: 3})
			So(err, ShouldBeNil)
			rec, ok := s.RecentTravelTime(42)
			So(ok, ShouldBeTrue)
			So(rec.MeanTravelTimeMS, ShouldEqual, float64(1500))
		})

		Convey("the cache evicts the oldest segment once capacity is exceeded", func() {
			s.WriteTravelTime(TravelTimeRecord{SegmentID: 1})
			s.WriteTravelTime(TravelTimeRecord{SegmentID: 2})
			s.WriteTravelTime(TravelTimeRecord{SegmentID: 3})
			_, ok := s.RecentTravelTime(1)
			So(ok, ShouldBeFalse)
			_, ok = s.RecentTravelTime(3)
			So(ok, ShouldBeTrue)
		})
	})
}
