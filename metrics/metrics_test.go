package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	. "github.com/smartystreets/goconvey/convey"
)

func TestTickRecorderObservesDuration(t *testing.T) {
	Convey("Given a fresh TickRecorder on its own registry", t, func() {
		reg := prometheus.NewRegistry()
		r := NewTickRecorder(reg, "test")

		Convey("ObserveTick records a sample", func() {
			r.ObserveTick(func() {})
			var m dto.Metric
			So(r.TickDuration.Write(&m), ShouldBeNil)
			So(m.Histogram.GetSampleCount(), ShouldEqual, uint64(1))
		})

		Convey("SetActiveEntities updates the gauge", func() {
			r.SetActiveEntities(7)
			var m dto.Metric
			So(r.ActiveEntities.Write(&m), ShouldBeNil)
			So(m.Gauge.GetValue(), ShouldEqual, float64(7))
		})
	})
}
