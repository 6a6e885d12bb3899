package sim

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"gridlock/cell"
)

func TestDemoNetworkIsSeededWithDrivers(t *testing.T) {
	Convey("Given the demo network fixture", t, func() {
		_, confluxes := DemoNetwork(cell.Buffered)

		Convey("one of its confluxes owns the seeded demo drivers", func() {
			total := 0
			for _, c := range confluxes {
				total += len(c.Persons())
			}
			So(total, ShouldBeGreaterThan, 0)
		})
	})
}
