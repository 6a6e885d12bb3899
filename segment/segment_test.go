package segment

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type fakeOccupant struct {
	id       uint64
	progress int64
}

func (f fakeOccupant) OccupantID() uint64 { return f.id }
func (f fakeOccupant) ProgressCM() int64  { return f.progress }

func TestStatsCountInvariant(t *testing.T) {
	Convey("Given a 2-lane segment with occupants in lanes and lane-infinity", t, func() {
		s := New(1, 2, 1500)
		s.Lanes[0].Push(fakeOccupant{id: 1})
		s.Lanes[1].Push(fakeOccupant{id: 2})
		s.Lanes[1].Push(fakeOccupant{id: 3})
		s.LaneInfinity.Push(fakeOccupant{id: 4})

		Convey("Count equals the sum across all lanes and lane-infinity", func() {
			So(s.Count(), ShouldEqual, 4)
		})

		Convey("Removing an occupant updates Count", func() {
			So(s.Lanes[1].Remove(2), ShouldBeTrue)
			So(s.Count(), ShouldEqual, 3)
		})

		Convey("No occupant appears in more than one lane", func() {
			seen := map[uint64]int{}
			for _, l := range s.Lanes {
				for _, o := range l.Snapshot() {
					seen[o.OccupantID()]++
				}
			}
			for id, n := range seen {
				So(n, ShouldEqual, 1)
				_ = id
			}
		})
	})
}

func TestAtomicFlowFields(t *testing.T) {
	Convey("Given a fresh segment", t, func() {
		s := New(2, 1, 1000)

		Convey("FreeFlowSpeed reads back what it was seeded with", func() {
			So(s.FreeFlowSpeed.Read(), ShouldEqual, float64(1000))
		})

		Convey("CumulativeOutput accumulates", func() {
			newVal, ok := s.CumulativeOutput.Add(1)
			So(ok, ShouldBeTrue)
			So(newVal, ShouldEqual, 1)
			newVal, ok = s.CumulativeOutput.Add(1)
			So(ok, ShouldBeTrue)
			So(newVal, ShouldEqual, 2)
		})
	})
}
