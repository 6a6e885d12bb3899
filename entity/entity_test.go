package entity

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

type stubEntity struct {
	id    uint64
	start int64
}

func (s stubEntity) ID() uint64         { return s.id }
func (s stubEntity) StartTimeMS() int64 { return s.start }
func (s stubEntity) IsFake() bool       { return false }
func (s stubEntity) Tick(int64) UpdateStatus { return ContinueStatus() }

func TestIDsAreMonotonic(t *testing.T) {
	Convey("Given repeated calls to NewID", t, func() {
		first := NewID()
		second := NewID()
		third := NewID()

		Convey("Every new id is greater than every previously assigned id", func() {
			So(second, ShouldBeGreaterThan, first)
			So(third, ShouldBeGreaterThan, second)
		})
	})

	Convey("Given ForceID with a preferred id above the current max", t, func() {
		before := NewID()
		forced := ForceID(before + 1000)
		after := NewID()

		Convey("subsequent ids exceed the forced id", func() {
			So(forced, ShouldEqual, before+1000)
			So(after, ShouldBeGreaterThan, forced)
		})
	})
}

func TestPendingQueueOrdering(t *testing.T) {
	Convey("Given entities pushed out of start-time order", t, func() {
		pq := NewPendingQueue()
		pq.Push(PendingEntity{Entity: stubEntity{id: 3, start: 500}, StartTime: 500})
		pq.Push(PendingEntity{Entity: stubEntity{id: 1, start: 100}, StartTime: 100})
		pq.Push(PendingEntity{Entity: stubEntity{id: 2, start: 100}, StartTime: 100})

		Convey("Pop returns them in non-decreasing startTime order, ties by id", func() {
			var order []uint64
			for !pq.Empty() {
				item, ok := pq.Pop()
				So(ok, ShouldBeTrue)
				order = append(order, item.SeqID())
			}
			So(order, ShouldResemble, []uint64{1, 2, 3})
		})
	})

	Convey("Given an empty queue", t, func() {
		pq := NewPendingQueue()

		Convey("Pop and PeekTop report not-ok", func() {
			_, ok := pq.Pop()
			So(ok, ShouldBeFalse)
			_, ok = pq.PeekTop()
			So(ok, ShouldBeFalse)
			So(pq.Empty(), ShouldBeTrue)
		})
	})
}
