package conflux

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gridlock/person"
	"gridlock/roadnetwork"
)

func mkPerson(id uint64, progressCM int64) *person.Person {
	net := roadnetwork.NewNetwork()
	net.Nodes[1] = &roadnetwork.Node{ID: 1}
	net.Nodes[2] = &roadnetwork.Node{ID: 2, XCM: 1000}
	net.Segments[1] = &roadnetwork.RoadSegment{ID: 1, StartNode: 1, EndNode: 2, LengthCM: 1000}
	p := person.New(0, []person.SubTrip{{Role: person.RoleDriver, Path: []roadnetwork.SegmentID{1}}}, int64(id), id, func(st person.SubTrip) (person.Behavior, person.Movement) {
		return person.DefaultBehavior, person.NewDriverMovement(net, 1000)
	})
	p.RemainingCM = 1000 - progressCM
	return p
}

func TestTopCMergeOrdersByProgress(t *testing.T) {
	Convey("Given three links with persons at varying progress", t, func() {
		a1, a2 := mkPerson(1, 900), mkPerson(2, 300)
		b1 := mkPerson(3, 950)
		c1, c2 := mkPerson(4, 100), mkPerson(5, 50)

		links := []LinkView{
			{Link: 10, Persons: []*person.Person{a1, a2}},
			{Link: 20, Persons: []*person.Person{b1}},
			{Link: 30, Persons: []*person.Person{c1, c2}},
		}

		Convey("the head is globally ordered by progress, truncated at capacity", func() {
			head, tails := TopCMerge(links, 3)
			So(len(head), ShouldEqual, 3)
			So(head[0], ShouldEqual, b1) // progress 950
			So(head[1], ShouldEqual, a1) // progress 900
			So(head[2], ShouldEqual, a2) // progress 300

			Convey("tails hold everything not drained, in original order", func() {
				So(tails[10], ShouldBeNil)
				So(tails[20], ShouldBeNil)
				So(len(tails[30]), ShouldEqual, 2)
				So(tails[30][0], ShouldEqual, c1)
				So(tails[30][1], ShouldEqual, c2)
			})
		})

		Convey("a capacity of zero drains nothing", func() {
			head, tails := TopCMerge(links, 0)
			So(head, ShouldBeEmpty)
			So(len(tails[10]), ShouldEqual, 2)
		})
	})
}
