package person

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"
	"gridlock/entity"
	"gridlock/roadnetwork"
)

func twoNodeOneSegmentNetwork(lengthCM int64, maxSpeedCMPerSec int32) (*roadnetwork.Network, roadnetwork.SegmentID) {
	net := roadnetwork.NewNetwork()
	a := &roadnetwork.Node{ID: 1, XCM: 0, YCM: 0}
	b := &roadnetwork.Node{ID: 2, XCM: lengthCM, YCM: 0}
	net.Nodes[a.ID] = a
	net.Nodes[b.ID] = b
	seg := &roadnetwork.RoadSegment{ID: 100, StartNode: a.ID, EndNode: b.ID, LengthCM: lengthCM, MaxSpeedCMPerSec: maxSpeedCMPerSec}
	net.Segments[seg.ID] = seg
	link := &roadnetwork.Link{ID: 1, From: a.ID, To: b.ID, Segments: []roadnetwork.SegmentID{seg.ID}}
	net.Links[link.ID] = link
	return net, seg.ID
}

func TestDriverReachesDestination(t *testing.T) {
	Convey("Given a single driver on a one-segment link at 1000 cm/s", t, func() {
		net, segID := twoNodeOneSegmentNetwork(10000, 1000)
		facetFor := func(st SubTrip) (Behavior, Movement) {
			return DefaultBehavior, NewDriverMovement(net, 1000)
		}
		chain := []SubTrip{{Role: RoleDriver, Origin: 1, Dest: 2, Path: []roadnetwork.SegmentID{segID}}}
		p := New(0, chain, 42, 0, facetFor)

		Convey("ticking until Done arrives within the expected number of ticks", func() {
			const dtMS = 100
			maxTicks := 200
			now := int64(0)
			done := false
			for i := 0; i < maxTicks; i++ {
				now += dtMS
				status := p.Tick(now)
				if status.Kind == entity.Done {
					done = true
					break
				}
			}
			So(done, ShouldBeTrue)
		})
	})
}

func TestTripChainSwitchOnCompletion(t *testing.T) {
	Convey("Given a two-leg trip chain", t, func() {
		net, segID := twoNodeOneSegmentNetwork(1000, 1000)
		legCount := 0
		facetFor := func(st SubTrip) (Behavior, Movement) {
			legCount++
			return DefaultBehavior, NewPedestrianMovement(net)
		}
		chain := []SubTrip{
			{Role: RolePedestrian, Origin: 1, Dest: 2, Path: []roadnetwork.SegmentID{segID}},
			{Role: RolePedestrian, Origin: 2, Dest: 1, Path: []roadnetwork.SegmentID{segID}},
		}
		p := New(0, chain, 7, 0, facetFor)
		So(legCount, ShouldEqual, 1)

		Convey("completing the first leg installs the second leg's facets", func() {
			now := int64(0)
			for i := 0; i < 200; i++ {
				now += 100
				status := p.Tick(now)
				if p.tripIdx == 1 {
					break
				}
				_ = status
			}
			So(p.tripIdx, ShouldEqual, 1)
			So(legCount, ShouldEqual, 2)
		})
	})
}

func TestBusStopBoarding(t *testing.T) {
	Convey("Given a waiting passenger and an arriving bus", t, func() {
		stop := NewBusStop(1, 1, Position{})
		net, segID := twoNodeOneSegmentNetwork(1000, 1000)

		waiter := New(0, []SubTrip{{Role: RoleWaitBusActivity, Path: nil}}, 1, 0, func(st SubTrip) (Behavior, Movement) {
			return DefaultBehavior, NewWaitBusMovement(stop)
		})
		So(stop.Waiting(), ShouldEqual, 1)

		bus := New(0, []SubTrip{{Role: RoleBusDriver, Path: []roadnetwork.SegmentID{segID}}}, 2, 0, func(st SubTrip) (Behavior, Movement) {
			return DefaultBehavior, NewBusDriverMovement(net, 1000, nil, 0, 0, nil)
		})

		Convey("boarding moves the waiter to RolePassenger riding the bus", func() {
			boarded := stop.Board(bus, 10, func(st SubTrip) (Behavior, Movement) {
				return DefaultBehavior, &PassengerMovement{}
			})
			So(len(boarded), ShouldEqual, 1)
			So(waiter.Role, ShouldEqual, RolePassenger)
			So(stop.Waiting(), ShouldEqual, 0)

			res := waiter.Movement.FrameTick(100, waiter)
			So(res.Done, ShouldBeFalse)
		})
	})
}

func TestBusDriverMovementBoardsAtStopWithoutExternalHelp(t *testing.T) {
	Convey("Given a bus stop at the end of a bus's segment with one waiter queued", t, func() {
		net, segID := twoNodeOneSegmentNetwork(1000, 1000)
		stop := NewBusStop(1, 2, Position{})

		waiter := New(0, []SubTrip{{Role: RoleWaitBusActivity, Path: nil}}, 1, 0, func(st SubTrip) (Behavior, Movement) {
			return DefaultBehavior, NewWaitBusMovement(stop)
		})
		So(stop.Waiting(), ShouldEqual, 1)

		passengerFacetFor := func(st SubTrip) (Behavior, Movement) {
			return DefaultBehavior, &PassengerMovement{}
		}
		stops := map[roadnetwork.NodeID]*BusStop{2: stop}
		bus := New(0, []SubTrip{{Role: RoleBusDriver, Origin: 1, Dest: 2, Path: []roadnetwork.SegmentID{segID}}}, 2, 0, func(st SubTrip) (Behavior, Movement) {
			return DefaultBehavior, NewBusDriverMovement(net, 1000, stops, 500, 10, passengerFacetFor)
		})

		Convey("ticking the bus across the segment boards the waiter without anything calling Board directly", func() {
			now := int64(0)
			for i := 0; i < 20; i++ {
				now += 100
				bus.Tick(now)
				if waiter.Role == RolePassenger {
					break
				}
			}
			So(waiter.Role, ShouldEqual, RolePassenger)
			So(stop.Waiting(), ShouldEqual, 0)
		})
	})
}
