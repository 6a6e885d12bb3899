package person

import (
	"gridlock/roadnetwork"
)

// baseMovement carries the bookkeeping every concrete facet below shares:
// straight-line progress along the active SubTrip's Path at a fixed speed,
// updating Position and the arena-index kinematics fields each tick. It is
// the simplest Movement that satisfies spec §4.F's contract without
// pulling in a real car-following or pedestrian-steering model (those are
// named as out-of-scope collaborators in spec §1).
type baseMovement struct {
	net          *roadnetwork.Network
	speedCMPerMS float64
}

func (m *baseMovement) FrameInit(nowMS int64, p *Person) {
	p.IsMovingState = true
	p.IsQueuingState = false
	if seg, ok := m.net.Segments[p.CurrentSegment]; ok {
		p.RemainingCM = seg.LengthCM
	}
}

// step advances the person speedCMPerMS*dtMS along the current segment,
// rolling over to the next segment in Path (or signalling Done when Path is
// exhausted), and reports whether a segment boundary was crossed.
func (m *baseMovement) step(nowMS, dtMS int64, p *Person) MoveResult {
	advanceCM := int64(m.speedCMPerMS * float64(dtMS))
	p.RemainingCM -= advanceCM
	if p.RemainingCM > 0 {
		p.updatePositionFraction(m.net)
		return MoveResult{}
	}

	st := p.TripChain[p.tripIdx]
	p.PathIdx++
	if p.PathIdx >= len(st.Path) {
		p.IsMovingState = false
		return MoveResult{Done: true}
	}

	prevSeg := p.CurrentSegment
	p.CurrentSegment = st.Path[p.PathIdx]
	if seg, ok := m.net.Segments[p.CurrentSegment]; ok {
		p.RemainingCM = -p.RemainingCM // carry the overshoot into the new segment
		if p.RemainingCM < 0 {
			p.RemainingCM = 0
		}
		p.RemainingCM = seg.LengthCM - p.RemainingCM
	}
	p.updatePositionFraction(m.net)

	left := !sameLink(m.net, prevSeg, p.CurrentSegment)
	return MoveResult{SegmentChanged: true, NewSegment: p.CurrentSegment, LeftConflux: left}
}

func sameLink(net *roadnetwork.Network, a, b roadnetwork.SegmentID) bool {
	var linkOf = func(seg roadnetwork.SegmentID) roadnetwork.LinkID {
		for _, l := range net.Links {
			for _, s := range l.Segments {
				if s == seg {
					return l.ID
				}
			}
		}
		return 0
	}
	return linkOf(a) == linkOf(b)
}

// updatePositionFraction writes Position as a linear interpolation between
// the current segment's start and end nodes, proportional to how much of
// the segment remains — enough to give the Aura Manager and dashboard a
// sensible coordinate without a full kinematic model.
func (p *Person) updatePositionFraction(net *roadnetwork.Network) {
	seg, ok := net.Segments[p.CurrentSegment]
	if !ok || seg.LengthCM == 0 {
		return
	}
	start, okS := net.Nodes[seg.StartNode]
	end, okE := net.Nodes[seg.EndNode]
	if !okS || !okE {
		return
	}
	frac := 1 - float64(p.RemainingCM)/float64(seg.LengthCM)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	x := start.XCM + int64(float64(end.XCM-start.XCM)*frac)
	y := start.YCM + int64(float64(end.YCM-start.YCM)*frac)
	p.Position.Set(Position{XCM: x, YCM: y})
}

// DriverMovement is the Movement facet for RoleDriver: progresses at the
// fixed speed it was constructed with (maxSpeedCMPerSec) on every segment of
// its path, deferring to Conflux's per-tick admission control (vqBounds)
// for anything resembling car-following.
type DriverMovement struct{ baseMovement }

func NewDriverMovement(net *roadnetwork.Network, maxSpeedCMPerSec int32) *DriverMovement {
	return &DriverMovement{baseMovement{net: net, speedCMPerMS: float64(maxSpeedCMPerSec) / 1000}}
}

func (m *DriverMovement) FrameTick(nowMS int64, p *Person) MoveResult {
	return m.step(nowMS, 100, p)
}

// PedestrianMovement walks at a fixed nominal speed, ignoring lane
// structure entirely (pedestrians are not lane occupants).
type PedestrianMovement struct{ baseMovement }

const pedestrianSpeedCMPerSec = 140 // ~1.4 m/s nominal walking speed

func NewPedestrianMovement(net *roadnetwork.Network) *PedestrianMovement {
	return &PedestrianMovement{baseMovement{net: net, speedCMPerMS: float64(pedestrianSpeedCMPerSec) / 1000}}
}

func (m *PedestrianMovement) FrameTick(nowMS int64, p *Person) MoveResult {
	return m.step(nowMS, 100, p)
}

// BusDriverMovement is a DriverMovement that additionally dwells at bus
// stops along its path, boarding waiting passengers via the supplemented
// BusStop facet (busstop.go) before continuing.
type BusDriverMovement struct {
	baseMovement
	stops             map[roadnetwork.NodeID]*BusStop
	dwellMS           int64
	capacity          int
	passengerFacetFor func(SubTrip) (Behavior, Movement)

	dwelling     bool
	dwellRemain  int64
	servicedNode roadnetwork.NodeID // last node already boarded, so a bus doesn't re-dwell while still crossing it
}

// NewBusDriverMovement builds a bus's Movement facet. stops maps a node to
// the BusStop the bus should dwell and board at when passing through; a nil
// or empty map makes this behave like a DriverMovement, for routes or tests
// with no stops to service. At a stop, a capacity of 0 boards nobody and a
// dwellMS of 100 or less skips the dwell, but the bus still stops there.
func NewBusDriverMovement(net *roadnetwork.Network, maxSpeedCMPerSec int32, stops map[roadnetwork.NodeID]*BusStop, dwellMS int64, capacity int, passengerFacetFor func(SubTrip) (Behavior, Movement)) *BusDriverMovement {
	return &BusDriverMovement{
		baseMovement:      baseMovement{net: net, speedCMPerMS: float64(maxSpeedCMPerSec) / 1000},
		stops:             stops,
		dwellMS:           dwellMS,
		capacity:          capacity,
		passengerFacetFor: passengerFacetFor,
	}
}

func (m *BusDriverMovement) FrameTick(nowMS int64, p *Person) MoveResult {
	if m.dwelling {
		m.dwellRemain -= 100
		if m.dwellRemain > 0 {
			return MoveResult{}
		}
		m.dwelling = false
	}

	advanceCM := int64(m.speedCMPerMS * 100)
	if p.RemainingCM-advanceCM > 0 {
		p.RemainingCM -= advanceCM
		p.updatePositionFraction(m.net)
		return MoveResult{}
	}

	// Arriving at this segment's end node: dwell and board before handing
	// off to baseMovement.step's usual segment-rollover bookkeeping.
	if seg, ok := m.net.Segments[p.CurrentSegment]; ok && seg.EndNode != m.servicedNode {
		if stop, ok := m.stops[seg.EndNode]; ok {
			p.RemainingCM = 0
			p.IsQueuingState = true
			p.IsMovingState = false
			stop.Board(p, m.capacity, m.passengerFacetFor)
			m.servicedNode = seg.EndNode
			if m.dwellMS > 100 {
				m.dwelling = true
				m.dwellRemain = m.dwellMS - 100
				return MoveResult{}
			}
		}
	}

	return m.step(nowMS, 100, p)
}

// PassengerMovement ties a passenger's position to the bus (or other
// vehicle) Person it is riding; it does not advance on its own.
type PassengerMovement struct {
	Vehicle *Person
}

func (m *PassengerMovement) FrameInit(nowMS int64, p *Person) {
	p.IsMovingState = true
}

func (m *PassengerMovement) FrameTick(nowMS int64, p *Person) MoveResult {
	if m.Vehicle == nil {
		return MoveResult{Done: true}
	}
	p.Position.Set(m.Vehicle.Position.Get())
	p.CurrentSegment = m.Vehicle.CurrentSegment
	return MoveResult{}
}

// simpleBehavior is the default no-op Behavior every facet above installs;
// real gap-acceptance/route-choice logic plugs in here without changing
// Person's shape.
type simpleBehavior struct{}

func (simpleBehavior) Decide(p *Person) any { return nil }

// DefaultBehavior is the Behavior every built-in Movement facet pairs with.
var DefaultBehavior Behavior = simpleBehavior{}
