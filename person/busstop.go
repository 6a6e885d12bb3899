package person

import (
	"sync"

	"gridlock/roadnetwork"
)

// BusStop is the supplemented bus-stop agent (see SPEC_FULL.md
// "Supplemented features"): a stationary point at a node where
// RoleWaitBusActivity persons queue until a matching RoleBusDriver Person
// dwells and boards them, at which point they become RolePassenger persons
// riding that vehicle. Grounded on
// original_source/dev/Basic/entities/roles/waitBusActivity/waitBusActivity.cpp
// and .../BusDriver.hpp's dwell-and-board loop, simplified to first-come
// first-served boarding up to a fixed capacity.
type BusStop struct {
	ID   uint64
	Node roadnetwork.NodeID
	Pos  Position

	mu      sync.Mutex
	waiting []*Person
}

// NewBusStop constructs an empty bus stop at node/pos.
func NewBusStop(id uint64, node roadnetwork.NodeID, pos Position) *BusStop {
	return &BusStop{ID: id, Node: node, Pos: pos}
}

// Enqueue adds a waiting person to the rear of the boarding queue.
func (b *BusStop) Enqueue(p *Person) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.waiting = append(b.waiting, p)
}

// Waiting reports how many persons are currently queued.
func (b *BusStop) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.waiting)
}

// Board pops up to capacity waiting persons, converts each to RolePassenger
// riding vehicle, and returns the boarded set. Intended to be called by a
// BusDriverMovement (or its owning Conflux) while the bus dwells.
func (b *BusStop) Board(vehicle *Person, capacity int, passengerFacetFor func(SubTrip) (Behavior, Movement)) []*Person {
	b.mu.Lock()
	n := len(b.waiting)
	if n > capacity {
		n = capacity
	}
	boarded := b.waiting[:n]
	b.waiting = b.waiting[n:]
	b.mu.Unlock()

	for _, rider := range boarded {
		rider.boardVehicle(vehicle, passengerFacetFor)
	}
	return boarded
}

// boardVehicle switches a waiting person's in-flight sub-trip to ride
// vehicle as a passenger, without advancing the trip-chain index — the
// passenger leg and the wait leg share one SubTrip entry (spec's trip-chain
// model treats "wait for bus" and "ride bus" as two Movement facets over
// the same leg).
func (p *Person) boardVehicle(vehicle *Person, passengerFacetFor func(SubTrip) (Behavior, Movement)) {
	p.Role = RolePassenger
	p.Behavior, p.Movement = passengerFacetFor(p.TripChain[p.tripIdx])
	if pm, ok := p.Movement.(*PassengerMovement); ok {
		pm.Vehicle = vehicle
	}
}

// WaitBusMovement is the Movement facet for RoleWaitBusActivity: the person
// stands at Stop and does nothing until BusStop.Board boards it (via
// boardVehicle, which installs a different Movement altogether) — so
// FrameTick here only ever observes the not-yet-boarded case and reports
// Continue.
type WaitBusMovement struct {
	Stop *BusStop
}

func NewWaitBusMovement(stop *BusStop) *WaitBusMovement {
	return &WaitBusMovement{Stop: stop}
}

func (m *WaitBusMovement) FrameInit(nowMS int64, p *Person) {
	p.IsMovingState = false
	p.IsQueuingState = true
	p.Position.Set(m.Stop.Pos)
	m.Stop.Enqueue(p)
}

func (m *WaitBusMovement) FrameTick(nowMS int64, p *Person) MoveResult {
	// Boarding is driven externally via BusStop.Board, which replaces
	// p.Movement entirely; reaching here means still waiting.
	return MoveResult{}
}

// ActivityMovement is the Movement facet for RoleActivity: the person is
// stationary at its current position for a fixed dwell, then Done.
type ActivityMovement struct {
	remainingMS int64
}

func NewActivityMovement(durationMS int64) *ActivityMovement {
	return &ActivityMovement{remainingMS: durationMS}
}

func (m *ActivityMovement) FrameInit(nowMS int64, p *Person) {
	p.IsMovingState = false
	p.IsQueuingState = false
}

func (m *ActivityMovement) FrameTick(nowMS int64, p *Person) MoveResult {
	m.remainingMS -= 100
	if m.remainingMS <= 0 {
		return MoveResult{Done: true}
	}
	return MoveResult{}
}
