// Package segment implements the lane-level queueing state for one stretch
// of road: per-lane ordered queues of persons, counts, and the derived flow
// parameters a Conflux reports each tick (spec §3, §4.F step 8).
package segment

import (
	"sync"

	"gridlock/atomicx"
	"gridlock/roadnetwork"
)

// Occupant is the minimal view SegmentStats needs of whatever sits in a
// lane queue — satisfied by *person.Person, kept as an interface here so
// segment does not import person (a Person refers to its segment only by
// SegmentID, per the Design Notes' arena+index guidance).
type Occupant interface {
	OccupantID() uint64
	ProgressCM() int64 // larger means closer to the segment's downstream end, for ordering
}

// LaneQueue is the ordered set of Occupants on one lane, frontmost (closest
// to the segment's downstream end) first.
type LaneQueue struct {
	mu    sync.Mutex
	items []Occupant
}

// Frontmost returns the occupant closest to the intersection without
// removing it, or ok=false if the lane is empty.
func (q *LaneQueue) Frontmost() (Occupant, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Len reports how many occupants are queued on this lane.
func (q *LaneQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Push appends an occupant at the rear (furthest from the intersection).
func (q *LaneQueue) Push(o Occupant) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, o)
}

// PopFront removes and returns the frontmost occupant.
func (q *LaneQueue) PopFront() (Occupant, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	o := q.items[0]
	q.items = q.items[1:]
	return o, true
}

// Remove deletes the first occupant matching id, used when a person changes
// lane or leaves the segment mid-tick. Preserves relative order of the
// remaining occupants.
func (q *LaneQueue) Remove(id uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, o := range q.items {
		if o.OccupantID() == id {
			q.items = append(q.items[:i], q.items[i+1:]...)
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the current occupant slice, safe to range over
// without holding the lock.
func (q *LaneQueue) Snapshot() []Occupant {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Occupant, len(q.items))
	copy(out, q.items)
	return out
}

// Stats is the lane-level queueing state for one RoadSegment, owned
// exclusively by one Conflux (spec §3 Ownership). It is never touched by
// any other Conflux's goroutine.
type Stats struct {
	SegmentID roadnetwork.SegmentID

	Lanes        []*LaneQueue
	LaneInfinity *LaneQueue // pre-lane holding area, admitted but not yet placed

	// Counts, mutated only by the owning Conflux's tick.
	MovingCount  int
	QueuingCount int

	// Read-hot, rarely-written flow parameters — atomic rather than
	// mutex-guarded since many neighbouring confluxes' reporting passes
	// read these every tick.
	AcceptedFlow     *atomicx.Float64
	CumulativeOutput *atomicx.Float64
	FreeFlowSpeed    *atomicx.Float64
}

// New returns a Stats for segID with numLanes lanes, all empty, free-flow
// speed seeded from the network's max speed for that segment.
func New(segID roadnetwork.SegmentID, numLanes int, freeFlowSpeedCMPerSec float64) *Stats {
	lanes := make([]*LaneQueue, numLanes)
	for i := range lanes {
		lanes[i] = &LaneQueue{}
	}
	return &Stats{
		SegmentID:        segID,
		Lanes:            lanes,
		LaneInfinity:     &LaneQueue{},
		AcceptedFlow:     atomicx.NewFloat64(0),
		CumulativeOutput: atomicx.NewFloat64(0),
		FreeFlowSpeed:    atomicx.NewFloat64(freeFlowSpeedCMPerSec),
	}
}

// Count returns the total number of persons across every lane plus the
// lane-infinity holding area. Spec §3 invariant: this must equal the sum of
// all persons across its lanes.
func (s *Stats) Count() int {
	total := s.LaneInfinity.Len()
	for _, l := range s.Lanes {
		total += l.Len()
	}
	return total
}

// Capacity is a coarse per-tick admission budget for this segment's entry
// point, used by Conflux to compute vqBounds (spec §4.F step 2): one
// vehicle per lane per tick, a simple stand-in for the real discharge-rate
// computation a behavioural model would supply.
func (s *Stats) Capacity() int {
	return len(s.Lanes)
}
