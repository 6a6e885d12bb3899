// Package conflux implements the intersection-centric aggregate scheduler
// (spec §3/§4.F): one Conflux per intersection node, owning every
// SegmentStats on the links ending there, ordering contained persons by
// progress toward the intersection, and handing them off across
// intersection boundaries through bounded virtual queues. Grounded on
// original_source/dev/Basic/shared/entities/conflux/Conflux.hpp (reset
// phase, vq bounds, Top-C merge) and Conflux.cpp's per-tick update loop.
package conflux

import (
	"fmt"
	"sort"

	"gridlock/cell"
	"gridlock/entity"
	"gridlock/person"
	"gridlock/report"
	"gridlock/roadnetwork"
	"gridlock/segment"
)

// Conflux owns one intersection node's upstream segments and persons, per
// spec §3 "Ownership". It implements entity.Entity and is ticked by exactly
// one Worker; its internal Persons are ticked cooperatively within that
// single goroutine (spec §5 "Persons inside a Conflux are cooperative
// within that thread").
type Conflux struct {
	id      uint64
	startMS int64
	isFake  bool

	Node    roadnetwork.NodeID
	Network *roadnetwork.Network

	// UpstreamSegStats holds, per link ending at Node, that link's
	// RoadSegments' Stats ordered upstream-first (index 0 is the entry
	// segment furthest from the intersection; the last element is the
	// segment immediately feeding the intersection).
	UpstreamSegStats map[roadnetwork.LinkID][]*segment.Stats
	VirtualQueues    map[roadnetwork.LinkID]*VirtualQueue
	VQBounds         map[roadnetwork.LinkID]int
	CurrSegCursor    map[roadnetwork.LinkID]int

	// Downstream maps a link departing Node (link.From == Node) to the
	// Conflux owning its destination intersection, for handoff when a
	// person crosses into that link. Populated by the sim wiring layer.
	Downstream map[roadnetwork.LinkID]*Conflux

	ActivityPerformers []*person.Person
	PedestrianList     []*person.Person
	MRT                []*person.Person // in-transit persons not currently in any lane (e.g. riding a bus)
	BusStops           []*person.BusStop

	LinkTravelTimes    map[roadnetwork.LinkID]float64
	SegmentTravelTimes map[roadnetwork.SegmentID]float64

	// DischargeCapacity bounds how many persons per tick are ordered strictly
	// across all links by the Top-C merge (spec §4.F step 3/4). It does not
	// bound how many persons advance: those past it still tick, in per-link
	// order.
	DischargeCapacity int

	occupants map[uint64]*occupantLoc // person id -> where it currently sits

	// registry is the cell.Registry of the Worker currently ticking this
	// Conflux, bound once at staging time via BindRegistry. Every occupant
	// Person's Position cell is added/removed here as it enters/leaves,
	// which is what makes Registry.Flip (and therefore Position.Get) ever
	// see a non-zero value (spec §4.A/§4.B).
	registry *cell.Registry
}

// occupantLoc tracks which link/segment/lane a person currently occupies
// within this Conflux, the arena+index bookkeeping the Design Notes call
// for instead of back-pointers (spec §9 "Cyclic ownership").
type occupantLoc struct {
	link    roadnetwork.LinkID
	segIdx  int // index into UpstreamSegStats[link]
	laneIdx int
}

// New constructs an empty Conflux for node, owned by network net.
func New(id uint64, startMS int64, node roadnetwork.NodeID, net *roadnetwork.Network, dischargeCapacity int) *Conflux {
	return &Conflux{
		id:                 id,
		startMS:            startMS,
		Node:               node,
		Network:            net,
		UpstreamSegStats:   make(map[roadnetwork.LinkID][]*segment.Stats),
		VirtualQueues:      make(map[roadnetwork.LinkID]*VirtualQueue),
		VQBounds:           make(map[roadnetwork.LinkID]int),
		CurrSegCursor:      make(map[roadnetwork.LinkID]int),
		Downstream:         make(map[roadnetwork.LinkID]*Conflux),
		LinkTravelTimes:    make(map[roadnetwork.LinkID]float64),
		SegmentTravelTimes: make(map[roadnetwork.SegmentID]float64),
		DischargeCapacity:  dischargeCapacity,
		occupants:          make(map[uint64]*occupantLoc),
	}
}

func (c *Conflux) ID() uint64         { return c.id }
func (c *Conflux) StartTimeMS() int64 { return c.startMS }
func (c *Conflux) IsFake() bool       { return c.isFake }

// AddLink registers a link ending at this Conflux's node, with its segments
// already ordered upstream-first.
func (c *Conflux) AddLink(link roadnetwork.LinkID, segs []*segment.Stats) {
	c.UpstreamSegStats[link] = segs
	c.VirtualQueues[link] = &VirtualQueue{}
}

// BindRegistry attaches the cell.Registry of the Worker that now ticks this
// Conflux, called once by WorkGroup at staging time (spec §4.B "registered
// at the next flip boundary"). Every Person already occupying this Conflux
// — seeded before staging, or carried over from a previous assignment — is
// registered immediately so its Position cell starts flipping without
// waiting for its next lane change; placeOccupant registers anyone admitted
// afterward.
func (c *Conflux) BindRegistry(r *cell.Registry) {
	c.registry = r
	for _, p := range c.Persons() {
		r.Add(p.Position)
	}
}

// Seed places p directly onto link's segment matching p.CurrentSegment,
// bypassing the virtual queue. It is the entry point a network-loading
// collaborator (or a fixture building a runnable demo network) uses to
// populate a Conflux with its initial occupants before the kernel starts
// ticking.
func (c *Conflux) Seed(p *person.Person, link roadnetwork.LinkID) {
	c.placeOccupant(p, link)
}

// Tick runs one full scheduling pass: reset, vq bounds, candidate
// selection, the main per-person loop, virtual-queue admission, bus-stop
// and activity-list ticks, then reporting (spec §4.F steps 1-6). A Conflux
// never completes on its own — it returns ContinueStatus for as long as
// the kernel runs.
func (c *Conflux) Tick(nowMS int64) entity.UpdateStatus {
	c.resetPhase()
	c.computeVQBounds()

	candidates := c.buildCandidates()
	head, tails := TopCMerge(candidates, c.DischargeCapacity)

	for _, p := range head {
		c.tickOnePerson(nowMS, p)
	}
	// DischargeCapacity only bounds the strict cross-link ordering
	// guarantee (spec §4.F step 3); every candidate still ticks this tick,
	// just in arbitrary per-link order once past the ordered head.
	for _, tail := range tails {
		for _, p := range tail {
			c.tickOnePerson(nowMS, p)
		}
	}

	c.admitFromVirtualQueues()
	c.tickBusStops(nowMS)
	c.tickActivityPerformers(nowMS)
	c.tickPedestrians(nowMS)
	c.report()

	return entity.ContinueStatus()
}

// resetPhase resets per-tick cursors to the downstream end of every link
// this Conflux owns (spec §4.F step 1).
func (c *Conflux) resetPhase() {
	for link, segs := range c.UpstreamSegStats {
		if len(segs) > 0 {
			c.CurrSegCursor[link] = len(segs) - 1
		} else {
			c.CurrSegCursor[link] = 0
		}
	}
}

// computeVQBounds sets, for each link's entry segment, how many more
// persons this tick's virtual-queue admission pass may accept (spec §4.F
// step 2).
func (c *Conflux) computeVQBounds() {
	for link, segs := range c.UpstreamSegStats {
		if len(segs) == 0 {
			c.VQBounds[link] = 0
			continue
		}
		entrySeg := segs[0]
		c.VQBounds[link] = entrySeg.Capacity() - entrySeg.LaneInfinity.Len()
		if c.VQBounds[link] < 0 {
			c.VQBounds[link] = 0
		}
	}
}

// buildCandidates gathers, per link, the persons this Conflux is tracking
// on that link's segments, ordered by progress toward the intersection
// (highest ProgressCM first within a segment, downstream segments before
// upstream ones), the shape TopCMerge expects.
func (c *Conflux) buildCandidates() []LinkView {
	views := make([]LinkView, 0, len(c.UpstreamSegStats))
	for link, segs := range c.UpstreamSegStats {
		var persons []*person.Person
		for i := len(segs) - 1; i >= 0; i-- { // downstream-most segment first
			var segPersons []*person.Person
			queues := append([]*segment.LaneQueue{segs[i].LaneInfinity}, segs[i].Lanes...)
			for _, lane := range queues {
				for _, occ := range lane.Snapshot() {
					if p, ok := occ.(*person.Person); ok {
						segPersons = append(segPersons, p)
					}
				}
			}
			sort.SliceStable(segPersons, func(a, b int) bool {
				return segPersons[a].ProgressCM() > segPersons[b].ProgressCM()
			})
			persons = append(persons, segPersons...)
		}
		views = append(views, LinkView{Link: link, Persons: persons})
	}
	return views
}

// tickOnePerson advances one person and houses-keeps its segment/link
// membership per spec §4.F step 4.e.
func (c *Conflux) tickOnePerson(nowMS int64, p *person.Person) {
	beforeSeg := p.CurrentSegment
	status := p.Tick(nowMS)

	if status.Kind == entity.Done {
		c.removeOccupant(p)
		return
	}

	if p.CurrentSegment == beforeSeg {
		if _, owned := c.segmentOwnerLink(p.CurrentSegment); owned {
			return // no segment change, no housekeeping needed
		}
		// Still on a segment outside this Conflux: an earlier handoff was
		// refused for lack of budget, so fall through and retry it.
	}

	if segs, ok := c.segmentOwnerLink(p.CurrentSegment); ok {
		// Still within this Conflux: relocate bookkeeping to the new
		// segment's lane-infinity holding area.
		c.removeOccupant(p)
		c.placeOccupant(p, segs)
		return
	}

	// Left this Conflux's owned segments entirely: hand off to the
	// downstream Conflux via its virtual queue, budget permitting.
	destLink, ok := c.linkFor(p.CurrentSegment)
	if !ok {
		return
	}
	dest := c.Downstream[destLink]
	if dest == nil {
		return
	}
	if dest.VQBounds[destLink] <= 0 {
		// No budget this tick: the person stays recorded here and
		// retries the handoff next tick (spec §4.F step 4.e "else leave
		// them in place").
		return
	}
	dest.VQBounds[destLink]--
	dest.VirtualQueues[destLink].Push(p)
	c.removeOccupant(p)
}

func (c *Conflux) linkFor(seg roadnetwork.SegmentID) (roadnetwork.LinkID, bool) {
	for _, l := range c.Network.Links {
		for _, s := range l.Segments {
			if s == seg {
				return l.ID, true
			}
		}
	}
	return 0, false
}

// segmentOwnerLink reports the link (within this Conflux) that owns seg.
func (c *Conflux) segmentOwnerLink(seg roadnetwork.SegmentID) (roadnetwork.LinkID, bool) {
	for link, segs := range c.UpstreamSegStats {
		for _, s := range segs {
			if s.SegmentID == seg {
				return link, true
			}
		}
	}
	return 0, false
}

// removeOccupant drops p from this Conflux's own bookkeeping and, if a
// registry is bound, deregisters its Position cell — p is either done for
// good or about to be re-placed (placeOccupant re-adds it), per spec §4.B.
func (c *Conflux) removeOccupant(p *person.Person) {
	loc, ok := c.occupants[p.ID()]
	if !ok {
		return
	}
	segs := c.UpstreamSegStats[loc.link]
	if loc.segIdx < len(segs) {
		segs[loc.segIdx].LaneInfinity.Remove(p.ID())
	}
	delete(c.occupants, p.ID())
	if c.registry != nil {
		c.registry.Remove(p.Position)
	}
}

func (c *Conflux) placeOccupant(p *person.Person, link roadnetwork.LinkID) {
	segs := c.UpstreamSegStats[link]
	segIdx := -1
	for i, s := range segs {
		if s.SegmentID == p.CurrentSegment {
			segIdx = i
			break
		}
	}
	if segIdx < 0 {
		return
	}
	segs[segIdx].LaneInfinity.Push(p)
	c.occupants[p.ID()] = &occupantLoc{link: link, segIdx: segIdx}
	if c.registry != nil {
		c.registry.Add(p.Position)
	}
}

// admitFromVirtualQueues pops up to vqBounds[link] persons in arrival order
// from each link's virtual queue into that link's entry segment (spec §4.F
// step 5).
func (c *Conflux) admitFromVirtualQueues() {
	for link, vq := range c.VirtualQueues {
		budget := c.VQBounds[link]
		for budget > 0 {
			p, ok := vq.PopFront()
			if !ok {
				break
			}
			c.placeOccupant(p, link)
			budget--
		}
		c.VQBounds[link] = budget
	}
}

// tickBusStops exists as the per-tick hook spec §4.F step 6 names; boarding
// itself happens inside person.BusStop.Board, called by a BusDriverMovement
// while its owning bus dwells, not here.
func (c *Conflux) tickBusStops(nowMS int64) {}

func (c *Conflux) tickActivityPerformers(nowMS int64) {
	remaining := c.ActivityPerformers[:0]
	for _, p := range c.ActivityPerformers {
		status := p.Tick(nowMS)
		if status.Kind != entity.Done {
			remaining = append(remaining, p)
		}
	}
	c.ActivityPerformers = remaining
}

func (c *Conflux) tickPedestrians(nowMS int64) {
	remaining := c.PedestrianList[:0]
	for _, p := range c.PedestrianList {
		status := p.Tick(nowMS)
		if status.Kind != entity.Done {
			remaining = append(remaining, p)
		}
	}
	c.PedestrianList = remaining
}

// report recomputes this tick's link/segment travel-time maps from each
// owned segment's static length and current free-flow speed (spec §6
// outputs).
func (c *Conflux) report() {
	for link, segs := range c.UpstreamSegStats {
		var total float64
		for _, s := range segs {
			tt := c.travelTimeMS(s)
			c.SegmentTravelTimes[s.SegmentID] = tt
			total += tt
		}
		c.LinkTravelTimes[link] = total
	}
}

// travelTimeMS derives a free-flow travel time estimate (length / speed)
// for s from the static network; this is a free-flow estimate, not a
// measured one — a real measured-travel-time model would instead track
// entry/exit timestamps per person, which report.TravelTimeRecord's
// SampleCount field is shaped to support once that lands.
func (c *Conflux) travelTimeMS(s *segment.Stats) float64 {
	speed := s.FreeFlowSpeed.Read()
	seg, ok := c.Network.Segments[s.SegmentID]
	if !ok || speed <= 0 {
		return 0
	}
	return float64(seg.LengthCM) / speed * 1000
}

// String aids debugging/logging (zap.Stringer-friendly).
func (c *Conflux) String() string {
	return fmt.Sprintf("conflux(node=%d, links=%d)", c.Node, len(c.UpstreamSegStats))
}

// Persons returns every person this Conflux currently holds: everyone
// queued on a lane or in lane-infinity across its segments, plus activity
// performers, pedestrians, and in-transit riders. Used by the sim layer to
// rebuild the aura.Manager index and emit position reports — never by
// Conflux itself, which only needs occupants grouped by link/segment.
func (c *Conflux) Persons() []*person.Person {
	var out []*person.Person
	for _, segs := range c.UpstreamSegStats {
		for _, s := range segs {
			for _, o := range s.LaneInfinity.Snapshot() {
				if p, ok := o.(*person.Person); ok {
					out = append(out, p)
				}
			}
			for _, lane := range s.Lanes {
				for _, o := range lane.Snapshot() {
					if p, ok := o.(*person.Person); ok {
						out = append(out, p)
					}
				}
			}
		}
	}
	out = append(out, c.ActivityPerformers...)
	out = append(out, c.PedestrianList...)
	out = append(out, c.MRT...)
	return out
}

// PositionRecords snapshots every live (non-fake) person's current position
// as a report.PositionRecord, timestamped at frame tickMS. Fakes are
// excluded: they mirror a remote partition's person for ordering purposes
// only and would double-count that person's position in the report stream.
func (c *Conflux) PositionRecords(tickMS int64) []report.PositionRecord {
	persons := c.Persons()
	recs := make([]report.PositionRecord, 0, len(persons))
	for _, p := range persons {
		if p.IsFake() {
			continue
		}
		pos := p.Position.Get()
		recs = append(recs, report.PositionRecord{
			Role:    p.Role.String(),
			AgentID: p.ID(),
			Frame:   tickMS,
			XCM:     pos.XCM,
			YCM:     pos.YCM,
		})
	}
	return recs
}

// TravelTimeRecords snapshots this tick's per-segment travel-time estimates
// as report.TravelTimeRecord values, timestamped [tickMS, tickMS].
func (c *Conflux) TravelTimeRecords(tickMS int64) []report.TravelTimeRecord {
	recs := make([]report.TravelTimeRecord, 0, len(c.SegmentTravelTimes))
	for segID, tt := range c.SegmentTravelTimes {
		recs = append(recs, report.TravelTimeRecord{
			SegmentID:        uint64(segID),
			StartTickMS:      tickMS,
			EndTickMS:        tickMS,
			MeanTravelTimeMS: tt,
			SampleCount:      1,
		})
	}
	return recs
}
