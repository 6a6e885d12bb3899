// Package person implements the Person entity: a role-tagged Entity whose
// behaviour (decides) and movement (mutates position/velocity) facets
// change as it advances through its trip chain (spec §3, §4.F "Trip-chain
// switching").
//
// Only the interface-level contract for behaviour and movement is
// specified here — car-following, gap-acceptance, pedestrian micro-steering
// and boarding-utility math are collaborators per spec §1; the concrete
// facets in facets.go implement the simplest motion that satisfies that
// contract (straight-line progress at free-flow speed along a fixed path),
// enough to drive the kernel's scheduling and reporting correctly.
package person

import (
	"math/rand"

	"gridlock/cell"
	"gridlock/entity"
	"gridlock/roadnetwork"
)

// RoleKind tags which of the six roles named in spec §3 a Person currently
// plays.
type RoleKind int

const (
	RoleDriver RoleKind = iota
	RolePedestrian
	RoleBusDriver
	RolePassenger
	RoleWaitBusActivity
	RoleActivity
)

func (r RoleKind) String() string {
	switch r {
	case RoleDriver:
		return "driver"
	case RolePedestrian:
		return "pedestrian"
	case RoleBusDriver:
		return "busdriver"
	case RolePassenger:
		return "passenger"
	case RoleWaitBusActivity:
		return "waitbus"
	case RoleActivity:
		return "activity"
	default:
		return "unknown"
	}
}

// Position is the canonical integer-centimetre position Shared Cell payload.
// Velocity is carried separately as float64 metres/second — see
// CMFromMetres/MetresFromCM, the single conversion boundary the Design
// Notes call for.
type Position struct {
	XCM, YCM int64
}

// CMFromMetres and MetresFromCM are the only places in gridlock that convert
// between the two canonical units; role code must never divide or multiply
// by 100 itself.
func CMFromMetres(m float64) int64  { return int64(m * 100) }
func MetresFromCM(cm int64) float64 { return float64(cm) / 100 }

// SubTrip is one leg of a Person's trip chain: play role Role from Origin to
// Dest, following Path (an ordered list of segments already resolved by a
// routing collaborator — gridlock does not compute paths itself).
type SubTrip struct {
	Role   RoleKind
	Origin roadnetwork.NodeID
	Dest   roadnetwork.NodeID
	Path   []roadnetwork.SegmentID
}

// PersonProps is the snapshot Conflux records before and after moving a
// person each tick (spec §4.F step b/d): segment, lane, queuing/moving
// state, and role.
type PersonProps struct {
	Segment   roadnetwork.SegmentID
	Lane      int
	IsQueuing bool
	IsMoving  bool
	Role      RoleKind
}

// Behavior decides what a Person does next; Movement is the facet that
// mutates position/velocity on tick. Both are deliberately thin — see the
// package doc comment.
type Behavior interface {
	// Decide is called by Movement facets that need a decision (e.g.
	// whether to take a gap); gridlock's own facets do not call it, but it
	// is part of the contract spec §3 describes so a richer Movement
	// implementation has somewhere to plug in real driver/pedestrian
	// models without changing Person's shape.
	Decide(p *Person) any
}

// MoveResult is what a Movement facet's FrameTick returns, letting the
// owning Conflux classify the person and housekeep segment membership
// (spec §4.F step e/f).
type MoveResult struct {
	Done           bool
	LeftConflux    bool                  // true once the person crosses into a different link
	NewSegment     roadnetwork.SegmentID // valid when the current segment changed within this conflux
	SegmentChanged bool
}

// Movement mutates a Person's position/velocity facets.
type Movement interface {
	FrameInit(nowMS int64, p *Person)
	FrameTick(nowMS int64, p *Person) MoveResult
}

// Person is a specific Entity carrying one of the six roles. Its origin and
// destination are fixed for the whole trip chain; the chain itself advances
// sub-trip by sub-trip as each completes (spec §3).
type Person struct {
	id        uint64
	startMS   int64
	isFake    bool
	rng       *rand.Rand
	facetFor  func(SubTrip) (Behavior, Movement)

	Origin roadnetwork.NodeID
	Dest   roadnetwork.NodeID

	TripChain []SubTrip
	tripIdx   int

	Role     RoleKind
	Behavior Behavior
	Movement Movement

	// Position is the one Shared Cell every Person subscribes; other
	// persons and the Aura Manager read it via Get, the owning Conflux
	// writes it via Set.
	Position *cell.Cell[Position]

	// Kinematics consumed by the default facets in facets.go.
	CurrentSegment   roadnetwork.SegmentID
	CurrentLane      int
	PathIdx          int // index into the active SubTrip's Path
	RemainingCM      int64
	IsQueuingState   bool
	IsMovingState    bool
}

// New constructs a Person with a fresh monotonic id, starting at startMS,
// with tripChain as its full day. The first sub-trip's facets are installed
// and FrameInit'd immediately. runSeed and the assigned id together seed a
// private *rand.Rand — no global rand call ever happens in role code (the
// Design Notes' random-seed Open Question resolution). Its position cell
// uses the Buffered strategy; use NewWithStrategy to honor a config's
// chosen cell.MutexStrategy instead.
func New(startMS int64, tripChain []SubTrip, runSeed int64, idOverride uint64, facetFor func(SubTrip) (Behavior, Movement)) *Person {
	return NewWithStrategy(startMS, tripChain, runSeed, idOverride, facetFor, cell.Buffered)
}

// NewWithStrategy is New, but builds the Position cell under strategy —
// the wiring point for a run's configured cell.MutexStrategy (spec §9 cell
// strategy, simconfig.Config.CellStrategy).
func NewWithStrategy(startMS int64, tripChain []SubTrip, runSeed int64, idOverride uint64, facetFor func(SubTrip) (Behavior, Movement), strategy cell.MutexStrategy) *Person {
	p := &Person{
		startMS:   startMS,
		TripChain: tripChain,
		facetFor:  facetFor,
	}
	if idOverride != 0 {
		p.id = entity.ForceID(idOverride)
	} else {
		p.id = entity.NewID()
	}
	p.rng = rand.New(rand.NewSource(runSeed ^ int64(p.id)))
	p.Position = cell.New(Position{}, strategy)

	if len(tripChain) > 0 {
		p.Origin = tripChain[0].Origin
		p.Dest = tripChain[len(tripChain)-1].Dest
		p.installSubTrip(0)
	}
	return p
}

func (p *Person) installSubTrip(idx int) {
	p.tripIdx = idx
	st := p.TripChain[idx]
	p.Role = st.Role
	p.Behavior, p.Movement = p.facetFor(st)
	p.PathIdx = 0
	if len(st.Path) > 0 {
		p.CurrentSegment = st.Path[0]
	}
	p.Movement.FrameInit(p.startMS, p)
}

// ID, StartTimeMS, IsFake implement entity.Entity's identity facet.
func (p *Person) ID() uint64         { return p.id }
func (p *Person) StartTimeMS() int64 { return p.startMS }
func (p *Person) IsFake() bool       { return p.isFake }

// SetFake marks this Person as a ghost mirroring a remote partition — fakes
// are excluded from reporting (spec's supplemented feature, see
// SPEC_FULL.md) but still occupy space for ordering purposes.
func (p *Person) SetFake(v bool) { p.isFake = v }

// OccupantID/ProgressCM satisfy segment.Occupant so Person can sit directly
// in a LaneQueue.
func (p *Person) OccupantID() uint64 { return p.id }
func (p *Person) ProgressCM() int64  { return -p.RemainingCM }

// Rand returns this Person's private deterministic random source.
func (p *Person) Rand() *rand.Rand { return p.rng }

// Props returns the current PersonProps snapshot, per spec §4.F step b/d.
func (p *Person) Props() PersonProps {
	return PersonProps{
		Segment:   p.CurrentSegment,
		Lane:      p.CurrentLane,
		IsQueuing: p.IsQueuingState,
		IsMoving:  p.IsMovingState,
		Role:      p.Role,
	}
}

// SwitchTripChainItem advances to the next sub-trip, installing its facets
// and calling FrameInit, per spec §4.F "Trip-chain switching". Returns true
// if a next sub-trip existed (i.e. the Person should keep going), false if
// the trip chain is exhausted (the Conflux should treat this as DONE).
func (p *Person) SwitchTripChainItem() bool {
	if p.tripIdx+1 >= len(p.TripChain) {
		return false
	}
	p.installSubTrip(p.tripIdx + 1)
	return true
}

// Tick implements entity.Entity. A Conflux ticks every person it holds
// through this method — in-lane persons as well as activity performers and
// pedestrians — and it also lets a Person be ticked standalone.
func (p *Person) Tick(nowMS int64) entity.UpdateStatus {
	res := p.Movement.FrameTick(nowMS, p)
	if !res.Done {
		return entity.ContinueStatus()
	}
	if p.SwitchTripChainItem() {
		return entity.ContinueStatus()
	}
	return entity.DoneStatus()
}
