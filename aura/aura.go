// Package aura implements the Aura Manager (spec §3/§4.H): a read-mostly
// spatial index answering "agents within rectangle R", rebuilt only
// between the two external-barrier hits of a tick (spec §5, single
// writer). Backed by github.com/tidwall/rtree, the same vendor family the
// wider pack reaches for this problem (ghjramos-aistore's go.mod pulls in
// tidwall/rtred+grect+tinyqueue behind buntdb for spatial indexing).
package aura

import (
	"sync"

	"github.com/tidwall/rtree"

	"gridlock/person"
)

// Manager owns one RTree keyed by each Person's buffered X/Y centimetre
// position. AgentsInRect may be called from any goroutine at any time;
// Rebuild must only be called by the WorkGroup's aura phase, between the
// two external barrier hits, since it replaces the whole tree (spec §4.H
// "single-writer").
type Manager struct {
	mu   sync.RWMutex
	tree rtree.RTreeG[*person.Person]
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{}
}

// Rebuild discards the previous index and re-inserts every live person's
// current buffered position. Called exactly once per tick, after all
// workers have flipped their registries and before the next tick's Start
// barrier releases them (spec §5 "rebuilt only between the two external
// barrier hits").
func (m *Manager) Rebuild(persons []*person.Person) {
	var next rtree.RTreeG[*person.Person]
	for _, p := range persons {
		if p.IsFake() {
			continue // ghost entities mirror a remote partition, not reported
		}
		pos := p.Position.Get()
		pt := [2]float64{float64(pos.XCM), float64(pos.YCM)}
		next.Insert(pt, pt, p)
	}

	m.mu.Lock()
	m.tree = next
	m.mu.Unlock()
}

// AgentsInRect returns every person whose last-rebuilt position falls
// within [min, max] (inclusive), excluding the person whose id equals
// excludeID (0 means exclude nothing) — the common case of a person
// querying its own surroundings.
func (m *Manager) AgentsInRect(min, max [2]int64, excludeID uint64) []*person.Person {
	m.mu.RLock()
	defer m.mu.RUnlock()

	minF := [2]float64{float64(min[0]), float64(min[1])}
	maxF := [2]float64{float64(max[0]), float64(max[1])}

	var out []*person.Person
	m.tree.Search(minF, maxF, func(_, _ [2]float64, p *person.Person) bool {
		if p.OccupantID() != excludeID {
			out = append(out, p)
		}
		return true
	})
	return out
}

// Len reports how many persons the last Rebuild indexed.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tree.Len()
}
