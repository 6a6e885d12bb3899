package cell

import "sync"

// Registry tracks which cells a single Worker owns and flips them all in one
// batch per tick, avoiding a per-cell atomic cost for every Shared Cell in
// the simulation. Add/remove requests made during tick N take effect at the
// start of tick N+1 — see spec §4.B.
type Registry struct {
	mu       sync.Mutex
	owned    map[Flippable]struct{}
	toAdd    map[Flippable]struct{}
	toRemove map[Flippable]struct{}
}

// NewRegistry returns an empty Registry for one Worker.
func NewRegistry() *Registry {
	return &Registry{
		owned:    make(map[Flippable]struct{}),
		toAdd:    make(map[Flippable]struct{}),
		toRemove: make(map[Flippable]struct{}),
	}
}

// Add registers c for addition at the next Flip. An entity may only request
// registration of its own cells; gridlock does not enforce that boundary
// here (it has no notion of "owner" at this layer) — entity.Entity
// implementations are responsible for never handing another entity's cell
// to their own registry.
func (r *Registry) Add(c Flippable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toAdd[c] = struct{}{}
}

// Remove schedules c for removal at the next Flip.
func (r *Registry) Remove(c Flippable) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toRemove[c] = struct{}{}
}

// Flip applies pending removes, then pending adds, then flips every
// remaining owned cell. Called once per tick by the owning Worker, after
// that Worker has finished updating all of its entities (spec §4.C step 4).
func (r *Registry) Flip() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for c := range r.toRemove {
		delete(r.owned, c)
	}
	clear(r.toRemove)

	for c := range r.toAdd {
		r.owned[c] = struct{}{}
	}
	clear(r.toAdd)

	for c := range r.owned {
		c.flip()
	}
}

// Len reports how many cells this registry currently owns; used by tests
// verifying no cells leak across a worker's lifetime.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.owned)
}
