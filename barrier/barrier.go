// Package barrier implements a reusable (cyclic) rendezvous barrier: exactly
// N parties must call Wait before any of them proceeds, and the barrier
// resets itself for the next tick automatically. No teacher or pack example
// models a barrier directly — this is the standard Go shape for one, built
// on sync.Cond with a generation counter so a party that arrives late for
// generation g+1 is never confused with a straggler from generation g.
//
// The WorkGroup uses a pair of these per spec §4.D: one gates the start of
// each Worker's per-tick update pass, the other gates the Aura Manager
// rebuild that must see every Worker's buffered writes before it runs.
package barrier

import "sync"

// Cyclic is a barrier of fixed arity n. Every call to Wait blocks until n
// calls have been made for the current generation, then all n callers are
// released together and the generation advances.
type Cyclic struct {
	mu         sync.Mutex
	cond       *sync.Cond
	n          int
	arrived    int
	generation uint64
}

// New returns a Cyclic barrier requiring n participants per generation. n
// must be the fixed "arity" named in spec §8 invariant 7 (N+1 participants:
// N workers plus the main/WorkGroup thread).
func New(n int) *Cyclic {
	b := &Cyclic{n: n}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Wait blocks the calling goroutine until n goroutines (including this one)
// have called Wait for the current generation, then returns. It is safe to
// call Wait again immediately after it returns — that call belongs to the
// next generation.
func (b *Cyclic) Wait() {
	b.mu.Lock()
	defer b.mu.Unlock()

	gen := b.generation
	b.arrived++
	if b.arrived == b.n {
		// Last arrival: advance the generation and wake everyone.
		b.arrived = 0
		b.generation++
		b.cond.Broadcast()
		return
	}

	for gen == b.generation {
		b.cond.Wait()
	}
}

// Arity returns n, the number of participants this barrier requires.
func (b *Cyclic) Arity() int {
	return b.n
}

// Generation reports how many full rendezvous have completed so far; the
// barrier tests use it to count completed generations.
func (b *Cyclic) Generation() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.generation
}
