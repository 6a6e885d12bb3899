// Package worker implements the per-goroutine tick driver spec §4.C
// describes: a Worker owns a subset of entities, advances each one tick,
// and rendezvous with its siblings and the owning WorkGroup at two shared
// barriers every tick.
//
// Barrier mapping (see DESIGN.md for the full resolution of spec §4.C's
// three-named-barrier pseudocode down to the two barrier objects §4.D
// actually grants a WorkGroup): `Start` releases workers into this tick's
// action loop once WorkGroup has finished staging/draining; `Done` is hit
// twice per tick — once when a worker finishes ticking+flipping (letting
// WorkGroup.Wait return), and again after WorkGroup.WaitExternAgain has let
// the Aura Manager rebuild, before the worker loops back to Start.
package worker

import (
	"context"

	"go.uber.org/zap"

	"gridlock/barrier"
	"gridlock/cell"
	"gridlock/entity"
)

// Action is the per-entity tick callback a Worker drives — spec §4.D's
// "Work-Group→Worker callback" Design Note, expressed as a Go function type.
type Action func(e entity.Entity, nowMS int64) entity.UpdateStatus

// DefaultAction simply calls e.Tick(nowMS), the common case; a kernel with
// per-entity tracing/metrics can wrap it.
func DefaultAction(e entity.Entity, nowMS int64) entity.UpdateStatus {
	return e.Tick(nowMS)
}

// Worker owns an ordered entity list (insertion order preserved, per spec
// §5 "Entity update order within one Worker is insertion order") and a
// private cell.Registry flipped once per tick.
type Worker struct {
	ID       int
	Registry *cell.Registry
	Start    *barrier.Cyclic
	Done     *barrier.Cyclic
	Action   Action
	Logger   *zap.Logger

	entities []entity.Entity
	removals chan uint64 // ids of this worker's own DONE entities, drained before the flip

	migrateIn chan entity.Entity
}

// New constructs a Worker with a fresh empty entity list.
func New(id int, registry *cell.Registry, start, done *barrier.Cyclic, action Action, logger *zap.Logger) *Worker {
	return &Worker{
		ID:        id,
		Registry:  registry,
		Start:     start,
		Done:      done,
		Action:    action,
		Logger:    logger,
		removals:  make(chan uint64, 64),
		migrateIn: make(chan entity.Entity, 64),
	}
}

// Entities returns the worker's current owned-entity slice, in insertion
// order. Callers must not mutate the returned slice.
func (w *Worker) Entities() []entity.Entity { return w.entities }

// Len reports how many entities this worker currently owns, used by
// WorkGroup's smallest-count assignment strategy.
func (w *Worker) Len() int { return len(w.entities) }

// Add appends e to this worker's owned list — called only by the WorkGroup
// during staging, between ticks.
func (w *Worker) Add(e entity.Entity) {
	w.entities = append(w.entities, e)
}

// MigrateIn queues e to be appended to this worker's list at the next
// between-tick point (spec §4.C "Migration ... between-tick only").
func (w *Worker) MigrateIn(e entity.Entity) {
	w.migrateIn <- e
}

// scheduleRemoval marks id for removal from this worker's own list at the
// next drain point (spec §4.C step 3 "For each DONE: schedule entity for
// removal").
func (w *Worker) scheduleRemoval(id uint64) {
	w.removals <- id
}

// Run drives the Worker's main loop (spec §4.C steps 1-8) until ctx is
// cancelled. It is meant to be launched as its own goroutine — one OS
// thread's worth of work, per spec §5 "One Worker = one OS thread"
// (Go schedules it onto an OS thread as needed; gridlock does not pin
// goroutines to threads, since nothing in the spec requires that beyond
// "one goroutine never touches another's entity list").
func (w *Worker) Run(ctx context.Context, nowMS func() int64) error {
	for {
		w.Start.Wait()
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := nowMS()
		for _, e := range w.entities {
			status := w.Action(e, now)
			switch status.Kind {
			case entity.Done:
				w.scheduleRemoval(e.ID())
			case entity.AddCell:
				w.Registry.Add(status.Cell)
			case entity.RemoveCell:
				w.Registry.Remove(status.Cell)
			}
		}
		w.drainRemovals()
		w.Registry.Flip()

		w.Done.Wait() // 1st hit: this worker's tick-mutation is finished
		w.Done.Wait() // 2nd hit: Aura Manager rebuild (if any) has completed

		w.applyMigrationIn()
	}
}

func (w *Worker) drainRemovals() {
	for {
		select {
		case id := <-w.removals:
			w.removeByID(id)
		default:
			return
		}
	}
}

func (w *Worker) removeByID(id uint64) {
	for i, e := range w.entities {
		if e.ID() == id {
			w.entities = append(w.entities[:i], w.entities[i+1:]...)
			return
		}
	}
}

func (w *Worker) applyMigrationIn() {
	for {
		select {
		case e := <-w.migrateIn:
			w.entities = append(w.entities, e)
		default:
			return
		}
	}
}
