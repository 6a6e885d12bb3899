// Package workgroup implements spec §4.D: a fleet of Workers sharing two
// barriers and a round-robin/least-loaded staging assignment. WorkGroup keeps
// no pending-removal list of its own and offers no way to schedule an entity
// for removal; each Worker removes its own DONE entities from its own list.
package workgroup

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"gridlock/barrier"
	"gridlock/cell"
	"gridlock/entity"
	"gridlock/worker"
)

// AssignStrategy picks which worker a newly staged entity goes to.
type AssignStrategy int

const (
	// RoundRobin cycles through workers in order (spec §4.D default).
	RoundRobin AssignStrategy = iota
	// LeastLoaded assigns to the worker with the fewest owned entities
	// (spec §4.D "addAgentInWorker").
	LeastLoaded
)

// WorkGroup owns N Workers and the two barriers of arity N+1 they share
// with the main thread (spec §4.D).
type WorkGroup struct {
	Name     string
	Workers  []*worker.Worker
	Start    *barrier.Cyclic
	Done     *barrier.Cyclic
	TickStep int64 // base ticks per WorkGroup tick, spec §4.D "tickStep"
	Strategy AssignStrategy

	pending *entity.PendingQueue

	offset              int64
	nextTimeTickToStage int64
	nextWorkerID        int

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a WorkGroup of size workers, all sharing one Start/Done
// barrier pair of arity size+1 (the +1 being this WorkGroup's own calling
// goroutine).
func New(name string, size int, tickStep int64, strategy AssignStrategy, pending *entity.PendingQueue, logger *zap.Logger) *WorkGroup {
	start := barrier.New(size + 1)
	done := barrier.New(size + 1)
	wg := &WorkGroup{
		Name:     name,
		Start:    start,
		Done:     done,
		TickStep: tickStep,
		Strategy: strategy,
		pending:  pending,
		offset:   tickStep,
	}
	for i := 0; i < size; i++ {
		reg := cell.NewRegistry()
		wg.Workers = append(wg.Workers, worker.New(i, reg, start, done, worker.DefaultAction, logger))
	}
	return wg
}

// InitWorkers exists for parity with spec §4.D's `initWorkers(action,
// loader)`: workers are already constructed by New, so this only lets a
// caller override the per-entity action (e.g. to add metrics/report
// hooks) before StartAll launches the goroutines.
func (g *WorkGroup) InitWorkers(action worker.Action) {
	for _, w := range g.Workers {
		w.Action = action
	}
}

// StartAll launches one goroutine per Worker and resets staging state
// (spec §4.D "startAll()").
func (g *WorkGroup) StartAll(ctx context.Context, nowMS func() int64) {
	ctx, g.cancel = context.WithCancel(ctx)
	g.nextTimeTickToStage = 0
	g.offset = g.TickStep
	for _, w := range g.Workers {
		w := w
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			_ = w.Run(ctx, nowMS)
		}()
	}
}

// Stop cancels the workers' context; callers should still let them reach
// their next barrier wait to unblock (spec has no mid-tick cancellation —
// see spec §5 "Cancellation & timeouts").
func (g *WorkGroup) Stop() {
	if g.cancel != nil {
		g.cancel()
	}
}

// Wait is called by the main thread every base tick (spec §4.D "wait()").
func (g *WorkGroup) Wait(baseTickMS int64) {
	g.offset--
	if g.offset > 0 {
		return
	}
	g.offset = g.TickStep
	g.nextTimeTickToStage += g.TickStep

	g.stageEntities(g.nextTimeTickToStage * baseTickMS)

	g.Start.Wait()
	g.Done.Wait()
}

// WaitExternAgain is the second external-barrier hit, called after the
// caller has rebuilt the Aura Manager's index (spec §4.D, §4.H).
func (g *WorkGroup) WaitExternAgain() {
	g.Done.Wait()
}

// stageEntities moves every pending entity whose StartTimeMS ≤ nextTickMS
// onto a worker, per spec §4.D "stageEntities()".
func (g *WorkGroup) stageEntities(nextTickMS int64) {
	for {
		top, ok := g.pending.PeekTop()
		if !ok {
			return
		}
		var pe entity.PendingEntity
		switch v := top.(type) {
		case entity.PendingEntity:
			pe = v
		case *entity.PendingEntity:
			pe = *v
		default:
			return
		}
		if pe.StartTime > nextTickMS {
			return
		}
		g.pending.Pop()
		g.assign(pe.Entity)
	}
}

// registryBinder is implemented by entities (Conflux) that own their own
// Shared Cells and need the ticking Worker's cell.Registry to register
// them in, per spec §4.A/§4.B. Most entities don't need it — a plain type
// assertion keeps WorkGroup ignorant of which concrete entities care.
type registryBinder interface {
	BindRegistry(*cell.Registry)
}

func (g *WorkGroup) assign(e entity.Entity) {
	var w *worker.Worker
	switch g.Strategy {
	case LeastLoaded:
		best := 0
		for i, wk := range g.Workers {
			if wk.Len() < g.Workers[best].Len() {
				best = i
			}
		}
		w = g.Workers[best]
	default:
		w = g.Workers[g.nextWorkerID]
		g.nextWorkerID = (g.nextWorkerID + 1) % len(g.Workers)
	}
	w.Add(e)
	if b, ok := e.(registryBinder); ok {
		b.BindRegistry(w.Registry)
	}
}

// Join blocks until every worker goroutine has returned (spec §8 scenario
// 6 "all worker threads joined").
func (g *WorkGroup) Join() {
	g.wg.Wait()
}
