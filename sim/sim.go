// Package sim wires every kernel package into a runnable simulation: the
// config, road network, work groups, message bus, aura manager, dashboard,
// and metrics all meet here. It is the gridlock analogue of the teacher's
// main.go runApp/Train pairing — one place that owns the root context and
// drives the tick loop, leaving every other package ignorant of the others.
package sim

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"gridlock/aura"
	"gridlock/conflux"
	"gridlock/dashboard"
	"gridlock/entity"
	"gridlock/messagebus"
	"gridlock/metrics"
	"gridlock/person"
	"gridlock/report"
	"gridlock/roadnetwork"
	"gridlock/simconfig"
	"gridlock/workgroup"
)

// Kernel owns one simulation run: its work groups, the shared infrastructure
// they report through, and the tick loop that drives them.
type Kernel struct {
	cfg     *simconfig.Config
	network *roadnetwork.Network

	confluxes []*conflux.Conflux
	groups    []*workgroup.WorkGroup
	recorders []*metrics.TickRecorder

	bus        *messagebus.Bus
	msgPending *entity.PendingQueue
	aura       *aura.Manager
	hub        *dashboard.Hub
	sink       *report.Sink
	logger     *zap.Logger

	tickIdx int64 // current base tick, advanced by Run's loop

	fault atomic.Bool
}

// New assembles a Kernel from a validated config, a populated network, the
// confluxes to schedule (one per intersection node, already wired with
// Downstream links by the caller), and the infrastructure collaborators.
// confluxes are distributed round-robin across cfg.WorkGroups.
func New(
	cfg *simconfig.Config,
	network *roadnetwork.Network,
	confluxes []*conflux.Conflux,
	sink *report.Sink,
	hub *dashboard.Hub,
	reg prometheus.Registerer,
	logger *zap.Logger,
) (*Kernel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("sim: invalid config: %w", err)
	}
	if len(cfg.WorkGroups) == 0 {
		return nil, fmt.Errorf("sim: config has no work groups")
	}

	k := &Kernel{
		cfg:        cfg,
		network:    network,
		confluxes:  confluxes,
		bus:        messagebus.New(),
		msgPending: entity.NewPendingQueue(),
		aura:       aura.New(),
		hub:        hub,
		sink:       sink,
		logger:     logger,
	}

	pendings := make([]*entity.PendingQueue, len(cfg.WorkGroups))
	for i, gc := range cfg.WorkGroups {
		pendings[i] = entity.NewPendingQueue()
		group := workgroup.New(gc.Name, gc.NumWorkers, gc.TickStep, workgroup.LeastLoaded, pendings[i], logger)
		group.InitWorkers(k.tickEntity)
		k.groups = append(k.groups, group)
		k.recorders = append(k.recorders, metrics.NewTickRecorder(reg, gc.Name))
	}

	for i, c := range confluxes {
		gi := i % len(pendings)
		pendings[gi].Push(entity.PendingEntity{StartTime: c.StartTimeMS(), Entity: c})
	}

	return k, nil
}

// tickEntity is the worker.Action every group's Workers run: tick e and
// recover from any panic a role's Tick raises, turning it into a Done
// status with a logged cause (spec §7 "Handler exception... caught by the
// Worker").
func (k *Kernel) tickEntity(e entity.Entity, nowMS int64) (status entity.UpdateStatus) {
	defer func() {
		if r := recover(); r != nil {
			k.logger.Error("entity tick panicked, marking done",
				zap.Uint64("id", e.ID()), zap.Any("recover", r))
			status = entity.DoneStatus()
		}
	}()
	return e.Tick(nowMS)
}

// Run drives the kernel's tick loop until ctx is cancelled or endTick is
// reached, per spec §4.A/§4.B's outer loop: stage, tick every group, flip,
// rebuild the aura index, report, repeat.
func (k *Kernel) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	for _, g := range k.groups {
		g.StartAll(runCtx, k.nowMS)
	}
	defer func() {
		for _, g := range k.groups {
			g.Stop()
		}
		for _, g := range k.groups {
			g.Join()
		}
		_ = k.bus.Close()
	}()

	for k.tickIdx < k.cfg.EndTick {
		select {
		case <-runCtx.Done():
			return runCtx.Err()
		default:
		}
		if k.fault.Load() {
			return fmt.Errorf("sim: latched fault flag set, aborting run at tick %d", k.tickIdx)
		}

		k.tickIdx++

		for i, g := range k.groups {
			recorder := k.recorders[i]
			group := g
			recorder.ObserveTick(func() { group.Wait(k.cfg.BaseGranMS) })
		}

		k.rebuildAura()
		k.flushReports()

		for _, g := range k.groups {
			g.WaitExternAgain()
		}

		if err := k.bus.DeliverScheduled(k.msgPending, k.nowMS()); err != nil {
			k.logger.Warn("message bus delivery failed", zap.Error(err))
		}
	}

	return nil
}

// nowMS returns the simulation clock in milliseconds since simStartTime,
// read by every Worker right after its Start barrier releases.
func (k *Kernel) nowMS() int64 {
	return atomic.LoadInt64(&k.tickIdx) * k.cfg.BaseGranMS
}

// rebuildAura gathers every live person across all confluxes and rebuilds
// the spatial index, single-writer, between the two external barrier hits
// (spec §4.H).
func (k *Kernel) rebuildAura() {
	var all []*person.Person
	for _, c := range k.confluxes {
		all = append(all, c.Persons()...)
	}
	k.aura.Rebuild(all)
}

// flushReports writes this tick's position and travel-time records to the
// sink and publishes a Snapshot to the dashboard hub.
func (k *Kernel) flushReports() {
	now := k.nowMS()
	var positions []report.PositionRecord
	var travelTimes []report.TravelTimeRecord
	for _, c := range k.confluxes {
		positions = append(positions, c.PositionRecords(now)...)
		travelTimes = append(travelTimes, c.TravelTimeRecords(now)...)
	}
	for _, pos := range positions {
		if err := k.sink.WritePosition(pos); err != nil {
			k.logger.Warn("failed writing position record", zap.Error(err))
		}
	}
	for _, tt := range travelTimes {
		if err := k.sink.WriteTravelTime(tt); err != nil {
			k.logger.Warn("failed writing travel-time record", zap.Error(err))
		}
	}
	k.hub.Publish(dashboard.FromReports(now, positions, travelTimes))
}

// Fault latches the kernel's fault flag, causing Run to stop at the next
// tick boundary (spec §7 invariant-violation error class).
func (k *Kernel) Fault() {
	k.fault.Store(true)
}

// Bus returns the kernel's message bus, for wiring role Behaviors that need
// to publish or subscribe.
func (k *Kernel) Bus() *messagebus.Bus { return k.bus }

// Aura returns the kernel's spatial index, read-only for role Behaviors
// doing proximity queries (spec §4.H).
func (k *Kernel) Aura() *aura.Manager { return k.aura }
