// Package metrics wires tick-duration, barrier-wait, and active-entity
// observability into prometheus/client_golang (spec §5: "observability
// only, never a dependency of correctness").
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// TickRecorder owns the histograms/gauges one Worker or WorkGroup reports
// through each tick.
type TickRecorder struct {
	TickDuration   prometheus.Histogram
	BarrierWait    prometheus.Histogram
	ActiveEntities prometheus.Gauge
}

// NewTickRecorder registers a fresh set of collectors on reg, labeled by
// name (typically a work group's name, so multiple groups don't collide).
func NewTickRecorder(reg prometheus.Registerer, name string) *TickRecorder {
	r := &TickRecorder{
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridlock",
			Subsystem: name,
			Name:      "tick_duration_seconds",
			Help:      "Wall-clock duration of one worker tick's action loop.",
			Buckets:   prometheus.DefBuckets,
		}),
		BarrierWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gridlock",
			Subsystem: name,
			Name:      "barrier_wait_seconds",
			Help:      "Time a worker spent blocked on a barrier before release.",
			Buckets:   prometheus.DefBuckets,
		}),
		ActiveEntities: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "gridlock",
			Subsystem: name,
			Name:      "active_entities",
			Help:      "Number of entities currently owned by this worker/work group.",
		}),
	}
	reg.MustRegister(r.TickDuration, r.BarrierWait, r.ActiveEntities)
	return r
}

// ObserveTick times fn as one tick's action-loop duration.
func (r *TickRecorder) ObserveTick(fn func()) {
	start := time.Now()
	fn()
	r.TickDuration.Observe(time.Since(start).Seconds())
}

// ObserveBarrierWait times fn as time spent blocked on a barrier.
func (r *TickRecorder) ObserveBarrierWait(fn func()) {
	start := time.Now()
	fn()
	r.BarrierWait.Observe(time.Since(start).Seconds())
}

// SetActiveEntities records the current owned-entity count.
func (r *TickRecorder) SetActiveEntities(n int) {
	r.ActiveEntities.Set(float64(n))
}
