// Package atomicx provides lock-free numeric primitives for values that are
// read far more often than written, such as a SegmentStats's free-flow speed
// or cumulative output counters, which every neighbouring Conflux's reporting
// pass reads each tick.
package atomicx

import (
	"math"
	"sync/atomic"
	"unsafe"
)

// Notes:
// - consider gc side effects
// - consider race conditions
// This code 'checks out' despite the code-smell of using the unsafe package.
// But beware the tight guidelines, and minimize critical regions and pointers.
// For example, no unsafe pointer should be stored for more than a few lines of
// context, since the gc may move the original variable around, such that the
// original pointer no longer refers to the variable's location.

// Float64 encapsulates a float64 for non-locking atomic operations.
// This precludes the need for a mutex on a single scalar shared across many
// reader goroutines and one writer goroutine (typically a SegmentStats's
// owning Conflux).
type Float64 struct {
	val float64
}

// NewFloat64 wraps val for atomic operations.
func NewFloat64(val float64) *Float64 {
	return &Float64{val: val}
}

// Read atomically reads the float64, synchronized with main memory so the
// value is never a stale local copy.
func (af *Float64) Read() float64 {
	bits := atomic.LoadUint64((*uint64)(unsafe.Pointer(&af.val)))
	return math.Float64frombits(bits)
}

// Add atomically adds addend to the float64. If the value changed between
// the read and the compare-and-swap, the add fails (succeeded == false) and
// the caller decides whether to retry, recompute, or drop the update —
// retry-until-success silently reapplies stale deltas, which is wrong for an
// accumulator like cumulative output.
func (af *Float64) Add(addend float64) (newVal float64, succeeded bool) {
	old := af.Read()
	newVal = old + addend
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}

// Set atomically sets the float64, returns true on success.
func (af *Float64) Set(newVal float64) (succeeded bool) {
	old := af.Read()
	succeeded = atomic.CompareAndSwapUint64(
		(*uint64)(unsafe.Pointer(&af.val)),
		math.Float64bits(old),
		math.Float64bits(newVal))
	return
}
