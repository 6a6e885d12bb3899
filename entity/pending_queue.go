package entity

import "container/heap"

// Timed is anything the PendingQueue can order: a not-yet-started Entity, or
// (per the Design Notes' "unify as one queue over a sum type" suggestion) a
// scheduled message-bus Event. Ties break on ID, giving a stable strict-weak
// ordering (spec §3 "Pending Entity... ties broken by id").
type Timed interface {
	When() int64
	SeqID() uint64
}

// PendingEntity pairs an Entity with the startTime it was registered under.
// It is the concrete Timed most callers push.
type PendingEntity struct {
	Entity    Entity
	StartTime int64
}

func (p PendingEntity) When() int64  { return p.StartTime }
func (p PendingEntity) SeqID() uint64 { return p.Entity.ID() }

// pqHeap is the container/heap.Interface backing PendingQueue.
type pqHeap []Timed

func (h pqHeap) Len() int { return len(h) }
func (h pqHeap) Less(i, j int) bool {
	if h[i].When() != h[j].When() {
		return h[i].When() < h[j].When()
	}
	return h[i].SeqID() < h[j].SeqID()
}
func (h pqHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *pqHeap) Push(x any)   { *h = append(*h, x.(Timed)) }
func (h *pqHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// PendingQueue is a single-producer-single-consumer min-heap of Timed items,
// ordered by (startTime, id) — spec §4.E. It is drained only by the
// WorkGroup's staging pass and is never accessed directly by Workers.
type PendingQueue struct {
	h pqHeap
}

// NewPendingQueue returns an empty queue.
func NewPendingQueue() *PendingQueue {
	pq := &PendingQueue{}
	heap.Init(&pq.h)
	return pq
}

// Push adds item to the queue.
func (pq *PendingQueue) Push(item Timed) {
	heap.Push(&pq.h, item)
}

// PeekTop returns the earliest item without removing it, or ok=false if
// empty.
func (pq *PendingQueue) PeekTop() (item Timed, ok bool) {
	if len(pq.h) == 0 {
		return nil, false
	}
	return pq.h[0], true
}

// Pop removes and returns the earliest item, or ok=false if empty.
func (pq *PendingQueue) Pop() (item Timed, ok bool) {
	if len(pq.h) == 0 {
		return nil, false
	}
	return heap.Pop(&pq.h).(Timed), true
}

// Empty reports whether the queue has no items left.
func (pq *PendingQueue) Empty() bool {
	return len(pq.h) == 0
}

// Len reports the number of items currently queued.
func (pq *PendingQueue) Len() int {
	return len(pq.h)
}
