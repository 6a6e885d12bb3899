// Package dashboard fans live tick output out to websocket clients, adapted
// from the teacher's server/fastview and server/root_view machinery: the
// generic per-connection publisher (client.go) is reused almost verbatim,
// while root_view's per-cell template composition is dropped in favor of a
// single aggregate JSON stream (spec §6 "fanned out live to the dashboard
// websocket view").
package dashboard

import (
	"sync"
	"time"

	"gridlock/report"
)

// Snapshot is one tick's worth of reportable state, the DataModel pushed
// into the Hub. It mirrors the two record kinds report.Sink persists so the
// dashboard never maintains a parallel view of the same data (spec §6).
type Snapshot struct {
	TickMS      int64
	Positions   []report.PositionRecord
	TravelTimes []report.TravelTimeRecord
}

// Hub is a single-producer, many-consumer broadcaster of Snapshots. Workers
// or the work group call Publish once per reporting interval; each
// connected websocket client owns a Subscribe'd buffered channel that
// Publish feeds with a non-blocking send, matching the teacher's "drop
// updates when receiving too quickly" idiom in fastview's client.publish
// rather than ever blocking the producer on a slow subscriber.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int]chan Snapshot
	nextID      int
	bufferSize  int
}

// NewHub returns a Hub whose per-subscriber channels are buffered to
// bufferSize; a subscriber that falls bufferSize updates behind has its
// oldest pending update dropped rather than stalling Publish.
func NewHub(bufferSize int) *Hub {
	if bufferSize < 1 {
		bufferSize = 1
	}
	return &Hub{
		subscribers: make(map[int]chan Snapshot),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new listener and returns its update channel plus an
// unsubscribe func the caller must invoke when the connection closes.
func (h *Hub) Subscribe() (<-chan Snapshot, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Snapshot, h.bufferSize)
	h.subscribers[id] = ch

	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if c, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(c)
		}
	}
}

// Publish fans snap out to every current subscriber. A subscriber whose
// buffer is full has its oldest queued snapshot discarded and replaced by
// snap, since snapshots are idempotent full-state updates, not deltas.
func (h *Hub) Publish(snap Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subscribers {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// SubscriberCount reports the number of currently connected clients.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// FromReports assembles a Snapshot at tickMS from whatever position and
// travel-time records a worker or conflux reported this tick.
func FromReports(tickMS int64, positions []report.PositionRecord, travelTimes []report.TravelTimeRecord) Snapshot {
	return Snapshot{TickMS: tickMS, Positions: positions, TravelTimes: travelTimes}
}

// throttleInterval mirrors the teacher's pubResolution: a client drops every
// snapshot that arrives sooner than this after the last one it sent; a
// dropped snapshot is not sent later.
const throttleInterval = 100 * time.Millisecond
