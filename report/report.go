// Package report defines the two output record shapes spec §6 names and a
// bounded in-memory cache of recent travel-time records, backed by
// hashicorp/golang-lru/v2 so a long-running kernel never accumulates
// unbounded report history (spec §5 "eviction only drops old report rows,
// never live simulation state").
package report

import (
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// PositionRecord is one person's position at one reporting frame.
type PositionRecord struct {
	Role    string
	AgentID uint64
	Frame   int64
	XCM     int64
	YCM     int64
	Extra   map[string]string
}

// TravelTimeRecord summarizes one segment's travel time over a reporting
// window.
type TravelTimeRecord struct {
	SegmentID        uint64
	StartTickMS      int64
	EndTickMS        int64
	MeanTravelTimeMS float64
	SampleCount      int
}

// Sink writes PositionRecords and TravelTimeRecords to an io.Writer as
// CSV-ish one-record-per-line text (spec §6 outputs), and keeps the most
// recent travel-time records in a bounded LRU cache so the dashboard and
// CLI can answer "what's recent" without scanning the full write log.
type Sink struct {
	mu  sync.Mutex
	out io.Writer

	travelTimeCache *lru.Cache[uint64, TravelTimeRecord]
}

// NewSink wraps out, with a travel-time cache bounded to capacity entries
// (one per segment id).
func NewSink(out io.Writer, capacity int) (*Sink, error) {
	cache, err := lru.New[uint64, TravelTimeRecord](capacity)
	if err != nil {
		return nil, fmt.Errorf("report: constructing travel-time cache: %w", err)
	}
	return &Sink{out: out, travelTimeCache: cache}, nil
}

// WritePosition emits one position record line.
func (s *Sink) WritePosition(r PositionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := fmt.Fprintf(s.out, "POS,%s,%d,%d,%d,%d\n", r.Role, r.AgentID, r.Frame, r.XCM, r.YCM)
	return err
}

// WriteTravelTime emits one travel-time record line and updates the
// bounded recent-records cache (most recent record per segment wins).
func (s *Sink) WriteTravelTime(r TravelTimeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.travelTimeCache.Add(r.SegmentID, r)
	_, err := fmt.Fprintf(s.out, "TT,%d,%d,%d,%.3f,%d\n",
		r.SegmentID, r.StartTickMS, r.EndTickMS, r.MeanTravelTimeMS, r.SampleCount)
	return err
}

// RecentTravelTime returns the most recently written travel-time record
// for segID, if still in cache.
func (s *Sink) RecentTravelTime(segID uint64) (TravelTimeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.travelTimeCache.Get(segID)
}
