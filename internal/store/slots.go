package store

import (
	"sync"

	"github.com/i474232898/ecovision/internal/climate"
)

// Slots is a concurrency-safe holder for the two result slots shown by the
// dashboard: the observation series and the trend result.
//
// Every write is tagged with the sequence number of the apply that produced
// it. A slot only accepts a write whose sequence is newer than the one it
// currently holds, so a slow response can never overwrite a newer one.
type Slots struct {
	mu sync.RWMutex

	series    []climate.Observation
	seriesSeq uint64

	trend    climate.TrendResult
	trendSeq uint64
}

// NewSlots creates empty slots: no series, no trend.
func NewSlots() *Slots {
	return &Slots{series: []climate.Observation{}}
}

// PutSeries replaces the series if seq is newer than the accepted one.
// It reports whether the write was accepted.
func (s *Slots) PutSeries(seq uint64, records []climate.Observation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.seriesSeq {
		return false
	}
	if records == nil {
		records = []climate.Observation{}
	}
	s.series = records
	s.seriesSeq = seq
	return true
}

// PutTrend replaces the trend result if seq is newer than the accepted one.
// A nil result is never stored.
func (s *Slots) PutTrend(seq uint64, result climate.TrendResult) bool {
	if result == nil {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if seq <= s.trendSeq {
		return false
	}
	s.trend = result
	s.trendSeq = seq
	return true
}

// Series returns a copy of the current series.
func (s *Slots) Series() []climate.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]climate.Observation, len(s.series))
	copy(out, s.series)
	return out
}

// Trend returns the current trend result, or nil if none was stored yet.
// The map is shared; callers must not modify it.
func (s *Slots) Trend() climate.TrendResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.trend
}

// Accepted returns the sequence numbers of the writes currently held.
func (s *Slots) Accepted() (series, trend uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.seriesSeq, s.trendSeq
}
