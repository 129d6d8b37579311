package analysis

import (
	"sort"
	"sync"
	"time"

	"ipreporter/internal/models"
)

// SenderStat holds how often one address announced itself.
type SenderStat struct {
	IP      string
	MAC     string
	Matches int
}

// Counters is a point-in-time copy of the capture counters.
type Counters struct {
	FramesRead int64
	Matches    int64
	Timeouts   int64
	ReadErrors int64
	Sessions   int64
}

// CaptureStats tracks what the capture loop has seen. The loop writes,
// the UI reads; every method is safe for concurrent use.
type CaptureStats struct {
	mu       sync.Mutex
	counters Counters

	windowFrames  int64
	windowMatches int64
	lastTick      time.Time

	senders map[string]*SenderStat
}

// NewCaptureStats creates an empty CaptureStats.
func NewCaptureStats() *CaptureStats {
	return &CaptureStats{
		lastTick: time.Now(),
		senders:  make(map[string]*SenderStat),
	}
}

// SessionStarted counts a new capture session.
func (s *CaptureStats) SessionStarted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Sessions++
}

// FrameRead counts one frame returned by the source.
func (s *CaptureStats) FrameRead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.FramesRead++
	s.windowFrames++
}

// Timeout counts a read that returned nothing.
func (s *CaptureStats) Timeout() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.Timeouts++
}

// ReadError counts a failed read.
func (s *CaptureStats) ReadError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.ReadErrors++
}

// Matched counts rec against its sender.
func (s *CaptureStats) Matched(rec models.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.counters.Matches++
	s.windowMatches++

	// Keyed by both addresses: a re-addressed device shows up as a new sender.
	key := rec.SourceIP + "|" + rec.SourceMAC
	st, ok := s.senders[key]
	if !ok {
		st = &SenderStat{IP: rec.SourceIP, MAC: rec.SourceMAC}
		s.senders[key] = st
	}
	st.Matches++
}

// Counters returns a copy of the running totals.
func (s *CaptureStats) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// GetRates returns frames and matches per second since the last call.
func (s *CaptureStats) GetRates() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	duration := now.Sub(s.lastTick).Seconds()
	if duration == 0 {
		return 0, 0
	}

	fps := float64(s.windowFrames) / duration
	mps := float64(s.windowMatches) / duration

	// Reset window
	s.windowFrames = 0
	s.windowMatches = 0
	s.lastTick = now

	return fps, mps
}

// DistinctSenders returns how many different (IP, MAC) pairs have matched.
func (s *CaptureStats) DistinctSenders() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.senders)
}

// GetTopSenders returns the top N senders by match count.
func (s *CaptureStats) GetTopSenders(limit int) []SenderStat {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make([]SenderStat, 0, len(s.senders))
	for _, st := range s.senders {
		stats = append(stats, *st)
	}

	// Sort descending by matches, then by IP for a stable view.
	sort.Slice(stats, func(i, j int) bool {
		if stats[i].Matches != stats[j].Matches {
			return stats[i].Matches > stats[j].Matches
		}
		return stats[i].IP < stats[j].IP
	})

	if limit >= 0 && len(stats) > limit {
		return stats[:limit]
	}
	return stats
}
