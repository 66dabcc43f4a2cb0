package aggregator

import (
	"maps"
	"sync"
)

// Stats names for the phases that are not fetchers.
const (
	StatWebSearch  = "web_search"
	StatCalculated = "calculated"
)

// Stats are process-wide counters shared by concurrent calls for
// different symbols.
type Stats struct {
	mu              sync.Mutex
	fetches         int64
	basicsOK        int64
	basicsFailed    int64
	gapsFilled      int64
	sources         map[string]int64
	avgCoverage     float64
	coverageSamples int64
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Fetches      int64            `json:"fetches"`
	BasicsOK     int64            `json:"basics_ok"`
	BasicsFailed int64            `json:"basics_failed"`
	AvgCoverage  float64          `json:"avg_coverage"`
	Sources      map[string]int64 `json:"sources"`
	GapsFilled   int64            `json:"gaps_filled"`
}

func newStats(sources []string) *Stats {
	s := &Stats{sources: make(map[string]int64)}
	for _, name := range sources {
		s.sources[name] = 0
	}
	s.sources[StatWebSearch] = 0
	s.sources[StatCalculated] = 0
	return s
}

func (s *Stats) fetch() {
	s.mu.Lock()
	s.fetches++
	s.mu.Unlock()
}

func (s *Stats) source(name string) {
	s.mu.Lock()
	s.sources[name]++
	s.mu.Unlock()
}

// complete records the outcome of a call that reached validation.
func (s *Stats) complete(basicsOK bool, gapsFilled int, coverage float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if basicsOK {
		s.basicsOK++
	} else {
		s.basicsFailed++
	}
	s.gapsFilled += int64(gapsFilled)
	s.coverageSamples++
	s.avgCoverage += (coverage - s.avgCoverage) / float64(s.coverageSamples)
}

// Snapshot returns a copy of the counters.
func (s *Stats) Snapshot() StatsSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return StatsSnapshot{
		Fetches:      s.fetches,
		BasicsOK:     s.basicsOK,
		BasicsFailed: s.basicsFailed,
		AvgCoverage:  s.avgCoverage,
		Sources:      maps.Clone(s.sources),
		GapsFilled:   s.gapsFilled,
	}
}
