package service

import (
	"sync"

	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
)

// StatsRegistry keeps process-wide search counters. One mutation point per
// completed search; readers get value snapshots, never a live reference.
type StatsRegistry struct {
	mu sync.Mutex

	totalSearches      uint64
	successfulSearches uint64
	failedSearches     uint64
	averageResponseMS  float64
}

// NewStatsRegistry creates a zeroed stats registry.
func NewStatsRegistry() *StatsRegistry {
	return &StatsRegistry{}
}

// RecordSearch folds one completed search into the counters. The average is a
// running mean, never recomputed from history.
func (s *StatsRegistry) RecordSearch(success bool, latencyMS uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalSearches++
	if success {
		s.successfulSearches++
	} else {
		s.failedSearches++
	}
	s.averageResponseMS += (float64(latencyMS) - s.averageResponseMS) / float64(s.totalSearches)
}

// Snapshot returns the current counters as an immutable value.
func (s *StatsRegistry) Snapshot() domain.SearchStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	return domain.SearchStats{
		TotalSearches:         s.totalSearches,
		SuccessfulSearches:    s.successfulSearches,
		FailedSearches:        s.failedSearches,
		AverageResponseTimeMS: s.averageResponseMS,
	}
}
