package domain

import "time"

// NodeStats tracks rolling health and performance counters for one node.
// Mutated only through the registry; callers always receive copies.
type NodeStats struct {
	SuccessCount   uint64    `json:"success_count"`
	FailureCount   uint64    `json:"failure_count"`
	TotalLatencyMS uint64    `json:"total_latency_ms"`
	LastChecked    time.Time `json:"last_checked"`
}

// SuccessRate returns the fraction of successful calls, 1.0 when unproven.
func (s NodeStats) SuccessRate() float64 {
	total := s.SuccessCount + s.FailureCount
	if total == 0 {
		return 1.0
	}
	return float64(s.SuccessCount) / float64(total)
}

// AverageLatencyMS returns the mean latency of successful calls.
func (s NodeStats) AverageLatencyMS() float64 {
	if s.SuccessCount == 0 {
		return 0
	}
	return float64(s.TotalLatencyMS) / float64(s.SuccessCount)
}

// NodeHandle is the identity plus runtime state of one search node.
// ID is immutable after creation; Weight, Active and Stats mutate in place
// under the registry's lock.
type NodeHandle struct {
	ID      string    `json:"id"`
	Locator string    `json:"locator"`
	Weight  float64   `json:"weight"`
	Active  bool      `json:"active"`
	Stats   NodeStats `json:"stats"`
}

// Clone returns an independent copy safe to hand outside the registry.
func (n NodeHandle) Clone() NodeHandle {
	return n
}

// SearchStats is a read-only snapshot of process-wide search counters.
type SearchStats struct {
	TotalSearches         uint64  `json:"total_searches"`
	SuccessfulSearches    uint64  `json:"successful_searches"`
	FailedSearches        uint64  `json:"failed_searches"`
	AverageResponseTimeMS float64 `json:"average_response_time_ms"`
}
