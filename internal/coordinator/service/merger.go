package service

import (
	"fmt"
	"sort"

	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
)

// mergeService combines per-node responses into one ordered, paginated
// answer. Responses must be in load-balancer selection order; completion
// order never leaks into the output.
type mergeService struct{}

func newMergeService() *mergeService {
	return &mergeService{}
}

// rankedHit carries the originating per-node rank for deterministic
// tie-breaking on equal scores.
type rankedHit struct {
	hit  domain.Hit
	rank int
}

// Merge builds the aggregate result. total_hits sums each successful node's
// reported total, not the hit count actually returned; took_ms is the slowest
// participating node. Errored nodes contribute no hits but stay listed.
func (m *mergeService) Merge(responses []domain.NodeResponse, strategy string, limit uint, offset uint) *domain.AggregateResult {
	result := &domain.AggregateResult{
		NodeResponses: responses,
		Hits:          []domain.Hit{},
	}

	var succeeded []domain.NodeResponse
	for _, resp := range responses {
		if resp.TookMS > result.TookMS {
			result.TookMS = resp.TookMS
		}
		if resp.Failed() {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %s", resp.NodeID, resp.Err))
			continue
		}
		result.TotalHits += resp.TotalHits
		succeeded = append(succeeded, resp)
	}

	var merged []domain.Hit
	switch strategy {
	case config.MergeScoreAsc:
		merged = sortByScore(succeeded, true)
	case config.MergeNodeOrder:
		merged = concatenate(succeeded)
	case config.MergeRoundRobin:
		merged = interleave(succeeded)
	default:
		merged = sortByScore(succeeded, false)
	}

	if uint(len(merged)) > offset {
		end := offset + limit
		// end < offset means the sum wrapped; serve everything past offset.
		if end < offset || end > uint(len(merged)) {
			end = uint(len(merged))
		}
		result.Hits = merged[offset:end]
	}
	return result
}

// sortByScore flattens all hits and stable-sorts them by score, breaking ties
// by node id then per-node rank so identical inputs always merge identically.
func sortByScore(responses []domain.NodeResponse, ascending bool) []domain.Hit {
	ranked := make([]rankedHit, 0, totalReturned(responses))
	for _, resp := range responses {
		for i, hit := range resp.Hits {
			ranked = append(ranked, rankedHit{hit: hit, rank: i})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.hit.Score != b.hit.Score {
			if ascending {
				return a.hit.Score < b.hit.Score
			}
			return a.hit.Score > b.hit.Score
		}
		if a.hit.NodeID != b.hit.NodeID {
			return a.hit.NodeID < b.hit.NodeID
		}
		return a.rank < b.rank
	})

	out := make([]domain.Hit, len(ranked))
	for i, rh := range ranked {
		out[i] = rh.hit
	}
	return out
}

// concatenate keeps each node's hits in its own returned order, nodes in
// selection order.
func concatenate(responses []domain.NodeResponse) []domain.Hit {
	out := make([]domain.Hit, 0, totalReturned(responses))
	for _, resp := range responses {
		out = append(out, resp.Hits...)
	}
	return out
}

// interleave takes one hit at a time from each node in selection order,
// skipping exhausted nodes, until all lists are drained.
func interleave(responses []domain.NodeResponse) []domain.Hit {
	out := make([]domain.Hit, 0, totalReturned(responses))
	for round := 0; ; round++ {
		advanced := false
		for _, resp := range responses {
			if round < len(resp.Hits) {
				out = append(out, resp.Hits[round])
				advanced = true
			}
		}
		if !advanced {
			return out
		}
	}
}

func totalReturned(responses []domain.NodeResponse) int {
	n := 0
	for _, resp := range responses {
		n += len(resp.Hits)
	}
	return n
}
