package service

import (
	"sort"
	"sync"
	"sync/atomic"

	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
)

// balanceService orders the node snapshot for one search round.
//
// Every strategy returns the full active set: merged total_hits is only
// correct when all nodes answer, so non-broadcast strategies reorder the
// broadcast rather than shrink it. The ordering drives node_order merging and
// gives operators a knob for probe/priority behavior without losing results.
type balanceService struct {
	cursor atomic.Uint64

	wrrMu      sync.Mutex
	wrrCurrent map[string]float64

	inflight sync.Map // node id -> *atomic.Int64
}

func newBalanceService() *balanceService {
	return &balanceService{
		wrrCurrent: make(map[string]float64),
	}
}

// Select orders the snapshot according to strategy. Pure in its inputs except
// for the round-robin cursor and smooth-WRR state, which advance atomically
// across concurrent calls.
func (b *balanceService) Select(snapshot []domain.NodeHandle, strategy string) []domain.NodeHandle {
	if len(snapshot) == 0 {
		return nil
	}

	out := make([]domain.NodeHandle, len(snapshot))
	copy(out, snapshot)

	switch strategy {
	case config.BalanceRoundRobin:
		// Reduce in uint64 so a long-lived cursor never turns negative.
		start := int((b.cursor.Add(1) - 1) % uint64(len(out)))
		rotated := make([]domain.NodeHandle, 0, len(out))
		rotated = append(rotated, out[start:]...)
		rotated = append(rotated, out[:start]...)
		return rotated

	case config.BalanceWeightedRoundRobin:
		return b.smoothWeightedOrder(out)

	case config.BalanceLeastConnections:
		sort.SliceStable(out, func(i, j int) bool {
			li, lj := b.inflightCount(out[i].ID), b.inflightCount(out[j].ID)
			if li != lj {
				return li < lj
			}
			return out[i].ID < out[j].ID
		})
		return out

	case config.BalanceHealthBased:
		sort.SliceStable(out, func(i, j int) bool {
			ri, rj := out[i].Stats.SuccessRate(), out[j].Stats.SuccessRate()
			if ri != rj {
				return ri > rj
			}
			ai, aj := out[i].Stats.AverageLatencyMS(), out[j].Stats.AverageLatencyMS()
			if ai != aj {
				return ai < aj
			}
			return out[i].ID < out[j].ID
		})
		return out

	default: // broadcast keeps snapshot order
		return out
	}
}

// smoothWeightedOrder orders nodes by smooth weighted round-robin: every call
// each node accumulates its weight, the ordering follows the accumulated
// totals, and only the lead pays the total back. Over many searches each node
// leads proportionally to its weight. State persists across calls by node id.
func (b *balanceService) smoothWeightedOrder(nodes []domain.NodeHandle) []domain.NodeHandle {
	b.wrrMu.Lock()
	defer b.wrrMu.Unlock()

	totalWeight := 0.0
	for _, n := range nodes {
		totalWeight += n.Weight
		b.wrrCurrent[n.ID] += n.Weight
	}

	out := make([]domain.NodeHandle, len(nodes))
	copy(out, nodes)
	sort.SliceStable(out, func(i, j int) bool {
		ci, cj := b.wrrCurrent[out[i].ID], b.wrrCurrent[out[j].ID]
		if ci != cj {
			return ci > cj
		}
		return out[i].ID < out[j].ID
	})

	b.wrrCurrent[out[0].ID] -= totalWeight

	// Drop state for nodes no longer in the snapshot.
	seen := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		seen[n.ID] = struct{}{}
	}
	for id := range b.wrrCurrent {
		if _, ok := seen[id]; !ok {
			delete(b.wrrCurrent, id)
		}
	}

	return out
}

// acquire marks one in-flight call against a node.
func (b *balanceService) acquire(nodeID string) {
	b.counter(nodeID).Add(1)
}

// release ends one in-flight call against a node.
func (b *balanceService) release(nodeID string) {
	b.counter(nodeID).Add(-1)
}

func (b *balanceService) inflightCount(nodeID string) int64 {
	return b.counter(nodeID).Load()
}

func (b *balanceService) counter(nodeID string) *atomic.Int64 {
	if c, ok := b.inflight.Load(nodeID); ok {
		return c.(*atomic.Int64)
	}
	c, _ := b.inflight.LoadOrStore(nodeID, &atomic.Int64{})
	return c.(*atomic.Int64)
}
