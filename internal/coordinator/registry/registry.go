package registry

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port"
)

// Registry is the thread-safe collection of node handles shared between
// in-flight searches, the health monitor and administrative callers. Handles
// never leave the registry by reference; every read hands out a copy.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]*domain.NodeHandle
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		nodes: make(map[string]*domain.NodeHandle),
	}
}

// Add registers a new node. New nodes start active and are deactivated by the
// health monitor on first failed probe.
func (r *Registry) Add(id string, locator string, weight float64) error {
	if id == "" {
		return fmt.Errorf("node id must not be empty")
	}
	if weight <= 0 {
		weight = 1.0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[id]; exists {
		return fmt.Errorf("%w: %s", port.ErrNodeAlreadyExists, id)
	}
	r.nodes[id] = &domain.NodeHandle{
		ID:      id,
		Locator: locator,
		Weight:  weight,
		Active:  true,
	}
	return nil
}

// Remove deletes a node. Failed nodes are normally only deactivated; removal
// is an explicit administrative act.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[id]; !exists {
		return fmt.Errorf("%w: %s", port.ErrNodeNotFound, id)
	}
	delete(r.nodes, id)
	return nil
}

// SetStatus flips a node's active flag.
func (r *Registry) SetStatus(id string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[id]
	if !exists {
		return fmt.Errorf("%w: %s", port.ErrNodeNotFound, id)
	}
	node.Active = active
	return nil
}

// Get returns a copy of one node.
func (r *Registry) Get(id string) (domain.NodeHandle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[id]
	if !exists {
		return domain.NodeHandle{}, fmt.Errorf("%w: %s", port.ErrNodeNotFound, id)
	}
	return node.Clone(), nil
}

// Snapshot returns copies of all active nodes ordered by id, taken under one
// lock acquisition so a concurrent Add/Remove is either fully visible or not
// at all.
func (r *Registry) Snapshot() []domain.NodeHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.NodeHandle, 0, len(r.nodes))
	for _, node := range r.nodes {
		if node.Active {
			out = append(out, node.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// All returns copies of every registered node, active or not, ordered by id.
// Used by the health monitor, which probes inactive nodes too.
func (r *Registry) All() []domain.NodeHandle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.NodeHandle, 0, len(r.nodes))
	for _, node := range r.nodes {
		out = append(out, node.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Counts returns (total, active) node counts.
func (r *Registry) Counts() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	active := 0
	for _, node := range r.nodes {
		if node.Active {
			active++
		}
	}
	return len(r.nodes), active
}

// RecordProbe applies a health probe outcome: a successful probe reactivates
// the node and records latency, a failed probe deactivates it. Nodes removed
// while the probe was in flight are ignored.
func (r *Registry) RecordProbe(id string, ok bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[id]
	if !exists {
		return
	}
	node.Active = ok
	node.Stats.LastChecked = time.Now()
	if ok {
		node.Stats.SuccessCount++
		node.Stats.TotalLatencyMS += uint64(latency.Milliseconds())
	} else {
		node.Stats.FailureCount++
	}
}

// RecordSearchOutcome updates a node's counters after one fan-out call.
// Unlike RecordProbe it never toggles the active flag; only the health
// monitor and administrators do that.
func (r *Registry) RecordSearchOutcome(id string, ok bool, latency time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[id]
	if !exists {
		return
	}
	if ok {
		node.Stats.SuccessCount++
		node.Stats.TotalLatencyMS += uint64(latency.Milliseconds())
	} else {
		node.Stats.FailureCount++
	}
}
