package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
	"github.com/anvndev/go-distributed-search/internal/coordinator/metrics"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port"
	"github.com/anvndev/go-distributed-search/internal/coordinator/registry"
)

// DefaultSearchLimit is the page size used by SimpleSearch.
const DefaultSearchLimit = 10

// ResultCache caches merged aggregate results keyed by the canonical search
// tuple. Implementations degrade errors to cache misses.
type ResultCache interface {
	Get(ctx context.Context, key string) (*domain.AggregateResult, bool)
	Set(ctx context.Context, key string, result *domain.AggregateResult)
}

// Coordinator is the facade wiring the registry, balancer, fan-out, merger
// and stats into the exposed search and admin surfaces.
type Coordinator struct {
	cfgStore *config.Store
	registry *registry.Registry
	stats    *StatsRegistry
	metrics  *metrics.Metrics
	cache    ResultCache

	balancer *balanceService
	searcher *searchService
	merger   *mergeService
}

// Ensure Coordinator implements the exposed ports.
var (
	_ port.SearchService = (*Coordinator)(nil)
	_ port.AdminService  = (*Coordinator)(nil)
)

// NewCoordinator builds the coordinator facade. cache may be nil to disable
// result caching.
func NewCoordinator(cfgStore *config.Store, reg *registry.Registry, node port.SearchNode, stats *StatsRegistry, m *metrics.Metrics, cache ResultCache) *Coordinator {
	c := &Coordinator{
		cfgStore: cfgStore,
		registry: reg,
		stats:    stats,
		metrics:  m,
		cache:    cache,
	}
	c.balancer = newBalanceService()
	c.searcher = newSearchService(node, reg, c.balancer, m)
	c.merger = newMergeService()
	return c
}

// Search runs one distributed search: snapshot, select, fan out, merge,
// record. Node failures surface as data in the result; the call errors only
// when nothing was dispatched or every node failed.
func (c *Coordinator) Search(ctx context.Context, query string, limit uint, offset uint) (*domain.AggregateResult, error) {
	start := time.Now()
	cfg := c.cfgStore.Load()

	cacheKey := fmt.Sprintf("%s|%s|%s|%d|%d", cfg.MergeStrategy, cfg.LoadBalancingStrategy, query, limit, offset)
	if c.cache != nil {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			c.recordSearch(true, start)
			return cached, nil
		}
	}

	snapshot := c.registry.Snapshot()
	selected := c.balancer.Select(snapshot, cfg.LoadBalancingStrategy)
	if len(selected) == 0 {
		c.recordSearch(false, start)
		return nil, port.ErrNoActiveNodes
	}

	responses := c.searcher.fanOut(ctx, cfg, selected, query, limit, offset)
	result := c.merger.Merge(responses, cfg.MergeStrategy, limit, offset)

	allFailed := true
	for _, resp := range responses {
		if !resp.Failed() {
			allFailed = false
			break
		}
	}
	if allFailed {
		c.recordSearch(false, start)
		return nil, fmt.Errorf("%w: %s", port.ErrAllNodesFailed, strings.Join(result.Errors, "; "))
	}

	c.recordSearch(true, start)
	if c.cache != nil {
		c.cache.Set(ctx, cacheKey, result)
	}

	logger.Debugw("Search completed",
		"query", query,
		"nodes", len(selected),
		"failed_nodes", len(result.Errors),
		"total_hits", result.TotalHits,
		"took_ms", result.TookMS)
	return result, nil
}

// SimpleSearch runs Search with default pagination.
func (c *Coordinator) SimpleSearch(ctx context.Context, query string) (*domain.AggregateResult, error) {
	return c.Search(ctx, query, DefaultSearchLimit, 0)
}

// recordSearch updates the stats registry and metrics exactly once per
// completed search call.
func (c *Coordinator) recordSearch(success bool, start time.Time) {
	elapsed := time.Since(start)
	c.stats.RecordSearch(success, uint64(elapsed.Milliseconds()))
	c.metrics.RecordSearch(success, elapsed.Seconds())
}

// AddNode registers a node; duplicate ids are rejected.
func (c *Coordinator) AddNode(id string, locator string, weight float64) error {
	if err := c.registry.Add(id, locator, weight); err != nil {
		return err
	}
	logger.Infow("Node added", "node_id", id, "locator", locator, "weight", weight)
	c.refreshActiveNodesGauge()
	return nil
}

// AddNodes registers a batch. Each add is individually atomic; on error the
// already-applied adds stay and all failures are reported together.
func (c *Coordinator) AddNodes(batch []port.NodeSpec) error {
	var errs []string
	for _, spec := range batch {
		if err := c.registry.Add(spec.ID, spec.Locator, spec.Weight); err != nil {
			errs = append(errs, err.Error())
			continue
		}
		logger.Infow("Node added", "node_id", spec.ID, "locator", spec.Locator, "weight", spec.Weight)
	}
	c.refreshActiveNodesGauge()
	if len(errs) > 0 {
		return fmt.Errorf("batch add failed for %d of %d nodes: %s", len(errs), len(batch), strings.Join(errs, "; "))
	}
	return nil
}

// RemoveNode deletes a node from the registry.
func (c *Coordinator) RemoveNode(id string) error {
	if err := c.registry.Remove(id); err != nil {
		return err
	}
	logger.Infow("Node removed", "node_id", id)
	c.refreshActiveNodesGauge()
	return nil
}

// SetNodeStatus flips a node's eligibility for queries.
func (c *Coordinator) SetNodeStatus(id string, active bool) error {
	if err := c.registry.SetStatus(id, active); err != nil {
		return err
	}
	logger.Infow("Node status changed", "node_id", id, "active", active)
	c.refreshActiveNodesGauge()
	return nil
}

// Configure atomically replaces the searcher config. On validation failure
// the previous config stays in effect.
func (c *Coordinator) Configure(cfg config.SearcherConfig) error {
	if err := c.cfgStore.Replace(cfg); err != nil {
		logger.Warnw("Config rejected", "error", err.Error())
		return err
	}
	logger.Infow("Config replaced",
		"timeout_ms", cfg.TimeoutMS,
		"max_retries", cfg.MaxRetries,
		"merge_strategy", cfg.MergeStrategy,
		"load_balancing_strategy", cfg.LoadBalancingStrategy,
		"health_check_interval_ms", cfg.HealthCheckIntervalMS)
	return nil
}

// GetActiveNodes lists the ids of nodes currently eligible for queries.
func (c *Coordinator) GetActiveNodes() []string {
	snapshot := c.registry.Snapshot()
	ids := make([]string, len(snapshot))
	for i, node := range snapshot {
		ids[i] = node.ID
	}
	return ids
}

// GetNodeStats returns one node's rolling counters.
func (c *Coordinator) GetNodeStats(id string) (domain.NodeStats, error) {
	node, err := c.registry.Get(id)
	if err != nil {
		return domain.NodeStats{}, err
	}
	return node.Stats, nil
}

// GetClusterStats returns the aggregate administrative view.
func (c *Coordinator) GetClusterStats() port.ClusterStats {
	total, active := c.registry.Counts()
	return port.ClusterStats{
		TotalNodes:    total,
		ActiveNodes:   active,
		InactiveNodes: total - active,
		Config:        c.cfgStore.Load(),
		ClusterStats:  c.stats.Snapshot(),
	}
}

func (c *Coordinator) refreshActiveNodesGauge() {
	_, active := c.registry.Counts()
	c.metrics.SetActiveNodes(active)
}
