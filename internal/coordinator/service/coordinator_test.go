package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
	"github.com/anvndev/go-distributed-search/internal/coordinator/metrics"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port"
	"github.com/anvndev/go-distributed-search/internal/coordinator/registry"
)

type fakeSearchNode struct {
	searchFn func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error)
	pingFn   func(ctx context.Context, locator string) error
}

func (f *fakeSearchNode) Search(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
	return f.searchFn(ctx, locator, query, limit, offset)
}

func (f *fakeSearchNode) Ping(ctx context.Context, locator string) error {
	if f.pingFn != nil {
		return f.pingFn(ctx, locator)
	}
	return errors.New("not implemented")
}

func newTestCoordinator(node port.SearchNode, cfg config.SearcherConfig) (*Coordinator, *registry.Registry) {
	reg := registry.New()
	c := NewCoordinator(config.NewStore(cfg), reg, node, NewStatsRegistry(), metrics.New(), nil)
	return c, reg
}

func fastConfig() config.SearcherConfig {
	cfg := config.DefaultSearcherConfig()
	cfg.TimeoutMS = 200
	cfg.MaxRetries = 1
	return cfg
}

func hitsFor(locator string, scores ...float64) *domain.SearchResult {
	hits := make([]domain.Hit, len(scores))
	for i, s := range scores {
		hits[i] = domain.Hit{Score: s, Fields: map[string]any{"locator": locator}}
	}
	return &domain.SearchResult{Hits: hits, TotalHits: uint64(len(scores)), TookMS: 5}
}

func TestSearchMergesAcrossNodes(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			switch locator {
			case "node-1:9101":
				return hitsFor(locator, 0.9, 0.5), nil
			case "node-2:9101":
				return hitsFor(locator, 0.95, 0.7), nil
			default:
				return nil, fmt.Errorf("unexpected locator: %s", locator)
			}
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := c.AddNode("n2", "node-2:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	result, err := c.Search(context.Background(), "golang", 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.TotalHits != 4 {
		t.Fatalf("total hits = %d, want 4", result.TotalHits)
	}
	wantScores := []float64{0.95, 0.9, 0.7, 0.5}
	for i, want := range wantScores {
		if result.Hits[i].Score != want {
			t.Fatalf("hit %d score = %v, want %v", i, result.Hits[i].Score, want)
		}
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}
}

func TestSearchStampsNodeIDOnHits(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			return hitsFor(locator, 0.8), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	result, err := c.Search(context.Background(), "golang", 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.Hits[0].NodeID != "n1" {
		t.Fatalf("hit node id = %q, want n1", result.Hits[0].NodeID)
	}
}

func TestSearchPartialFailureReturnsSurvivors(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			if locator == "node-2:9101" {
				return nil, errors.New("connection refused")
			}
			return hitsFor(locator, 0.9), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := c.AddNode("n2", "node-2:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	result, err := c.Search(context.Background(), "golang", 10, 0)
	if err != nil {
		t.Fatalf("partial failure must not fail the search: %v", err)
	}
	if result.TotalHits != 1 {
		t.Fatalf("total hits = %d, want 1 (failed node excluded)", result.TotalHits)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "n2:") {
		t.Fatalf("errors = %v, want one entry for n2", result.Errors)
	}
}

func TestSearchAllNodesFailed(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			return nil, errors.New("connection refused")
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	_, err := c.Search(context.Background(), "golang", 10, 0)
	if !errors.Is(err, port.ErrAllNodesFailed) {
		t.Fatalf("expected ErrAllNodesFailed, got: %v", err)
	}

	stats := c.GetClusterStats()
	if stats.ClusterStats.FailedSearches != 1 {
		t.Fatalf("failed searches = %d, want 1", stats.ClusterStats.FailedSearches)
	}
}

func TestSearchNoActiveNodes(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			t.Fatal("no node call expected with an empty registry")
			return nil, nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())

	_, err := c.Search(context.Background(), "golang", 10, 0)
	if !errors.Is(err, port.ErrNoActiveNodes) {
		t.Fatalf("expected ErrNoActiveNodes, got: %v", err)
	}
}

func TestSearchExcludesDeactivatedNodes(t *testing.T) {
	var calls sync.Map
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			calls.Store(locator, true)
			return hitsFor(locator, 0.9), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := c.AddNode("n2", "node-2:9101", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetNodeStatus("n2", false); err != nil {
		t.Fatal(err)
	}

	if _, err := c.Search(context.Background(), "golang", 10, 0); err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if _, hit := calls.Load("node-2:9101"); hit {
		t.Fatal("deactivated node n2 was queried")
	}

	stats := c.GetClusterStats()
	if stats.TotalNodes != 2 || stats.ActiveNodes != 1 || stats.InactiveNodes != 1 {
		t.Fatalf("cluster stats = %+v, want 2 total / 1 active / 1 inactive", stats)
	}
}

func TestSearchTimeoutBecomesNodeTimeout(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			select {
			case <-time.After(2 * time.Second):
				return hitsFor(locator, 0.9), nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		},
	}
	cfg := fastConfig()
	cfg.TimeoutMS = 50
	c, _ := newTestCoordinator(node, cfg)
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	_, err := c.Search(context.Background(), "golang", 10, 0)
	if !errors.Is(err, port.ErrAllNodesFailed) {
		t.Fatalf("expected ErrAllNodesFailed, got: %v", err)
	}
	if !strings.Contains(err.Error(), port.ErrNodeTimeout.Error()) {
		t.Fatalf("expected timeout in error detail, got: %v", err)
	}
}

func TestSearchRetriesTransientFailures(t *testing.T) {
	var attempts atomic.Int32
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			if attempts.Add(1) < 3 {
				return nil, errors.New("connection reset")
			}
			return hitsFor(locator, 0.9), nil
		},
	}
	cfg := fastConfig()
	cfg.MaxRetries = 3
	c, _ := newTestCoordinator(node, cfg)
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	result, err := c.Search(context.Background(), "golang", 10, 0)
	if err != nil {
		t.Fatalf("search failed after retries: %v", err)
	}
	if result.TotalHits != 1 {
		t.Fatalf("total hits = %d, want 1", result.TotalHits)
	}
	if got := attempts.Load(); got != 3 {
		t.Fatalf("attempts = %d, want 3", got)
	}
}

func TestSearchRetryBudgetExhausted(t *testing.T) {
	var attempts atomic.Int32
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			attempts.Add(1)
			return nil, errors.New("connection reset")
		},
	}
	cfg := fastConfig()
	cfg.MaxRetries = 2
	c, _ := newTestCoordinator(node, cfg)
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	_, err := c.Search(context.Background(), "golang", 10, 0)
	if !errors.Is(err, port.ErrAllNodesFailed) {
		t.Fatalf("expected ErrAllNodesFailed, got: %v", err)
	}
	if got := attempts.Load(); got != 2 {
		t.Fatalf("attempts = %d, want 2", got)
	}
}

func TestSearchCancelledByCaller(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := c.Search(ctx, "golang", 10, 0)
	if !errors.Is(err, port.ErrAllNodesFailed) {
		t.Fatalf("expected ErrAllNodesFailed, got: %v", err)
	}
	if !strings.Contains(err.Error(), port.ErrSearchCancelled.Error()) {
		t.Fatalf("expected cancellation in error detail, got: %v", err)
	}
}

func TestSearchPaginationOverFetchesPerNode(t *testing.T) {
	var gotLimit atomic.Uint64
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			gotLimit.Store(uint64(limit))
			if offset != 0 {
				t.Errorf("per-node offset = %d, want 0", offset)
			}
			return hitsFor(locator, 0.9, 0.8, 0.7, 0.6, 0.5), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	result, err := c.Search(context.Background(), "golang", 2, 3)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if gotLimit.Load() != 5 {
		t.Fatalf("per-node limit = %d, want limit+offset = 5", gotLimit.Load())
	}
	if len(result.Hits) != 2 {
		t.Fatalf("page size = %d, want 2", len(result.Hits))
	}
	if result.Hits[0].Score != 0.6 {
		t.Fatalf("first hit after offset = %v, want 0.6", result.Hits[0].Score)
	}
}

func TestSearchExtremeLimitSaturatesPerNodeLimit(t *testing.T) {
	var gotLimit atomic.Uint64
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			gotLimit.Store(uint64(limit))
			return hitsFor(locator, 0.9, 0.8, 0.7), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	// limit+offset wraps around uint; the per-node limit must saturate and
	// the merged page must not panic.
	result, err := c.Search(context.Background(), "golang", ^uint(0), 1)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if gotLimit.Load() != uint64(^uint(0)) {
		t.Fatalf("per-node limit = %d, want saturated max", gotLimit.Load())
	}
	if len(result.Hits) != 2 || result.Hits[0].Score != 0.8 {
		t.Fatalf("page = %+v", result.Hits)
	}
}

func TestSimpleSearchUsesDefaultPage(t *testing.T) {
	var gotLimit atomic.Uint64
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			gotLimit.Store(uint64(limit))
			return hitsFor(locator, 0.9), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	if _, err := c.SimpleSearch(context.Background(), "golang"); err != nil {
		t.Fatalf("simple search failed: %v", err)
	}
	if gotLimit.Load() != DefaultSearchLimit {
		t.Fatalf("per-node limit = %d, want %d", gotLimit.Load(), DefaultSearchLimit)
	}
}

func TestConfigureRejectionKeepsOldConfig(t *testing.T) {
	c, _ := newTestCoordinator(&fakeSearchNode{}, fastConfig())

	bad := config.DefaultSearcherConfig()
	bad.MergeStrategy = "best_effort"
	err := c.Configure(bad)
	if !errors.Is(err, config.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got: %v", err)
	}

	got := c.GetClusterStats().Config
	if got.MergeStrategy != config.MergeScoreDesc {
		t.Fatalf("merge strategy = %q, previous config must stay in effect", got.MergeStrategy)
	}
}

func TestConfigureAppliesToNextSearch(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			return hitsFor(locator, 0.5, 0.9), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	next := fastConfig()
	next.MergeStrategy = config.MergeScoreAsc
	if err := c.Configure(next); err != nil {
		t.Fatalf("configure failed: %v", err)
	}

	result, err := c.Search(context.Background(), "golang", 10, 0)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if result.Hits[0].Score != 0.5 || result.Hits[1].Score != 0.9 {
		t.Fatalf("hits not in ascending score order: %v, %v", result.Hits[0].Score, result.Hits[1].Score)
	}
}

func TestAdminNodeLifecycle(t *testing.T) {
	c, _ := newTestCoordinator(&fakeSearchNode{}, fastConfig())

	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := c.AddNode("n1", "node-1:9101", 1.0); !errors.Is(err, port.ErrNodeAlreadyExists) {
		t.Fatalf("expected ErrNodeAlreadyExists, got: %v", err)
	}

	err := c.AddNodes([]port.NodeSpec{
		{ID: "n2", Locator: "node-2:9101", Weight: 2.0},
		{ID: "n1", Locator: "node-1:9101", Weight: 1.0},
	})
	if err == nil {
		t.Fatal("expected batch error for duplicate n1")
	}
	if got := c.GetActiveNodes(); len(got) != 2 {
		t.Fatalf("active nodes = %v, the valid batch entry must still land", got)
	}

	if err := c.RemoveNode("n2"); err != nil {
		t.Fatal(err)
	}
	if err := c.RemoveNode("n2"); !errors.Is(err, port.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got: %v", err)
	}
	if _, err := c.GetNodeStats("ghost"); !errors.Is(err, port.ErrNodeNotFound) {
		t.Fatalf("expected ErrNodeNotFound, got: %v", err)
	}
}

func TestSearchRecordsClusterStats(t *testing.T) {
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			return hitsFor(locator, 0.9), nil
		},
	}
	c, _ := newTestCoordinator(node, fastConfig())
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), "golang", 10, 0); err != nil {
			t.Fatalf("search failed: %v", err)
		}
	}

	stats := c.GetClusterStats()
	if stats.ClusterStats.TotalSearches != 3 || stats.ClusterStats.SuccessfulSearches != 3 {
		t.Fatalf("cluster stats = %+v, want 3 total / 3 successful", stats.ClusterStats)
	}

	nodeStats, err := c.GetNodeStats("n1")
	if err != nil {
		t.Fatal(err)
	}
	if nodeStats.SuccessCount != 3 {
		t.Fatalf("node success count = %d, want 3", nodeStats.SuccessCount)
	}
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string]*domain.AggregateResult
	hits    int
}

func (m *memoryCache) Get(ctx context.Context, key string) (*domain.AggregateResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result, ok := m.entries[key]
	if ok {
		m.hits++
	}
	return result, ok
}

func (m *memoryCache) Set(ctx context.Context, key string, result *domain.AggregateResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = result
}

func TestSearchServesRepeatedQueryFromCache(t *testing.T) {
	var calls atomic.Int32
	node := &fakeSearchNode{
		searchFn: func(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
			calls.Add(1)
			return hitsFor(locator, 0.9), nil
		},
	}
	cache := &memoryCache{entries: make(map[string]*domain.AggregateResult)}
	reg := registry.New()
	c := NewCoordinator(config.NewStore(fastConfig()), reg, node, NewStatsRegistry(), metrics.New(), cache)
	if err := c.AddNode("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	first, err := c.Search(context.Background(), "golang", 10, 0)
	if err != nil {
		t.Fatalf("first search failed: %v", err)
	}
	second, err := c.Search(context.Background(), "golang", 10, 0)
	if err != nil {
		t.Fatalf("second search failed: %v", err)
	}

	if calls.Load() != 1 {
		t.Fatalf("node calls = %d, repeated query must come from cache", calls.Load())
	}
	if cache.hits != 1 {
		t.Fatalf("cache hits = %d, want 1", cache.hits)
	}
	if second.TotalHits != first.TotalHits {
		t.Fatalf("cached result diverged: %d vs %d", second.TotalHits, first.TotalHits)
	}
}
