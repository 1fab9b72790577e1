package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
	"github.com/anvndev/go-distributed-search/internal/coordinator/metrics"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port"
	"github.com/anvndev/go-distributed-search/internal/coordinator/registry"
)

// searchService runs the fan-out/fan-in of one search: concurrent per-node
// calls with per-attempt timeouts and bounded retries, joined until every
// dispatched node has answered or the caller cancelled.
type searchService struct {
	node     port.SearchNode
	registry *registry.Registry
	balancer *balanceService
	metrics  *metrics.Metrics
}

func newSearchService(node port.SearchNode, reg *registry.Registry, balancer *balanceService, m *metrics.Metrics) *searchService {
	return &searchService{
		node:     node,
		registry: reg,
		balancer: balancer,
		metrics:  m,
	}
}

// fanOut dispatches the query to every selected node and waits for all of
// them. One NodeResponse per node, in selection order; a node's failure is
// contained to its own response.
func (s *searchService) fanOut(ctx context.Context, cfg config.SearcherConfig, nodes []domain.NodeHandle, query string, limit uint, offset uint) []domain.NodeResponse {
	// Over-fetch so post-merge pagination stays correct: page N of the merged
	// stream may be served entirely by one node.
	perNodeLimit := limit + offset
	if perNodeLimit < limit {
		// Saturate instead of wrapping to a tiny per-node limit.
		perNodeLimit = ^uint(0)
	}

	responses := make([]domain.NodeResponse, len(nodes))
	var wg sync.WaitGroup

	for i, node := range nodes {
		wg.Add(1)
		go func(idx int, n domain.NodeHandle) {
			defer wg.Done()
			responses[idx] = s.callNode(ctx, cfg, n, query, perNodeLimit)
		}(i, node)
	}

	wg.Wait()
	return responses
}

// callNode runs one node's call with retries and builds its response.
func (s *searchService) callNode(ctx context.Context, cfg config.SearcherConfig, node domain.NodeHandle, query string, limit uint) domain.NodeResponse {
	s.balancer.acquire(node.ID)
	defer s.balancer.release(node.ID)

	start := time.Now()
	result, err := s.searchWithRetry(ctx, cfg, node, query, limit)
	elapsed := time.Since(start)

	if err != nil {
		logger.Warnw("Node search failed", "node_id", node.ID, "error", err.Error())
		s.registry.RecordSearchOutcome(node.ID, false, elapsed)
		s.metrics.RecordNodeCall(node.ID, false)
		return domain.NodeResponse{
			NodeID: node.ID,
			TookMS: uint64(elapsed.Milliseconds()),
			Err:    err.Error(),
		}
	}

	s.registry.RecordSearchOutcome(node.ID, true, elapsed)
	s.metrics.RecordNodeCall(node.ID, true)

	// The engine does not know its own cluster identity; stamp it here.
	hits := make([]domain.Hit, len(result.Hits))
	for i, hit := range result.Hits {
		hit.NodeID = node.ID
		hits[i] = hit
	}

	return domain.NodeResponse{
		NodeID:    node.ID,
		TotalHits: result.TotalHits,
		Hits:      hits,
		TookMS:    result.TookMS,
	}
}

// searchWithRetry retries transient failures up to cfg.MaxRetries attempts,
// each attempt independently bounded by cfg.Timeout. Caller cancellation
// stops the retry loop immediately.
func (s *searchService) searchWithRetry(ctx context.Context, cfg config.SearcherConfig, node domain.NodeHandle, query string, limit uint) (*domain.SearchResult, error) {
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", port.ErrSearchCancelled, err)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, cfg.Timeout())
		result, err := s.node.Search(attemptCtx, node.Locator, query, limit, 0)
		cancel()
		if err == nil {
			return result, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", port.ErrSearchCancelled, ctx.Err())
		}
		lastErr = normalizeNodeErr(err)

		if attempt+1 < maxRetries {
			if !sleepWithContext(ctx, time.Duration(attempt+1)*100*time.Millisecond) {
				return nil, fmt.Errorf("%w: %v", port.ErrSearchCancelled, ctx.Err())
			}
		}
	}
	return nil, lastErr
}

// normalizeNodeErr folds raw collaborator errors into the per-node taxonomy.
// Adapter-normalized errors pass through untouched.
func normalizeNodeErr(err error) error {
	switch {
	case errors.Is(err, port.ErrNodeTimeout),
		errors.Is(err, port.ErrNodeTransport),
		errors.Is(err, port.ErrSearchCancelled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %v", port.ErrNodeTimeout, err)
	default:
		return fmt.Errorf("%w: %v", port.ErrNodeTransport, err)
	}
}

// sleepWithContext waits for delay or exits early if context is canceled.
func sleepWithContext(ctx context.Context, delay time.Duration) bool {
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
