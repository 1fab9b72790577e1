package search_node

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port"
	"github.com/anvndev/go-distributed-search/pkg/resilience"
)

// HTTPAdapter implements port.SearchNode over HTTP/JSON. One circuit breaker
// per locator so a flapping node fails fast without starving the others.
type HTTPAdapter struct {
	client   *http.Client
	breakers map[string]*resilience.CircuitBreaker
	mu       sync.RWMutex
}

// Ensure HTTPAdapter implements port.SearchNode.
var _ port.SearchNode = (*HTTPAdapter)(nil)

// NewHTTPAdapter creates the adapter. Per-call deadlines come from the
// caller's context, not a client-level timeout.
func NewHTTPAdapter() *HTTPAdapter {
	return &HTTPAdapter{
		client: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		breakers: make(map[string]*resilience.CircuitBreaker),
	}
}

type searchRequest struct {
	Query  string `json:"query"`
	Limit  uint   `json:"limit"`
	Offset uint   `json:"offset"`
}

// Search posts the query to the node's /search endpoint.
func (a *HTTPAdapter) Search(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error) {
	breaker := a.getBreaker(locator)

	var result domain.SearchResult
	err := breaker.Execute(ctx, func(execCtx context.Context) error {
		body, err := json.Marshal(searchRequest{Query: query, Limit: limit, Offset: offset})
		if err != nil {
			return fmt.Errorf("%w: encode request: %v", port.ErrNodeTransport, err)
		}

		req, err := http.NewRequestWithContext(execCtx, http.MethodPost, "http://"+locator+"/search", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("%w: %v", port.ErrNodeTransport, err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.client.Do(req)
		if err != nil {
			return normalizeHTTPErr(execCtx, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("%w: %s returned %d: %s", port.ErrNodeTransport, locator, resp.StatusCode, bytes.TrimSpace(payload))
		}

		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return fmt.Errorf("%w: decode response: %v", port.ErrNodeTransport, err)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %v", port.ErrNodeTransport, err)
		}
		return nil, err
	}
	return &result, nil
}

// Ping issues a GET against the node's health endpoint. Probes bypass the
// breaker: they are how a node earns its way back in.
func (a *HTTPAdapter) Ping(ctx context.Context, locator string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+locator+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %v", port.ErrNodeTransport, err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return normalizeHTTPErr(ctx, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned %d", port.ErrNodeTransport, locator, resp.StatusCode)
	}
	return nil
}

func (a *HTTPAdapter) getBreaker(locator string) *resilience.CircuitBreaker {
	a.mu.RLock()
	breaker, ok := a.breakers[locator]
	a.mu.RUnlock()
	if ok {
		return breaker
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if breaker, ok := a.breakers[locator]; ok {
		return breaker
	}
	breaker = resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             locator,
		FailureThreshold: 5,
		OpenTimeout:      15 * time.Second,
	})
	a.breakers[locator] = breaker
	return breaker
}

// normalizeHTTPErr folds transport-level failures into the port taxonomy.
func normalizeHTTPErr(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%w: %v", port.ErrSearchCancelled, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", port.ErrNodeTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", port.ErrNodeTimeout, err)
	}
	return fmt.Errorf("%w: %v", port.ErrNodeTransport, err)
}
