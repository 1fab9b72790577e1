package port

import (
	"context"
	"errors"

	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
)

//go:generate mockgen -destination=mocks/search_node_mock.go -package=mocks -source=search_node.go

// Per-node call failures, recorded in the node's response and never fatal to
// the overall search.
var (
	ErrNodeTimeout     = errors.New("node call timed out")
	ErrNodeTransport   = errors.New("node transport error")
	ErrSearchCancelled = errors.New("search cancelled")
)

// SearchNode is the external search collaborator. The coordinator treats it as
// an opaque, possibly-remote call addressed by locator; transport and
// serialization are the adapter's concern.
type SearchNode interface {
	// Search executes query against the node at locator with pagination
	// bounds. The context carries the per-attempt timeout.
	Search(ctx context.Context, locator string, query string, limit uint, offset uint) (*domain.SearchResult, error)

	// Ping issues a lightweight liveness probe against the node at locator.
	Ping(ctx context.Context, locator string) error
}
