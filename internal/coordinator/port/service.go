package port

import (
	"context"
	"errors"

	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/domain"
)

// Administrative and search-level error taxonomy.
var (
	ErrNoActiveNodes     = errors.New("no active nodes available")
	ErrAllNodesFailed    = errors.New("all selected nodes failed")
	ErrNodeNotFound      = errors.New("node not found")
	ErrNodeAlreadyExists = errors.New("node already exists")
)

// NodeSpec describes one node for batch registration.
type NodeSpec struct {
	ID      string  `json:"id"`
	Locator string  `json:"locator"`
	Weight  float64 `json:"weight"`
}

// ClusterStats is the aggregate administrative view of the coordinator.
type ClusterStats struct {
	TotalNodes    int                   `json:"total_nodes"`
	ActiveNodes   int                   `json:"active_nodes"`
	InactiveNodes int                   `json:"inactive_nodes"`
	Config        config.SearcherConfig `json:"config"`
	ClusterStats  domain.SearchStats    `json:"cluster_stats"`
}

// SearchService runs distributed searches across the registered nodes.
type SearchService interface {
	// Search fans query out to the selected nodes and returns the merged,
	// paginated answer. Node failures are contained in the result; the call
	// itself fails only when no node could answer.
	Search(ctx context.Context, query string, limit uint, offset uint) (*domain.AggregateResult, error)

	// SimpleSearch runs Search with default pagination.
	SimpleSearch(ctx context.Context, query string) (*domain.AggregateResult, error)
}

// AdminService manages cluster membership, runtime config and stats.
type AdminService interface {
	AddNode(id string, locator string, weight float64) error
	AddNodes(batch []NodeSpec) error
	RemoveNode(id string) error
	SetNodeStatus(id string, active bool) error
	Configure(cfg config.SearcherConfig) error
	GetActiveNodes() []string
	GetNodeStats(id string) (domain.NodeStats, error)
	GetClusterStats() ClusterStats
}
