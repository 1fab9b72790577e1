package config

import (
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// ErrInvalidConfig is returned by Validate and Store.Replace when a proposed
// searcher config is rejected.
var ErrInvalidConfig = errors.New("invalid config")

// Merge strategies for combining per-node result sets.
const (
	MergeScoreDesc  = "score_desc"
	MergeScoreAsc   = "score_asc"
	MergeNodeOrder  = "node_order"
	MergeRoundRobin = "round_robin"
)

// Load-balancing strategies for ordering the node set per search.
const (
	BalanceBroadcast          = "broadcast"
	BalanceRoundRobin         = "round_robin"
	BalanceWeightedRoundRobin = "weighted_round_robin"
	BalanceLeastConnections   = "least_connections"
	BalanceHealthBased        = "health_based"
)

// SearcherConfig holds the runtime-tunable search knobs. It is replaced as a
// whole value through Store; in-flight searches keep the value they read at
// start.
type SearcherConfig struct {
	TimeoutMS             int    `json:"timeout_ms" yaml:"timeout_ms"`
	MaxRetries            int    `json:"max_retries" yaml:"max_retries"`
	MergeStrategy         string `json:"merge_strategy" yaml:"merge_strategy"`
	LoadBalancingStrategy string `json:"load_balancing_strategy" yaml:"load_balancing_strategy"`
	HealthCheckIntervalMS int    `json:"health_check_interval_ms" yaml:"health_check_interval_ms"`
}

// DefaultSearcherConfig returns the searcher defaults.
func DefaultSearcherConfig() SearcherConfig {
	return SearcherConfig{
		TimeoutMS:             5000,
		MaxRetries:            3,
		MergeStrategy:         MergeScoreDesc,
		LoadBalancingStrategy: BalanceBroadcast,
		HealthCheckIntervalMS: 10000,
	}
}

// Timeout returns the per-attempt node call timeout.
func (c SearcherConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMS) * time.Millisecond
}

// HealthCheckInterval returns the probe loop interval.
func (c SearcherConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalMS) * time.Millisecond
}

// Validate rejects configs that would break the coordinator at runtime.
func (c SearcherConfig) Validate() error {
	if c.TimeoutMS <= 0 {
		return fmt.Errorf("%w: timeout_ms must be positive, got %d", ErrInvalidConfig, c.TimeoutMS)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("%w: max_retries must be positive, got %d", ErrInvalidConfig, c.MaxRetries)
	}
	if c.HealthCheckIntervalMS <= 0 {
		return fmt.Errorf("%w: health_check_interval_ms must be positive, got %d", ErrInvalidConfig, c.HealthCheckIntervalMS)
	}
	switch c.MergeStrategy {
	case MergeScoreDesc, MergeScoreAsc, MergeNodeOrder, MergeRoundRobin:
	default:
		return fmt.Errorf("%w: unknown merge strategy %q", ErrInvalidConfig, c.MergeStrategy)
	}
	switch c.LoadBalancingStrategy {
	case BalanceBroadcast, BalanceRoundRobin, BalanceWeightedRoundRobin,
		BalanceLeastConnections, BalanceHealthBased:
	default:
		return fmt.Errorf("%w: unknown load balancing strategy %q", ErrInvalidConfig, c.LoadBalancingStrategy)
	}
	return nil
}

// Store holds the current SearcherConfig behind an atomic pointer so readers
// always observe a complete, self-consistent value.
type Store struct {
	current atomic.Pointer[SearcherConfig]
}

// NewStore creates a store seeded with cfg. Invalid seeds fall back to the
// defaults.
func NewStore(cfg SearcherConfig) *Store {
	s := &Store{}
	if cfg.Validate() != nil {
		cfg = DefaultSearcherConfig()
	}
	s.current.Store(&cfg)
	return s
}

// Load returns a copy of the current config.
func (s *Store) Load() SearcherConfig {
	return *s.current.Load()
}

// Replace validates and atomically installs a new config. On error the
// previous config stays in effect.
func (s *Store) Replace(cfg SearcherConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	s.current.Store(&cfg)
	return nil
}
