package service

import (
	"context"
	"sync"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/metrics"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port"
	"github.com/anvndev/go-distributed-search/internal/coordinator/registry"
	"github.com/anvndev/go-distributed-search/pkg/resilience"
)

// probeWorkers bounds concurrent probes per sweep.
const probeWorkers = 8

// HealthMonitor periodically probes every registered node, active or not.
// A successful probe reactivates the node; a failed or timed-out probe
// deactivates it. Explicit SetNodeStatus calls are never blocked by a sweep
// and hold until the next successful probe.
type HealthMonitor struct {
	registry *registry.Registry
	node     port.SearchNode
	cfgStore *config.Store
	metrics  *metrics.Metrics

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewHealthMonitor creates a stopped monitor.
func NewHealthMonitor(reg *registry.Registry, node port.SearchNode, cfgStore *config.Store, m *metrics.Metrics) *HealthMonitor {
	return &HealthMonitor{
		registry: reg,
		node:     node,
		cfgStore: cfgStore,
		metrics:  m,
		stop:     make(chan struct{}),
	}
}

// Start launches the probe loop. It runs until ctx is cancelled or Stop is
// called. The interval is re-read from the config store every tick so
// Configure takes effect without a restart.
func (h *HealthMonitor) Start(ctx context.Context) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		h.run(ctx)
	}()
}

func (h *HealthMonitor) run(ctx context.Context) {
	logger.Infow("Health monitor started", "interval_ms", h.cfgStore.Load().HealthCheckIntervalMS)

	// Initial sweep so freshly started coordinators converge fast.
	h.sweep(ctx)

	for {
		timer := time.NewTimer(h.cfgStore.Load().HealthCheckInterval())
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Info("Health monitor stopping: context cancelled")
			return
		case <-h.stop:
			timer.Stop()
			logger.Info("Health monitor stopping")
			return
		case <-timer.C:
			h.sweep(ctx)
		}
	}
}

// Stop signals the loop and waits for the in-flight sweep to finish.
func (h *HealthMonitor) Stop() {
	h.once.Do(func() {
		close(h.stop)
	})
	h.wg.Wait()
}

// sweep probes all registered nodes through a bounded worker pool and records
// each outcome against the registry.
func (h *HealthMonitor) sweep(ctx context.Context) {
	nodes := h.registry.All()
	if len(nodes) == 0 {
		h.metrics.SetActiveNodes(0)
		return
	}

	timeout := h.cfgStore.Load().Timeout()
	workers := probeWorkers
	if len(nodes) < workers {
		workers = len(nodes)
	}

	pool := resilience.NewWorkerPool(workers, len(nodes))
	for _, node := range nodes {
		n := node
		if err := pool.Submit(ctx, func() {
			h.probe(ctx, n.ID, n.Locator, n.Active, timeout)
		}); err != nil {
			break
		}
	}
	pool.Shutdown()

	_, active := h.registry.Counts()
	h.metrics.SetActiveNodes(active)
}

// probe checks one node and flips its active flag on the outcome.
func (h *HealthMonitor) probe(ctx context.Context, id string, locator string, wasActive bool, timeout time.Duration) {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := h.node.Ping(probeCtx, locator)
	latency := time.Since(start)

	if ctx.Err() != nil {
		// Shutdown mid-probe; leave the node's state as is.
		return
	}

	ok := err == nil
	h.registry.RecordProbe(id, ok, latency)

	switch {
	case ok && !wasActive:
		logger.Infow("Node recovered", "node_id", id, "latency_ms", latency.Milliseconds())
	case !ok && wasActive:
		logger.Warnw("Node failed health check", "node_id", id, "error", err.Error())
	case !ok:
		logger.Debugw("Node still unhealthy", "node_id", id, "error", err.Error())
	}
}
