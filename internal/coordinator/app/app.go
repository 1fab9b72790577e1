package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/anthanhphan/gosdk/logger"
	"github.com/redis/go-redis/v9"

	httpHandler "github.com/anvndev/go-distributed-search/internal/coordinator/adapter/inbound/http"
	"github.com/anvndev/go-distributed-search/internal/coordinator/adapter/outbound/result_cache"
	"github.com/anvndev/go-distributed-search/internal/coordinator/adapter/outbound/search_node"
	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/metrics"
	"github.com/anvndev/go-distributed-search/internal/coordinator/registry"
	"github.com/anvndev/go-distributed-search/internal/coordinator/service"
	"github.com/anvndev/go-distributed-search/pkg/gossip"
)

// App assembles and runs the coordinator: node registry, health monitor,
// stats, search/admin HTTP API, plus optional gossip discovery and result
// cache.
type App struct {
	cfg         *config.Config
	cfgStore    *config.Store
	registry    *registry.Registry
	coordinator *service.Coordinator
	health      *service.HealthMonitor
	server      *httpHandler.Server
	gossip      *gossip.Adapter
	redisClient *redis.Client

	running      atomic.Bool
	healthCancel context.CancelFunc
}

func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitLogger(&cfg.Logger)

	cfgStore := config.NewStore(cfg.Searcher)
	reg := registry.New()
	stats := service.NewStatsRegistry()
	m := metrics.New()
	nodeAdapter := search_node.NewHTTPAdapter()

	a := &App{
		cfg:      cfg,
		cfgStore: cfgStore,
		registry: reg,
	}

	var cache service.ResultCache
	if cfg.Cache.Enabled {
		a.redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Addr,
			Password: cfg.Cache.Password,
			DB:       cfg.Cache.DB,
		})
		cache = result_cache.New(a.redisClient, time.Duration(cfg.Cache.TTLMS)*time.Millisecond)
	}

	a.coordinator = service.NewCoordinator(cfgStore, reg, nodeAdapter, stats, m, cache)
	a.health = service.NewHealthMonitor(reg, nodeAdapter, cfgStore, m)
	a.server = httpHandler.NewServer(cfg, a.coordinator, a.coordinator, m)

	if cfg.Gossip.Enabled {
		nodeID := cfg.Gossip.NodeID
		if nodeID == "" {
			nodeID, _ = os.Hostname()
		}
		observer, err := gossip.New(nodeID, gossip.RoleCoordinator,
			cfg.Gossip.BindAddr, cfg.Gossip.BindPort, 0, 0, reg)
		if err != nil {
			return nil, fmt.Errorf("failed to init gossip: %w", err)
		}
		a.gossip = observer
	}

	return a, nil
}

// Coordinator exposes the service facade for embedding and tests.
func (a *App) Coordinator() *service.Coordinator {
	return a.coordinator
}

// Running reports whether Start has been called and Stop has not.
func (a *App) Running() bool {
	return a.running.Load()
}

// Start brings up the background pieces: health monitor loop and gossip
// membership. The HTTP server is started separately by Run so embedders can
// drive the coordinator without a listener.
func (a *App) Start() error {
	if !a.running.CompareAndSwap(false, true) {
		return nil
	}

	healthCtx, cancel := context.WithCancel(context.Background())
	a.healthCancel = cancel
	a.health.Start(healthCtx)

	if a.gossip != nil {
		if err := a.gossip.Join(a.cfg.Gossip.Seeds); err != nil {
			a.Stop()
			return err
		}
	}
	return nil
}

// Stop cancels the health loop (joining it), leaves the gossip mesh and
// releases the cache client.
func (a *App) Stop() {
	if !a.running.CompareAndSwap(true, false) {
		return
	}

	if a.healthCancel != nil {
		a.healthCancel()
	}
	a.health.Stop()

	if a.gossip != nil {
		if err := a.gossip.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			logger.Warnw("Redis close failed", "error", err.Error())
		}
	}
}

// Run starts everything and blocks until a shutdown signal or server failure.
func (a *App) Run() error {
	if err := a.Start(); err != nil {
		return err
	}

	logger.Infow("Search coordinator starting", "addr", a.cfg.Server.Addr)
	serverErrCh := make(chan error, 1)
	go func() {
		if err := a.server.Start(); err != nil {
			serverErrCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case sig := <-stop:
		logger.Infow("Shutdown signal received", "signal", sig.String())
	case err := <-serverErrCh:
		runErr = fmt.Errorf("http server failed: %w", err)
		logger.Errorw("Coordinator server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down coordinator")
	a.Stop()
	if err := a.server.Stop(context.Background()); err != nil {
		logger.Errorw("Coordinator shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}
