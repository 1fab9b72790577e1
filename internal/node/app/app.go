package app

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/anthanhphan/gosdk/logger"

	httpHandler "github.com/anvndev/go-distributed-search/internal/node/adapter/inbound/http"
	"github.com/anvndev/go-distributed-search/internal/node/config"
	"github.com/anvndev/go-distributed-search/internal/node/index"
	"github.com/anvndev/go-distributed-search/pkg/gossip"
)

// App wires one search node: in-memory index, HTTP API and optional gossip
// membership so coordinators discover it.
type App struct {
	cfg    *config.Config
	server *httpHandler.Server
	gossip *gossip.Adapter
}

func New(configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.InitLogger(&cfg.Logger)

	idx := index.New()
	server := httpHandler.NewServer(cfg, idx)

	a := &App{cfg: cfg, server: server}

	if cfg.Gossip.Enabled {
		searchPort, err := portOf(cfg.Server.Addr)
		if err != nil {
			return nil, fmt.Errorf("cannot derive search port from server addr: %w", err)
		}
		member, err := gossip.New(cfg.Node.ID, gossip.RoleSearchNode,
			cfg.Gossip.BindAddr, cfg.Gossip.BindPort, searchPort, cfg.Node.Weight, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to init gossip: %w", err)
		}
		a.gossip = member
	}

	return a, nil
}

func (a *App) Run() error {
	if a.gossip != nil {
		if err := a.gossip.Join(a.cfg.Gossip.Seeds); err != nil {
			return err
		}
	}

	logger.Infow("Search node starting", "node_id", a.cfg.Node.ID, "addr", a.cfg.Server.Addr)
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
		logger.Errorw("Search node server exited unexpectedly", "error", err.Error())
	}

	logger.Info("Shutting down search node")
	if a.gossip != nil {
		if err := a.gossip.Leave(); err != nil {
			logger.Warnw("Gossip leave failed", "error", err.Error())
		}
	}
	if err := a.server.Stop(context.Background()); err != nil {
		logger.Errorw("Search node shutdown error", "error", err.Error())
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func portOf(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}
