package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/anvndev/go-distributed-search/internal/coordinator/config"
	"github.com/anvndev/go-distributed-search/internal/coordinator/metrics"
	"github.com/anvndev/go-distributed-search/internal/coordinator/port/mocks"
	"github.com/anvndev/go-distributed-search/internal/coordinator/registry"
	"go.uber.org/mock/gomock"
)

func healthConfig() *config.Store {
	cfg := config.DefaultSearcherConfig()
	cfg.TimeoutMS = 200
	cfg.HealthCheckIntervalMS = 20
	return config.NewStore(cfg)
}

func TestHealthMonitorDeactivatesFailingNode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	node := mocks.NewMockSearchNode(ctrl)
	node.EXPECT().Ping(gomock.Any(), "node-1:9101").Return(nil).MinTimes(1)
	node.EXPECT().Ping(gomock.Any(), "node-2:9101").Return(errors.New("connection refused")).MinTimes(1)

	reg := registry.New()
	if err := reg.Add("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := reg.Add("n2", "node-2:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	monitor := NewHealthMonitor(reg, node, healthConfig(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	waitFor(t, func() bool {
		n1, err1 := reg.Get("n1")
		n2, err2 := reg.Get("n2")
		return err1 == nil && err2 == nil && n1.Active && !n2.Active
	})
}

func TestHealthMonitorReactivatesRecoveredNode(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	node := mocks.NewMockSearchNode(ctrl)
	node.EXPECT().Ping(gomock.Any(), "node-1:9101").Return(nil).MinTimes(1)

	reg := registry.New()
	if err := reg.Add("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}
	if err := reg.SetStatus("n1", false); err != nil {
		t.Fatal(err)
	}

	monitor := NewHealthMonitor(reg, node, healthConfig(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	waitFor(t, func() bool {
		n1, err := reg.Get("n1")
		return err == nil && n1.Active
	})
}

func TestHealthMonitorRecordsProbeStats(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	node := mocks.NewMockSearchNode(ctrl)
	node.EXPECT().Ping(gomock.Any(), "node-1:9101").Return(nil).MinTimes(1)

	reg := registry.New()
	if err := reg.Add("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	monitor := NewHealthMonitor(reg, node, healthConfig(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)
	defer monitor.Stop()

	waitFor(t, func() bool {
		n1, err := reg.Get("n1")
		return err == nil && n1.Stats.SuccessCount >= 1 && !n1.Stats.LastChecked.IsZero()
	})
}

func TestHealthMonitorStopJoinsSweep(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	node := mocks.NewMockSearchNode(ctrl)
	node.EXPECT().Ping(gomock.Any(), gomock.Any()).Return(nil).AnyTimes()

	reg := registry.New()
	if err := reg.Add("n1", "node-1:9101", 1.0); err != nil {
		t.Fatal(err)
	}

	monitor := NewHealthMonitor(reg, node, healthConfig(), metrics.New())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	monitor.Start(ctx)

	time.Sleep(50 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		monitor.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not join the probe loop")
	}

	// Stop is idempotent.
	monitor.Stop()
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
