package main

import (
	"context"
	"fmt"
	"net"
	"os/signal"
	"syscall"
	"time"

	"github.com/sh01/liasis/btm"
	"github.com/sh01/liasis/config"
	"github.com/sh01/liasis/domain/anacrolixbt"
	"github.com/sh01/liasis/observe"
)

// statsAdapter narrows *btm.Manager to observe.StatsSource without
// coupling observe/ to btm's types directly.
type statsAdapter struct{ m *btm.Manager }

func (a statsAdapter) Stats() observe.Stats {
	s := a.m.Stats()
	return observe.Stats{ServerSeq: s.ServerSeq, ClientCount: s.ClientCount, Connections: s.Connections}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	clientCfgs := make([]anacrolixbt.ClientConfig, cfg.NumClients)
	for i := range clientCfgs {
		clientCfgs[i] = anacrolixbt.ClientConfig{
			DownloadDir:   cfg.DownloadDirectory,
			IncomingPort:  cfg.IncomingPort + i,
			EnableUpload:  cfg.EnableUpload,
			EnableSeed:    cfg.EnableSeeding,
			ArchiveDir:    cfg.ArchiveDirectory,
			HistoryLength: cfg.ThroughputHistoryLength,
			CycleLength:   time.Duration(cfg.ThroughputCycleMillis) * time.Millisecond,
		}
	}

	dom, err := anacrolixbt.New(clientCfgs)
	if err != nil {
		return fmt.Errorf("start domain: %w", err)
	}

	mgr := btm.NewManager(dom, cfg.MaxFrameBytes)

	ln, err := net.Listen(cfg.ListenNetwork, cfg.ListenAddress)
	if err != nil {
		return fmt.Errorf("listen on %s %s: %w", cfg.ListenNetwork, cfg.ListenAddress, err)
	}
	info("control plane listening on %s %s", cfg.ListenNetwork, cfg.ListenAddress)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	acceptErr := make(chan error, 1)
	go func() { acceptErr <- mgr.Accept(ln) }()

	runDone := make(chan struct{})
	go func() {
		mgr.Run()
		close(runDone)
	}()

	obs := observe.NewServer(statsAdapter{mgr})
	obsErr := make(chan error, 1)
	go func() { obsErr <- obs.Run(ctx, cfg.DebugAddr) }()
	if cfg.DebugAddr != "" {
		info("debug surface listening on %s", cfg.DebugAddr)
	}

	select {
	case <-ctx.Done():
		info("shutting down gracefully...")
	case err := <-acceptErr:
		warn("accept loop stopped: %v", err)
		stop()
	}

	if err := ln.Close(); err != nil {
		warn("close listener: %v", err)
	}
	if err := mgr.Shutdown(); err != nil {
		warn("shutdown manager: %v", err)
	}

	select {
	case <-runDone:
	case <-time.After(10 * time.Second):
		warn("manager did not stop within timeout")
	}

	if err := <-obsErr; err != nil {
		warn("observe server: %v", err)
	}

	info("shutdown complete")
	return nil
}
