// Command hubworker is the per-hub worker process the controller spawns
// (C3): it dials the controller's pub/sub bus, hosts every AP and RT
// node assigned to its hub, and drives their registration and heartbeat
// lifecycle against the NMS.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/fleetsim/internal/auth"
	"github.com/cuemby/fleetsim/internal/bus"
	"github.com/cuemby/fleetsim/internal/config"
	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/nms"
	"github.com/cuemby/fleetsim/internal/proto"
	"github.com/cuemby/fleetsim/internal/worker"
)

// shutdownGrace bounds how long run waits for in-flight heartbeat
// loops to observe cancellation before the process exits.
const shutdownGrace = 5 * time.Second

func main() {
	net := flag.Int("net", 0, "network index")
	hub := flag.Int("hub", 0, "hub index within the network")
	pubAddr := flag.String("pub-addr", "", "controller downlink (pub) address")
	pullAddr := flag.String("pull-addr", "", "controller uplink (pull) address")
	configPath := flag.String("config", "", "optional YAML config overlay")
	flag.Parse()

	if *pubAddr == "" || *pullAddr == "" {
		fmt.Fprintln(os.Stderr, "hubworker: -pub-addr and -pull-addr are required")
		os.Exit(1)
	}

	if err := run(*net, *hub, *pubAddr, *pullAddr, *configPath); err != nil {
		fmt.Fprintf(os.Stderr, "hubworker: %v\n", err)
		os.Exit(1)
	}
}

func run(net, hub int, pubAddr, pullAddr, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log.Init(log.Config{Level: log.Level(cfg.LogLevel)})

	hubAddr := proto.HubAddr(net, hub)
	logger := log.WithComponent("hubworker").With().Str("hub", hubAddr.Tag()).Logger()

	minter, err := auth.NewMinter(cfg.SecretKey, cfg.SecretKeyRT, cfg.Algorithm, cfg.TokenExpirySeconds)
	if err != nil {
		return fmt.Errorf("build token minter: %w", err)
	}
	nmsClient := nms.NewClient(nms.Config{
		NBAPIURL:     cfg.NBAPIURL,
		SBAPIURL:     cfg.SBAPIURL,
		Timeout:      cfg.HTTPXTimeout,
		PoolSize:     cfg.WorkerHTTPXPoolSize,
		InstallerKey: cfg.InstallerKey,
	}, minter)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	conn, err := bus.Dial(ctx, pubAddr, pullAddr, hubAddr.Tag())
	if err != nil {
		return fmt.Errorf("dial controller bus: %w", err)
	}
	defer conn.Close()

	w := worker.New(conn, nmsClient, worker.Config{
		Net:           net,
		Hub:           hub,
		CSI:           cfg.CSI,
		MaxConcurrent: cfg.MaxConcurrentWorkerCommands,
	})

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- w.Run(ctx) }()

	logger.Info().Msg("hub worker running")

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-runErrCh:
		if err != nil {
			logger.Error().Err(err).Msg("run loop exited")
		}
	}

	cancel()

	done := make(chan struct{})
	go func() {
		w.WaitHeartbeats()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(shutdownGrace):
		logger.Warn().Msg("heartbeat loops did not drain before grace period expired")
	}

	return nil
}
