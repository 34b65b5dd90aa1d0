package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/fleetsim/internal/api"
	"github.com/cuemby/fleetsim/internal/auth"
	"github.com/cuemby/fleetsim/internal/bus"
	"github.com/cuemby/fleetsim/internal/config"
	"github.com/cuemby/fleetsim/internal/dispatch"
	"github.com/cuemby/fleetsim/internal/log"
	"github.com/cuemby/fleetsim/internal/metrics"
	"github.com/cuemby/fleetsim/internal/nms"
	"github.com/cuemby/fleetsim/internal/simulator"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the controller: bus, dispatcher, and HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		return serve(configPath)
	},
}

func serve(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := log.WithComponent("simctl")

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

	busServer := bus.NewServer()
	pubAddr, err := busServer.ListenDownlink(ctx, fmt.Sprintf("0.0.0.0:%d", cfg.PubPort))
	if err != nil {
		return fmt.Errorf("listen downlink: %w", err)
	}
	pullAddr, err := busServer.ListenUplink(ctx, fmt.Sprintf("0.0.0.0:%d", cfg.PullPort))
	if err != nil {
		return fmt.Errorf("listen uplink: %w", err)
	}
	metrics.RegisterComponent("bus", true, "")
	logger.Info().Str("pub", pubAddr).Str("pull", pullAddr).Msg("bus listening")

	root := simulator.NewRoot(nmsClient, busServer, cfg.WorkerBin, pubAddr, pullAddr, cfg.MaxConcurrentWorkerCommands)
	metrics.RegisterComponent("nms", true, "")

	disp := dispatch.New(root)
	go disp.Run(ctx, busServer.Incoming)

	apiServer := api.NewServer(root)
	httpServer := apiServer.HTTPServer(fmt.Sprintf("%s:%d", cfg.AppHost, cfg.AppPort))

	httpErrCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			httpErrCh <- err
		}
	}()
	logger.Info().Str("addr", httpServer.Addr).Msg("http api listening")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info().Msg("shutting down")
	case err := <-httpErrCh:
		logger.Error().Err(err).Msg("http server exited")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server did not shut down cleanly")
	}
	cancel()

	for _, net := range root.Networks() {
		_ = root.RemoveNetwork(net.Index())
	}

	return nil
}
