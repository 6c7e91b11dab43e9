package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/BioHazard786/huddle/internal/config"
	"github.com/BioHazard786/huddle/internal/directory"
	"github.com/BioHazard786/huddle/internal/logging"
	"github.com/BioHazard786/huddle/internal/server"
	"github.com/BioHazard786/huddle/internal/version"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:           "huddle-relay",
	Short:         "Room directory and signaling relay for huddle",
	Version:       version.Version,
	SilenceErrors: true,
	SilenceUsage:  true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadRelay(cmd.Flags(), configFile)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg)
	},
}

func run(ctx context.Context, cfg *config.Relay) error {
	logger := logging.Init(cfg.LogLevel, cfg.LogFormat)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	// 1. Create the Hub and run its event loop
	hub := directory.NewHub(directory.NewDirectory(directory.NewMetrics(reg), logger), logger)
	go hub.Run()

	// 2. Mount the websocket, health and metrics routes
	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewRouter(hub, server.Options{
			AllowedOrigins: cfg.AllowedOrigins,
			Gatherer:       reg,
			Logger:         logger,
		}),
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Serve until a signal arrives
	errCh := make(chan error, 1)
	go func() {
		logger.Info("relay listening", "addr", cfg.Addr, "version", version.Version)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		hub.Stop()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen on %s: %w", cfg.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("shutting down", "timeout", cfg.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown; stopping
	// the hub closes them.
	err := srv.Shutdown(shutdownCtx)
	hub.Stop()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("relay stopped")
	return nil
}

func main() {
	config.RelayFlags(rootCmd.Flags())
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "optional YAML config file")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "huddle-relay:", err)
		os.Exit(1)
	}
}
