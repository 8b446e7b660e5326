// main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/models"
	"github.com/LilVoxy/ministry_analytics/ETL/runner"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/database"
	"github.com/LilVoxy/ministry_analytics/metrics"
	"github.com/LilVoxy/ministry_analytics/routes"
	"github.com/LilVoxy/ministry_analytics/websocket"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:          "ministry-dashboard",
		Short:        "Volunteer participation dashboard",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := config.LoadServerOptions(".env")
			if err != nil {
				return err
			}
			if configPath != "" {
				opts.ConfigPath = configPath
			}
			if addr != "" {
				opts.Addr = addr
			}
			return serve(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to the YAML config (overrides MINISTRY_CONFIG)")
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides DASHBOARD_ADDR)")
	return cmd
}

func serve(ctx context.Context, opts *config.ServerOptions) error {
	logger, err := utils.NewETLLogger(opts.LogrusLevel() >= logrus.DebugLevel, opts.LogPath)
	if err != nil {
		return err
	}
	logger.SetLevel(opts.LogrusLevel())
	logger.Info("Starting dashboard...")

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Store
	store, err := database.Open(ctx, cfg.Storage.DuckDBPath)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer store.Close()
	logger.Info("Store opened at %q", cfg.Storage.DuckDBPath)

	// WebSocket hub for "ingest finished" events
	hub := websocket.NewManager(logger)
	go hub.Run(ctx)

	deps := routes.Deps{
		Facade: metrics.NewFacade(store, models.NewDuckDBIngestRunRepository(store.DB()), cfg, logger),
		Hub:    hub,
		Logger: logger,
	}

	// Ingest; without a usable source the dashboard still serves stored data
	ingest, err := runner.NewFromConfig(ctx, cfg, store.DB(), logger)
	if err != nil {
		logger.Warn("Refresh disabled: %v", err)
	} else {
		ingest.OnFinish(func(e runner.Event) {
			msg := websocket.Message{
				Type:        e.Type,
				RunID:       e.RunID,
				Status:      e.Status,
				Source:      e.Source,
				FactsLoaded: e.FactsCount,
				Time:        e.FinishedAt,
			}
			if err := hub.Publish(msg); err != nil {
				logger.Warn("Failed to publish ingest event: %v", err)
			}
		})
		deps.Runner = ingest

		go func() {
			if err := ingest.StartScheduler(ctx); err != nil && !errors.Is(err, runner.ErrSchedulerDisabled) {
				logger.Error("Scheduler stopped: %v", err)
			}
		}()
	}

	router := mux.NewRouter()
	routes.SetupRoutes(router, deps)

	server := &http.Server{
		Addr:        opts.Addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// refresh runs synchronously inside the request
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Dashboard listening on http://localhost%s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutdown signal received, closing connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed: %v", err)
	}
	logger.Info("Dashboard stopped")
	return nil
}
