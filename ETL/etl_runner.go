package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/LilVoxy/ministry_analytics/ETL/config"
	"github.com/LilVoxy/ministry_analytics/ETL/extractors"
	"github.com/LilVoxy/ministry_analytics/ETL/runner"
	"github.com/LilVoxy/ministry_analytics/ETL/utils"
	"github.com/LilVoxy/ministry_analytics/database"
	"github.com/LilVoxy/ministry_analytics/processor"
)

// etlApp holds what every subcommand needs
type etlApp struct {
	cfg    *config.Config
	logger *utils.ETLLogger
	store  *database.Store
}

// options shared by all subcommands
type rootOptions struct {
	configPath string
	verbose    bool
}

func newApp(ctx context.Context, opts *rootOptions, withStore bool) (*etlApp, error) {
	env, err := config.LoadServerOptions(".env")
	if err != nil {
		return nil, err
	}
	if opts.configPath != "" {
		env.ConfigPath = opts.configPath
	}

	logger, err := utils.NewETLLogger(opts.verbose, env.LogPath)
	if err != nil {
		return nil, err
	}
	if !opts.verbose {
		logger.SetLevel(env.LogrusLevel())
	} else {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := config.Load(env.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	app := &etlApp{cfg: cfg, logger: logger}
	if withStore {
		app.store, err = database.Open(ctx, cfg.Storage.DuckDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		logger.Debug("Store opened at %q", cfg.Storage.DuckDBPath)
	}
	return app, nil
}

func (a *etlApp) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:          "ministry-etl",
		Short:        "Schedule sheet ingest and post-load analytics",
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to the YAML config (overrides MINISTRY_CONFIG)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "Debug logging")

	cmd.AddCommand(
		newOnceCmd(opts),
		newScheduledCmd(opts),
		newForecastCmd(opts),
		newAuthCmd(opts),
		newSnapshotCmd(opts),
	)
	return cmd
}

// once: one ingest run
func newOnceCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run one ingest and print its summary",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer app.Close()

			r, err := runner.NewFromConfig(cmd.Context(), app.cfg, app.store.DB(), app.logger)
			if err != nil {
				return err
			}
			summary, err := r.Execute(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(summary)
		},
	}
}

// scheduled: ingest on ingest.refresh_interval until interrupted
func newScheduledCmd(opts *rootOptions) *cobra.Command {
	var runFirst bool
	cmd := &cobra.Command{
		Use:   "scheduled",
		Short: "Run ingest on the configured refresh interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			app, err := newApp(ctx, opts, true)
			if err != nil {
				return err
			}
			defer app.Close()

			r, err := runner.NewFromConfig(ctx, app.cfg, app.store.DB(), app.logger)
			if err != nil {
				return err
			}
			if runFirst {
				if _, err := r.Execute(ctx); err != nil {
					app.logger.Error("Initial ingest run failed: %v", err)
				}
			}
			return r.StartScheduler(ctx)
		},
	}
	cmd.Flags().BoolVar(&runFirst, "run-first", true, "Run one ingest before waiting for the first tick")
	return cmd
}

// forecast: recompute the participation forecast from stored facts
func newForecastCmd(opts *rootOptions) *cobra.Command {
	var (
		weeks      int
		forecast   int
		confidence float64
		minR2      float64
	)
	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Recompute the weekly participation forecast",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer app.Close()

			flags := cmd.Flags()
			if flags.Changed("weeks") {
				app.cfg.Forecast.AnalysisWeeks = weeks
			}
			if flags.Changed("forecast") {
				app.cfg.Forecast.ForecastWeeks = forecast
			}
			if flags.Changed("confidence") {
				app.cfg.Forecast.ConfidenceLevel = confidence
			}
			if flags.Changed("min-r2") {
				app.cfg.Forecast.MinR2Threshold = minR2
			}
			app.logger.Info("Forecast parameters: weeks=%d, forecast=%d, confidence=%.2f, minR2=%.2f",
				app.cfg.Forecast.AnalysisWeeks, app.cfg.Forecast.ForecastWeeks,
				app.cfg.Forecast.ConfidenceLevel, app.cfg.Forecast.MinR2Threshold)

			// forecasting reads only stored facts, no source is needed
			r, err := runner.New(app.cfg, app.store.DB(), nil, app.logger)
			if err != nil {
				return err
			}
			result, err := r.RunForecast(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(result)
		},
	}
	cmd.Flags().IntVar(&weeks, "weeks", 26, "Weeks of history to fit")
	cmd.Flags().IntVar(&forecast, "forecast", 8, "Weeks to forecast")
	cmd.Flags().Float64Var(&confidence, "confidence", 0.95, "Confidence level of the interval")
	cmd.Flags().Float64Var(&minR2, "min-r2", 0.30, "Minimum R² for a reliable forecast")
	return cmd
}

// auth: run the OAuth consent flow again and cache the new token
func newAuthCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize read access to the schedule sheet",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts, false)
			if err != nil {
				return err
			}
			resolver := extractors.NewCredentialResolver(app.cfg.Auth, app.logger)
			if err := resolver.Reauthorize(cmd.Context()); err != nil {
				return err
			}
			app.logger.Info("Token cached at %s", app.cfg.Auth.TokenFile)
			return nil
		},
	}
}

// snapshot: ingest the last saved sheet snapshot without calling the API
func newSnapshotCmd(opts *rootOptions) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Ingest the saved sheet snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := newApp(cmd.Context(), opts, true)
			if err != nil {
				return err
			}
			defer app.Close()

			if file == "" {
				file = app.cfg.Source.SnapshotFile
			}
			if file == "" {
				return fmt.Errorf("no snapshot file: set source.snapshot_file or --file")
			}
			source := extractors.NewSnapshotReader(processor.NewSnapshotStore(file))
			r, err := runner.New(app.cfg, app.store.DB(), source, app.logger)
			if err != nil {
				return err
			}
			summary, err := r.Execute(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSON(summary)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "Snapshot file (defaults to source.snapshot_file)")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
