package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"materna360/quotagate/pkg/cli"
	"materna360/quotagate/pkg/config"
	"materna360/quotagate/pkg/identity"
	"materna360/quotagate/pkg/quota"
	"materna360/quotagate/pkg/quota/retention"
	"materna360/quotagate/pkg/server"
	"materna360/quotagate/pkg/server/handlers"
	"materna360/quotagate/pkg/suggest"
	"materna360/quotagate/pkg/telemetry/health"
	"materna360/quotagate/pkg/telemetry/metrics"
	"materna360/quotagate/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
	noWatch       bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the quota gate server",
	Long: `Start the quota gate HTTP server.

The daily limit is reloaded without restart when the config file changes or
the process receives SIGHUP. Other settings require a restart.

Examples:
  # Start with defaults
  quotagate run

  # Start with a config file
  quotagate run --config /etc/quotagate/config.yaml

  # Override listen address
  quotagate run --listen 0.0.0.0:8080

  # Build every component without serving
  quotagate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "initialize components and exit")
	runCmd.Flags().BoolVar(&runFlags.noWatch, "no-watch", false, "disable config file watching")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runFlags.listenAddress != "" {
		cfg.Server.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}

	logger, err := newLogger(&cfg.Telemetry.Logging)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	tp, err := tracing.New(ctx, &cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Telemetry.Tracing.Timeout)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	cal, err := newCalendar(&cfg.Quota)
	if err != nil {
		return err
	}

	l, err := openLedger(ctx, &cfg.Ledger)
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer l.Close()

	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)

	gate, err := quota.NewGate(quota.Config{
		Ledger:     l,
		Calendar:   cal,
		DailyLimit: cfg.Quota.DailyLimit,
		Backend:    cfg.Ledger.Backend,
		Metrics:    quota.NewMetrics(collector.Registry()),
		Logger:     logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	verifier, err := newVerifier(&cfg.Identity)
	if err != nil {
		return err
	}
	resolver := identity.NewResolver(verifier, identity.CookieConfig{
		Name:   cfg.Identity.Cookie.Name,
		MaxAge: cfg.Identity.Cookie.MaxAge,
		Secure: cfg.Identity.Cookie.Secure,
		Domain: cfg.Identity.Cookie.Domain,
	}, logger)

	generator, provider, err := newGenerator(&cfg.Generator)
	if err != nil {
		return err
	}

	suggestionHandler, err := handlers.NewSuggestionHandler(handlers.SuggestionConfig{
		Resolver:          resolver,
		Gate:              gate,
		Generator:         generator,
		Provider:          provider,
		Fallback:          suggest.NewFallback(nil),
		Metrics:           collector,
		GenerationTimeout: cfg.Quota.GenerationTimeout,
		LedgerTimeout:     cfg.Quota.LedgerTimeout,
		DeclineMessage:    cfg.Quota.DeclineMessage,
		RequestTimeout:    cfg.Server.WriteTimeout,
		Logger:            logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	checker := health.New(cfg.Quota.LedgerTimeout)
	checker.Register("ledger", false, l.Ping)

	pruner, err := retention.NewPruner(l, cal, retention.Config{
		Days:     cfg.Quota.Retention.Days,
		Schedule: cfg.Quota.Retention.Schedule,
	})
	if err != nil {
		return cli.NewConfigError("quota.retention", err)
	}

	routes := server.Routes{
		Suggestion: suggestionHandler,
		Quota:      handlers.NewQuotaHandler(resolver, gate, cfg.Quota.LedgerTimeout, logger),
		Health:     checker,
		Version:    health.VersionHandler(Version, GitCommit, BuildDate),
	}
	if cfg.Telemetry.Metrics.Enabled {
		routes.Metrics = collector.Handler()
		routes.MetricsPath = cfg.Telemetry.Metrics.Path
	}
	srv := server.New(&cfg.Server, routes, collector, logger)

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid, all components initialized")
		return nil
	}

	logger.Info("starting quotagate",
		"version", Version,
		"config", cfgFile,
		"ledger", cfg.Ledger.Backend,
		"identity", cfg.Identity.Mode,
		"generator", provider,
		"daily_limit", gate.Limit(),
		"timezone", cal.Location().String(),
	)

	scheduler := retention.NewScheduler(pruner)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("quota.retention.schedule", err)
	}
	defer scheduler.Stop()

	applyReload := func(next *config.Config) {
		gate.SetLimit(next.Quota.DailyLimit)
	}

	var watcher *config.Watcher
	if cfgFile != "" && !runFlags.noWatch {
		watcher, err = config.NewWatcher(cfgFile, config.DefaultWatchDebounce, logger)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Start(gctx)
	})

	if watcher != nil {
		g.Go(func() error {
			return watcher.Watch(gctx, applyReload)
		})
	}

	g.Go(func() error {
		return reloadOnHangup(gctx, logger, applyReload)
	})

	if err := g.Wait(); err != nil {
		return cli.NewCommandError("run", err)
	}
	logger.Info("quotagate stopped")
	return nil
}

// reloadOnHangup reloads the configuration on SIGHUP until ctx is done.
func reloadOnHangup(ctx context.Context, logger *slog.Logger, apply func(*config.Config)) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			next, err := config.ReloadConfig()
			if err != nil {
				logger.Error("config reload rejected, keeping current configuration", "error", err)
				continue
			}
			logger.Info("configuration reloaded on SIGHUP")
			apply(next)
		}
	}
}
