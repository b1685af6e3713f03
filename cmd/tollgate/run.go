package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"mercator-hq/tollgate/pkg/address"
	"mercator-hq/tollgate/pkg/cli"
	"mercator-hq/tollgate/pkg/config"
	"mercator-hq/tollgate/pkg/rules"
	"mercator-hq/tollgate/pkg/rules/store"
	"mercator-hq/tollgate/pkg/server"
	"mercator-hq/tollgate/pkg/telemetry"
	"mercator-hq/tollgate/pkg/tps"
	"mercator-hq/tollgate/pkg/tps/sweep"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the tollgate server",
	Long: `Start the tollgate server with the specified configuration.

On startup the server restores rules from the rule store, loads the rule
file on top, and then serves admission checks and the admin API. SIGHUP
reloads the rule file.

Examples:
  # Start with defaults and TOLLGATE_* environment overrides
  tollgate run

  # Start with a config file
  tollgate run --config /etc/tollgate/config.yaml

  # Override listen address
  tollgate run --listen 0.0.0.0:9090

  # Validate config and rules without starting the server
  tollgate run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and rules without starting the server")
}

// loadConfig loads the config file named by --config with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
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
	} else if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	ctx, stop := cli.SignalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, os.Stdout)
	if err != nil {
		return err
	}
	defer a.close()

	if runFlags.dryRun {
		fmt.Fprintf(cmd.OutOrStdout(), "configuration valid, %d points registered\n", len(a.manager.Points()))
		return nil
	}

	if err := a.run(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// app is the wired server process.
type app struct {
	cfg      *config.Config
	tel      *telemetry.Telemetry
	logger   *slog.Logger
	manager  *tps.Manager
	backend  store.Backend
	reloader *rules.Reloader
	servers  *address.ServerListManager
	sweeper  *sweep.Scheduler
	server   *server.Server
}

// newApp builds every component from cfg, restores stored rules and loads
// the rule file. A rule file that fails to load aborts startup.
func newApp(ctx context.Context, cfg *config.Config, logOut io.Writer) (_ *app, err error) {
	a := &app{cfg: cfg}
	defer func() {
		if err != nil {
			a.close()
		}
	}()

	a.logger = slog.Default()
	a.tel, err = telemetry.New(&cfg.Telemetry, buildInfo(), logOut)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	a.logger = a.tel.Logger
	slog.SetDefault(a.logger)

	policy, err := tps.ParseUnknownPointPolicy(cfg.TPS.UnknownPointPolicy)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	a.manager = tps.NewManager(
		tps.WithLogger(a.logger),
		tps.WithMetrics(a.tel.Metrics.TPS()),
		tps.WithIdlePeriods(cfg.TPS.IdlePeriods),
		tps.WithUnknownPointPolicy(policy),
		tps.WithWarnInterval(cfg.TPS.WarnInterval),
	)
	for _, name := range cfg.TPS.Points {
		a.manager.NewPoint(name)
	}

	a.backend, err = openStore(cfg.Storage)
	if err != nil {
		return nil, err
	}
	a.reloader = rules.NewReloader(cfg.Rules.File, a.manager, a.backend, a.logger)

	restored, err := a.reloader.Restore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to restore rules: %w", err)
	}
	a.logger.Info("rules restored from store", "backend", cfg.Storage.Backend, "points", restored)

	if cfg.Rules.File != "" {
		err := a.reloader.Reload(ctx)
		a.tel.Metrics.RecordReload(err)
		if err != nil {
			return nil, cli.NewConfigError(cfg.Rules.File, err)
		}
	}

	if cfg.Cluster.ServerAddr != "" {
		if err := a.startServerList(ctx); err != nil {
			return nil, err
		}
	}

	a.sweeper = sweep.NewScheduler(a.manager, cfg.TPS.SweepSchedule, a.logger)

	a.server, err = server.New(cfg, server.Deps{
		Manager:   a.manager,
		Reloader:  a.reloader,
		Telemetry: a.tel,
		Servers:   a.servers,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (a *app) startServerList(ctx context.Context) error {
	plugin := address.NewPropertyPlugin(a.cfg.Cluster.ServerAddr)
	a.servers = address.NewServerListManager(plugin, a.cfg.Cluster.Name, a.logger)
	a.servers.AddListener(func(list []string) {
		a.tel.Metrics.UpdateServerList(a.servers.Name(), len(list))
	})
	if err := a.servers.Start(ctx); err != nil {
		return cli.NewConfigError(cfgFile, fmt.Errorf("cluster.server_addr: %w", err))
	}
	a.tel.Metrics.UpdateServerList(a.servers.Name(), len(a.servers.ServerList()))
	return nil
}

func openStore(cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Backend {
	case "", "memory":
		return store.NewMemoryBackend(), nil
	case "sqlite":
		b, err := store.NewSQLiteBackend(store.SQLiteConfig{
			Path:        cfg.SQLite.Path,
			Driver:      cfg.SQLite.Driver,
			BusyTimeout: cfg.SQLite.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to open rule store: %w", err)
		}
		return b, nil
	default:
		return nil, cli.NewConfigError(cfgFile, fmt.Errorf("unsupported storage backend %q", cfg.Backend))
	}
}

// run serves until ctx is cancelled. The HTTP server, rule watcher, SIGHUP
// handler and sweep scheduler share one errgroup so the first failure stops
// the rest.
func (a *app) run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	if err := a.sweeper.Start(gctx); err != nil {
		return err
	}
	defer a.sweeper.Stop()

	g.Go(func() error {
		return a.server.Start(gctx)
	})

	if a.cfg.Rules.File != "" {
		if a.cfg.Rules.Watch {
			w, err := rules.NewWatcher(a.cfg.Rules.File, a.cfg.Rules.Debounce, a.logger)
			if err != nil {
				return fmt.Errorf("failed to watch rules: %w", err)
			}
			defer w.Stop()
			g.Go(func() error {
				return w.Watch(gctx, a.reload)
			})
		}

		hup, stopHup := cli.ReloadSignal()
		defer stopHup()
		g.Go(func() error {
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-hup:
					a.logger.Info("reload requested by signal")
					if err := a.reload(gctx); err != nil {
						a.logger.Error("rule reload failed", "error", err)
					}
				}
			}
		})
	}

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *app) reload(ctx context.Context) error {
	err := a.reloader.Reload(ctx)
	a.tel.Metrics.RecordReload(err)
	return err
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if a.servers != nil {
		if err := a.servers.Shutdown(ctx); err != nil {
			a.logger.Warn("server list shutdown failed", "error", err)
		}
	}
	if a.backend != nil {
		if err := a.backend.Close(); err != nil {
			a.logger.Warn("rule store close failed", "error", err)
		}
	}
	if a.tel != nil {
		if err := a.tel.Shutdown(ctx); err != nil {
			a.logger.Warn("telemetry shutdown failed", "error", err)
		}
	}
}
