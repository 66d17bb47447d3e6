package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruletree/ruletree/internal/api"
	"github.com/ruletree/ruletree/internal/api/handlers"
	"github.com/ruletree/ruletree/internal/auth"
	"github.com/ruletree/ruletree/internal/cache"
	"github.com/ruletree/ruletree/internal/config"
	"github.com/ruletree/ruletree/internal/health"
	"github.com/ruletree/ruletree/internal/jobs"
	"github.com/ruletree/ruletree/internal/rbac"
	"github.com/ruletree/ruletree/internal/shutdown"
	"github.com/ruletree/ruletree/internal/store"
	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
	"github.com/ruletree/ruletree/pkg/resilience"
)

var (
	// serveAddr overrides the configured listen address
	serveAddr string
)

// newServeCmd creates the serve command.
func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		Long: `Run the rule tree HTTP API.

The server exposes validation, compilation and row evaluation
endpoints plus rule-set storage, with health probes and Prometheus
metrics. Backends (store, cache, queue, auth) come from the config
file and RULETREE_* environment variables.`,
		Args: cobra.NoArgs,
		Example: `  ruletree serve
  ruletree serve --config ruletree.yaml
  ruletree serve --addr :9090`,
		RunE: runServe,
	}

	cmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.SetDefault()

	reg := metrics.NewRegistry(metrics.DefaultConfig())
	metrics.SetGlobal(reg)

	st, ca, mgr, err := openBackends(cfg, logger, reg)
	if err != nil {
		return err
	}

	opts, err := buildOptions(cfg)
	if err != nil {
		return err
	}

	hcfg := handlers.Config{
		Store:    st,
		Cache:    ca,
		Options:  opts,
		CacheTTL: cfg.Cache.TTL.Std(),
		Logger:   logger,
		Metrics:  reg,
	}
	if mgr != nil {
		hcfg.Jobs = mgr
	}
	h, err := handlers.New(hcfg)
	if err != nil {
		return err
	}

	hreg := health.NewRegistry(Version)
	hreg.Register("store", health.SeverityCritical, st.Ping)
	if ca != nil {
		hreg.Register("cache", health.SeverityWarning, ca.Health)
	}
	if mgr != nil {
		hreg.Register("jobs", health.SeverityWarning, func(context.Context) error {
			return mgr.Ping()
		})
	}

	rcfg := api.RouterConfig{
		Logger:  logger,
		Health:  health.NewHandler(hreg),
		Version: Version,
	}
	if cfg.Metrics.Enabled {
		rcfg.Metrics = reg
		rcfg.MetricsPath = cfg.Metrics.Path
	}
	if cfg.Auth.Enabled() {
		av, err := auth.NewValidator(auth.Config{
			SigningKey: cfg.Auth.SigningKey,
			Issuer:     cfg.Auth.Issuer,
			TokenTTL:   cfg.Auth.TokenTTL.Std(),
		})
		if err != nil {
			return err
		}
		rcfg.Auth = av
		if cfg.Auth.RequireRoles {
			rcfg.Policy = rbac.DefaultPolicy()
		}
	}

	srv := api.NewServer(api.NewRouterWithConfig(h, rcfg), api.ServerConfig{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
		IdleTimeout:  cfg.Server.IdleTimeout.Std(),
	})

	sd := shutdown.New(shutdown.Config{Timeout: cfg.Server.ShutdownTimeout.Std()}, logger)
	sd.Register("http", shutdown.PriorityServer, srv.Shutdown)
	if mgr != nil {
		sd.Register("jobs", shutdown.PriorityWorkers, func(context.Context) error {
			return mgr.Close()
		})
	}
	if ca != nil {
		sd.Register("cache", shutdown.PriorityStores, func(context.Context) error {
			return ca.Close()
		})
	}
	sd.Register("store", shutdown.PriorityStores, func(context.Context) error {
		return st.Close()
	})
	done := sd.OnSignal()

	logger.Info("server starting",
		"addr", cfg.Server.Addr,
		"store", cfg.Store.Driver,
		"cache", cfg.Cache.Enabled,
		"jobs", cfg.Jobs.Enabled,
		"auth", cfg.Auth.Enabled(),
	)
	fmt.Fprintf(cmd.OutOrStdout(), "Listening on %s\n", cfg.Server.Addr)

	if err := srv.Start(); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	fmt.Fprintln(cmd.OutOrStdout(), "Server stopped")

	return nil
}

// openBackends connects the store, the optional cache, and the
// optional queue manager.
func openBackends(cfg *config.Config, logger *logging.Logger, reg *metrics.Registry) (store.Store, cache.Cache, *jobs.Manager, error) {
	st, err := store.Open(store.Config{
		Driver:       cfg.Store.Driver,
		DSN:          cfg.Store.DSN,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("open store: %w", err)
	}
	st = store.WithMetrics(st, reg.Store())

	var ca cache.Cache
	if cfg.Cache.Enabled {
		ca, err = cache.New(cache.Config{
			Backend:    cfg.Cache.Backend,
			RedisURL:   cfg.Cache.RedisURL,
			DefaultTTL: cfg.Cache.TTL.Std(),
		})
		if err != nil {
			st.Close()
			return nil, nil, nil, fmt.Errorf("open cache: %w", err)
		}
		// The redis backend crosses the network, so a dead instance
		// must not cost a dial timeout on every compile request.
		if cfg.Cache.Backend == "redis" {
			br := resilience.New("cache", resilience.Config{
				Logger: logger.Logger,
				OnStateChange: func(_, to resilience.State) {
					reg.Cache().SetBreakerState(to.String())
				},
			})
			reg.Cache().SetBreakerState(br.State().String())
			ca = cache.WithBreaker(ca, br)
		}
	}

	var mgr *jobs.Manager
	if cfg.Jobs.Enabled {
		mgr, err = newManager(cfg, st, ca, logger, reg)
		if err != nil {
			if ca != nil {
				ca.Close()
			}
			st.Close()
			return nil, nil, nil, err
		}
	}

	return st, ca, mgr, nil
}

// newManager builds the queue manager with its task handlers.
func newManager(cfg *config.Config, st store.Store, ca cache.Cache, logger *logging.Logger, reg *metrics.Registry) (*jobs.Manager, error) {
	opts, err := buildOptions(cfg)
	if err != nil {
		return nil, err
	}
	jh, err := jobs.NewHandlers(st, ca, opts, logger, reg)
	if err != nil {
		return nil, err
	}
	mgr, err := jobs.NewManager(jobsConfig(cfg), jh, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("connect queue: %w", err)
	}
	return mgr, nil
}

// jobsConfig maps the config section onto queue settings.
func jobsConfig(cfg *config.Config) jobs.Config {
	jcfg := jobs.DefaultConfig()
	jcfg.RedisURI = cfg.Jobs.RedisURL
	if cfg.Jobs.Concurrency > 0 {
		jcfg.Concurrency = cfg.Jobs.Concurrency
	}
	if cfg.Jobs.PurgeAfter.Std() > 0 {
		jcfg.PurgeRetention = cfg.Jobs.PurgeAfter.Std()
	}
	jcfg.PurgeSchedule = cfg.Jobs.PurgeSchedule
	return jcfg
}
