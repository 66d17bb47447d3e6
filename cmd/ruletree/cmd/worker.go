package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ruletree/ruletree/internal/shutdown"
	"github.com/ruletree/ruletree/pkg/logging"
	"github.com/ruletree/ruletree/pkg/metrics"
)

// newWorkerCmd creates the worker command.
func newWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the background worker",
		Long: `Run the background worker and scheduler.

The worker processes queued tasks: warming the compile cache after
rule-set writes, compiling uploaded batch documents, and the periodic
purge of soft-disabled rule sets. It needs jobs.enabled and
jobs.redis_url in the config.`,
		Args: cobra.NoArgs,
		Example: `  ruletree worker --config ruletree.yaml
  RULETREE_JOBS_REDIS_URL=redis://localhost:6379 ruletree worker`,
		RunE: runWorker,
	}

	return cmd
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Jobs.Enabled {
		return errors.New("jobs are not enabled; set jobs.enabled and jobs.redis_url")
	}

	logger := logging.New(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger.SetDefault()

	reg := metrics.NewRegistry(metrics.DefaultConfig())
	metrics.SetGlobal(reg)

	st, ca, mgr, err := openBackends(cfg, logger, reg)
	if err != nil {
		return err
	}

	if err := mgr.Start(); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}

	sd := shutdown.New(shutdown.Config{Timeout: cfg.Server.ShutdownTimeout.Std()}, logger)
	sd.Register("worker", shutdown.PriorityWorkers, func(context.Context) error {
		return mgr.Stop()
	})
	if ca != nil {
		sd.Register("cache", shutdown.PriorityStores, func(context.Context) error {
			return ca.Close()
		})
	}
	sd.Register("store", shutdown.PriorityStores, func(context.Context) error {
		return st.Close()
	})
	done := sd.OnSignal()

	logger.Info("worker started",
		"concurrency", jobsConfig(cfg).Concurrency,
		"purge_schedule", cfg.Jobs.PurgeSchedule,
	)
	fmt.Fprintln(cmd.OutOrStdout(), "Worker running")

	<-done
	fmt.Fprintln(cmd.OutOrStdout(), "Worker stopped")

	return nil
}
