package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/3leaps/queuectl/internal/observability"
	"github.com/3leaps/queuectl/pkg/worker"
)

var workerCount int

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Manage worker processes",
}

var workerStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the worker pool",
	Long: `Run a pool of workers that claim and execute pending jobs.

Workers poll the queue about once per second when idle. Ctrl-C triggers a
graceful drain: no new jobs are claimed, and every in-flight job runs to
natural completion before the process exits.`,
	RunE: runWorkerStart,
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerStartCmd)

	workerStartCmd.Flags().IntVar(&workerCount, "count", 0,
		"Number of concurrent workers (default from config, 3)")
}

func runWorkerStart(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	cfg := worker.Config{
		Count:         appCfg.Worker.Count,
		PollInterval:  appCfg.Worker.PollInterval,
		ReapThreshold: appCfg.Worker.ReapThreshold,
	}
	if workerCount > 0 {
		cfg.Count = workerCount
	}

	pool := worker.New(q, cfg, observability.CLILogger)
	return pool.Run(ctx)
}
