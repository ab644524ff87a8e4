// Package cmd wires the queuectl command tree.
package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/3leaps/queuectl/internal/config"
	"github.com/3leaps/queuectl/internal/observability"
	"github.com/3leaps/queuectl/pkg/queue"
	"github.com/3leaps/queuectl/pkg/queuestore"
)

var (
	rootDBPath  string
	rootVerbose bool

	// appCfg is resolved once in PersistentPreRunE and read by subcommands.
	appCfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "queuectl",
	Short: "Durable background-job queue for shell commands",
	Long: `queuectl is a durable background-job queue for shell commands:
multi-worker execution, retries with exponential backoff, a dead-letter
queue, priority and scheduled execution, and a read-only dashboard.

State lives in a single SQLite database file (default queue.db); no broker
is required.

Examples:
  queuectl enqueue "tar czf backup.tgz /data" --priority 5
  queuectl worker start --count 4
  queuectl status
  queuectl dlq retry 4f8a2c1e-...`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if rootDBPath != "" {
			cfg.DBPath = rootDBPath
		}
		if rootVerbose {
			cfg.Verbose = true
		}
		appCfg = cfg
		return observability.Init(cfg.Verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDBPath, "db-path", "",
		"Path to the queue database (default \"queue.db\", or QUEUECTL_DB_PATH)")
	rootCmd.PersistentFlags().BoolVarP(&rootVerbose, "verbose", "v", false,
		"Enable debug logging")
}

// Execute runs the CLI. Any error prints in red on stderr and exits 1.
func Execute() {
	defer observability.Sync()
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "\x1b[31mError: %v\x1b[0m\n", err)
		observability.Sync()
		os.Exit(1)
	}
}

// openQueue opens and migrates the configured database and returns the
// queue plus a close func.
func openQueue(ctx context.Context) (*queue.Queue, func(), error) {
	db, err := queuestore.Open(ctx, queuestore.Config{Path: appCfg.DBPath})
	if err != nil {
		return nil, nil, err
	}
	if err := queuestore.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	q := queue.New(db, observability.CLILogger)
	return q, func() { _ = db.Close() }, nil
}
