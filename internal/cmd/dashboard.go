package cmd

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/3leaps/queuectl/internal/observability"
	"github.com/3leaps/queuectl/internal/server"
)

var dashboardPort int

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Start the read-only HTTP dashboard",
	Long: `Start the read-only HTTP dashboard.

Endpoints:
  GET /            HTML dashboard
  GET /api/stats   JSON state counts and derived metrics
  GET /api/jobs    JSON job list (?state=&limit=)

Ctrl-C shuts the server down gracefully.`,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	dashboardCmd.Flags().IntVar(&dashboardPort, "port", 0,
		"Listen port (default from config, 8080)")
}

func runDashboard(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	port := appCfg.Dashboard.Port
	if dashboardPort > 0 {
		port = dashboardPort
	}

	srv := server.New(q, port, observability.CLILogger)
	return srv.ListenAndServe(ctx)
}
