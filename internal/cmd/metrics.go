package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Show execution statistics",
	RunE:  runMetrics,
}

func init() {
	rootCmd.AddCommand(metricsCmd)
	metricsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runMetrics(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	m, err := q.Metrics(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(m)
	}

	fmt.Printf("Completed jobs:     %d\n", m.TotalCompleted)
	fmt.Printf("Success rate:       %d%%\n", m.SuccessRate)
	fmt.Printf("Avg execution time: %dms (last 100 completed)\n", m.AvgExecutionMS)
	return nil
}
