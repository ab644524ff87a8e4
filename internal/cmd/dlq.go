package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var dlqLimit int

var dlqCmd = &cobra.Command{
	Use:   "dlq",
	Short: "Inspect and revive dead-letter jobs",
}

var dlqListCmd = &cobra.Command{
	Use:   "list",
	Short: "List dead-letter jobs",
	RunE:  runDLQList,
}

var dlqRetryCmd = &cobra.Command{
	Use:   "retry <job_id>",
	Short: "Re-queue a dead-letter job",
	Long: `Re-queue a dead-letter job as a fresh pending job.

The job keeps its id and command; attempts reset to zero and the
dead-letter entry is removed.`,
	Args: cobra.ExactArgs(1),
	RunE: runDLQRetry,
}

func init() {
	rootCmd.AddCommand(dlqCmd)
	dlqCmd.AddCommand(dlqListCmd)
	dlqCmd.AddCommand(dlqRetryCmd)

	dlqListCmd.Flags().IntVar(&dlqLimit, "limit", 50, "Maximum entries to list")
	dlqListCmd.Flags().Bool("json", false, "Output as JSON")
}

func runDLQList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	jsonOutput, _ := cmd.Flags().GetBool("json")

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	entries, err := q.GetDLQ(ctx, dlqLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "Dead-letter queue is empty")
		return nil
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "JOB ID\tATTEMPTS\tFAILED\tERROR\tCOMMAND")
	for _, d := range entries {
		_, _ = fmt.Fprintf(w, "%s\t%d/%d\t%s\t%s\t%s\n",
			shortID(d.ID),
			d.Attempts, d.MaxRetries,
			d.FailedAt.UTC().Format(time.RFC3339),
			d.ErrorMessage,
			d.Command,
		)
	}

	return nil
}

func runDLQRetry(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	job, err := q.RetryDead(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Re-queued job %s\n", job.ID)
	return nil
}
