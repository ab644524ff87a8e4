package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show job counts and queue configuration",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	stats, err := q.Stats(ctx)
	if err != nil {
		return err
	}
	cfg, err := q.AllConfig(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "STATE\tCOUNT")
	_, _ = fmt.Fprintf(w, "pending\t%d\n", stats.Pending)
	_, _ = fmt.Fprintf(w, "processing\t%d\n", stats.Processing)
	_, _ = fmt.Fprintf(w, "completed\t%d\n", stats.Completed)
	_, _ = fmt.Fprintf(w, "failed\t%d\n", stats.Failed)
	_, _ = fmt.Fprintf(w, "dead\t%d\n", stats.Dead)

	if len(cfg) > 0 {
		keys := make([]string, 0, len(cfg))
		for k := range cfg {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		_, _ = fmt.Fprintln(w, "\nCONFIG\tVALUE")
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "%s\t%s\n", k, cfg[k])
		}
	}

	return nil
}
