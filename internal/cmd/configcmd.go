package cmd

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage queue configuration",
	Long: `Manage the queue's shared configuration table.

Recognized keys: max_retries, backoff_base, worker_timeout.
backoff_base sets the retry backoff base; max_retries and worker_timeout
are stored and listed but do not change job defaults or timeouts.
Unknown keys are stored verbatim.`,
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print a config value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a config value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all config values",
	RunE:  runConfigList,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configListCmd)
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	value, err := q.GetConfig(ctx, args[0])
	if err != nil {
		return err
	}
	if value == "" {
		fmt.Printf("%s is not set\n", args[0])
		return nil
	}
	fmt.Println(value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	if err := q.SetConfig(ctx, args[0], args[1]); err != nil {
		return err
	}
	fmt.Printf("%s = %s\n", args[0], args[1])
	return nil
}

func runConfigList(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	cfg, err := q.AllConfig(ctx)
	if err != nil {
		return err
	}
	if len(cfg) == 0 {
		_, _ = fmt.Fprintln(os.Stdout, "No config set")
		return nil
	}

	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer func() { _ = w.Flush() }()

	_, _ = fmt.Fprintln(w, "KEY\tVALUE")
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "%s\t%s\n", k, cfg[k])
	}
	return nil
}
