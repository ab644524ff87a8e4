package cmd

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3leaps/queuectl/internal/observability"
	"github.com/3leaps/queuectl/pkg/manifest"
	"github.com/3leaps/queuectl/pkg/queue"
)

var (
	enqueuePriority   int
	enqueueTimeout    int
	enqueueDelay      int
	enqueueMaxRetries int
	enqueueID         string
	enqueueJobPath    string
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue [command-or-json]",
	Short: "Add a job to the queue",
	Long: `Add a job to the queue.

The argument is either a raw shell command or a JSON object:

  queuectl enqueue "echo hello"
  queuectl enqueue '{"command":"make test","priority":5}'
  queuectl enqueue "sleep 30" --timeout 10 --delay 60

With --job, a YAML or JSON manifest enqueues a batch:

  queuectl enqueue --job nightly.yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)

	enqueueCmd.Flags().IntVar(&enqueuePriority, "priority", 0, "Priority (higher wins at claim time)")
	enqueueCmd.Flags().IntVar(&enqueueTimeout, "timeout", 0, "Per-attempt timeout in seconds (default 300)")
	enqueueCmd.Flags().IntVar(&enqueueDelay, "delay", 0, "Seconds before the job is first eligible to run")
	enqueueCmd.Flags().IntVar(&enqueueMaxRetries, "max-retries", -1, "Retry ceiling before dead-letter (default 3)")
	enqueueCmd.Flags().StringVar(&enqueueID, "id", "", "Explicit job id (default random)")
	enqueueCmd.Flags().StringVarP(&enqueueJobPath, "job", "j", "", "Path to a batch-enqueue manifest (YAML or JSON)")
}

// jsonJob mirrors the accepted inline JSON shape.
type jsonJob struct {
	ID             string `json:"id"`
	Command        string `json:"command"`
	Priority       int    `json:"priority"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	MaxRetries     *int   `json:"max_retries"`
	DelaySeconds   int    `json:"delay_seconds"`
}

func runEnqueue(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if enqueueJobPath == "" && len(args) == 0 {
		return fmt.Errorf("either a command argument or --job is required")
	}

	q, closeQueue, err := openQueue(ctx)
	if err != nil {
		return err
	}
	defer closeQueue()

	if enqueueJobPath != "" {
		return enqueueManifest(cmd, q)
	}

	params, err := parseEnqueueArg(cmd, args[0])
	if err != nil {
		return err
	}

	job, err := q.Enqueue(ctx, params)
	if err != nil {
		return err
	}

	observability.CLILogger.Debug("enqueued job",
		zap.String("job_id", job.ID),
		zap.Int("priority", job.Priority))
	fmt.Printf("Enqueued job %s\n", job.ID)
	return nil
}

// parseEnqueueArg interprets the single positional argument: a JSON object
// when it looks like one, a raw shell command otherwise. Flags override
// JSON fields when set explicitly.
func parseEnqueueArg(cmd *cobra.Command, arg string) (queue.EnqueueParams, error) {
	params := queue.EnqueueParams{
		ID:             enqueueID,
		Command:        arg,
		Priority:       enqueuePriority,
		TimeoutSeconds: enqueueTimeout,
	}
	if enqueueMaxRetries >= 0 {
		v := enqueueMaxRetries
		params.MaxRetries = &v
	}
	delay := enqueueDelay

	if strings.HasPrefix(strings.TrimSpace(arg), "{") {
		var spec jsonJob
		if err := json.Unmarshal([]byte(arg), &spec); err != nil {
			return queue.EnqueueParams{}, fmt.Errorf("invalid job JSON: %w", err)
		}
		params.Command = spec.Command
		if spec.ID != "" && params.ID == "" {
			params.ID = spec.ID
		}
		if !cmd.Flags().Changed("priority") {
			params.Priority = spec.Priority
		}
		if !cmd.Flags().Changed("timeout") {
			params.TimeoutSeconds = spec.TimeoutSeconds
		}
		if params.MaxRetries == nil {
			params.MaxRetries = spec.MaxRetries
		}
		if !cmd.Flags().Changed("delay") {
			delay = spec.DelaySeconds
		}
	}

	if delay > 0 {
		runAt := time.Now().UTC().Add(time.Duration(delay) * time.Second)
		params.RunAt = &runAt
	}
	return params, nil
}

func enqueueManifest(cmd *cobra.Command, q *queue.Queue) error {
	ctx := cmd.Context()

	m, err := manifest.Load(enqueueJobPath)
	if err != nil {
		return err
	}

	for _, spec := range m.Jobs {
		params := queue.EnqueueParams{
			ID:             spec.ID,
			Command:        spec.Command,
			Priority:       spec.Priority,
			TimeoutSeconds: spec.TimeoutSeconds,
			MaxRetries:     spec.MaxRetries,
		}
		if spec.DelaySeconds > 0 {
			runAt := time.Now().UTC().Add(time.Duration(spec.DelaySeconds) * time.Second)
			params.RunAt = &runAt
		}

		job, err := q.Enqueue(ctx, params)
		if err != nil {
			return fmt.Errorf("enqueue %q: %w", spec.Command, err)
		}
		fmt.Printf("Enqueued job %s\n", job.ID)
	}

	fmt.Printf("%d jobs enqueued from %s\n", len(m.Jobs), enqueueJobPath)
	return nil
}
