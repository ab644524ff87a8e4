// Package worker implements the queuectl worker pool: N independent
// consumers that claim jobs, supervise child processes with timeout
// enforcement, and report outcomes back to the queue.
//
// Cross-worker coordination happens only through the store's conditional
// updates; workers share no in-process mutable state beyond counters.
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/3leaps/queuectl/pkg/queue"
)

// Config configures pool behavior.
type Config struct {
	// Count is the number of concurrent workers. Default: 1
	Count int

	// PollInterval is how long an idle worker sleeps between empty
	// claim attempts. Default: 1s
	PollInterval time.Duration

	// ClaimRate caps claim attempts per worker per second during busy
	// iterations, so a hot queue does not hammer the store.
	// Default: 10/s
	ClaimRate float64

	// ReapThreshold requeues processing jobs claimed longer ago than
	// this at startup, recovering jobs stranded by a crashed worker.
	// Zero disables the reaper.
	ReapThreshold time.Duration
}

// DefaultConfig returns the default pool configuration.
func DefaultConfig() Config {
	return Config{
		Count:         1,
		PollInterval:  time.Second,
		ClaimRate:     10,
		ReapThreshold: 10 * time.Minute,
	}
}

// Pool runs a set of workers against one queue.
//
// Pool is safe for single use only. Create a new Pool for each run.
type Pool struct {
	queue *queue.Queue
	cfg   Config
	log   *zap.Logger

	processed atomic.Int64
	failed    atomic.Int64
}

// worker is the per-worker handle: its id plus the job currently held.
type worker struct {
	id           int
	currentJobID string
	startedAt    time.Time
	isProcessing bool
}

func New(q *queue.Queue, cfg Config, log *zap.Logger) *Pool {
	def := DefaultConfig()
	if cfg.Count <= 0 {
		cfg.Count = def.Count
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.ClaimRate <= 0 {
		cfg.ClaimRate = def.ClaimRate
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Pool{queue: q, cfg: cfg, log: log}
}

// Processed returns the number of jobs this pool completed successfully.
func (p *Pool) Processed() int64 { return p.processed.Load() }

// Failed returns the number of failed attempts this pool reported.
func (p *Pool) Failed() int64 { return p.failed.Load() }

// Run starts the workers and blocks until the context is cancelled and
// every in-flight job has run to natural completion (success, failure, or
// timeout). New claims stop as soon as the context is done; children are
// never killed by shutdown itself.
func (p *Pool) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if p.cfg.ReapThreshold > 0 {
		reaped, err := p.queue.ReapStale(ctx, p.cfg.ReapThreshold)
		if err != nil {
			return err
		}
		if reaped > 0 {
			p.log.Info("recovered stranded jobs", zap.Int64("count", reaped))
		}
	}

	p.log.Info("worker pool starting", zap.Int("count", p.cfg.Count))

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Count; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.runWorker(ctx, &worker{id: id})
		}(i + 1)
	}
	wg.Wait()

	p.log.Info("worker pool drained",
		zap.Int64("processed", p.processed.Load()),
		zap.Int64("failed", p.failed.Load()))
	return nil
}

// runWorker is one worker's claim → execute → report loop.
func (p *Pool) runWorker(ctx context.Context, w *worker) {
	limiter := rate.NewLimiter(rate.Limit(p.cfg.ClaimRate), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return // context cancelled
		}

		job, err := p.queue.Claim(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Error("claim failed", zap.Int("worker", w.id), zap.Error(err))
			if !p.sleep(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		}
		if job == nil {
			if !p.sleep(ctx, p.cfg.PollInterval) {
				return
			}
			continue
		}

		w.currentJobID = job.ID
		w.startedAt = time.Now().UTC()
		w.isProcessing = true

		p.execute(w, job)

		w.currentJobID = ""
		w.isProcessing = false

		if ctx.Err() != nil {
			return
		}
	}
}

// execute runs one claimed job to completion and reports the outcome.
// Reporting errors are logged, never fatal: the job stays processing until
// the reaper recovers it, and the worker moves on.
func (p *Pool) execute(w *worker, job *queue.Job) {
	p.log.Info("processing job",
		zap.Int("worker", w.id),
		zap.String("job_id", job.ID),
		zap.String("command", job.Command))

	res := runShell(job)

	// Reporting uses a fresh context: shutdown cancellation must not stop
	// an outcome from being recorded.
	ctx := context.Background()

	if res.spawnErr == nil && !res.timedOut && res.exitCode == 0 {
		elapsedMS := res.elapsed.Milliseconds()
		if err := p.queue.Complete(ctx, job.ID, res.stdout, elapsedMS); err != nil {
			p.log.Error("report completion failed",
				zap.Int("worker", w.id),
				zap.String("job_id", job.ID),
				zap.Error(err))
			return
		}
		p.processed.Add(1)
		p.log.Info("job completed",
			zap.Int("worker", w.id),
			zap.String("job_id", job.ID),
			zap.Int64("execution_ms", elapsedMS))
		return
	}

	message := failureMessage(job, res)
	if err := p.queue.Fail(ctx, job.ID, message); err != nil {
		p.log.Error("report failure failed",
			zap.Int("worker", w.id),
			zap.String("job_id", job.ID),
			zap.Error(err))
		return
	}
	p.failed.Add(1)
	p.log.Warn("job failed",
		zap.Int("worker", w.id),
		zap.String("job_id", job.ID),
		zap.String("error", message))
}

// sleep waits for d or until the context is cancelled; false means stop.
func (p *Pool) sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
