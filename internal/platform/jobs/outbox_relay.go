package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
)

const relayJobTimeout = 30 * time.Second

// Relayer is one outbox relay cycle.
type Relayer interface {
	RunOnce(ctx context.Context) (int, error)
}

// RelayOutboxArgs identifies the periodic outbox relay job.
type RelayOutboxArgs struct{}

func (RelayOutboxArgs) Kind() string { return "relay_poll_outbox" }

// InsertOpts gives each run a single attempt; the next period retries.
func (RelayOutboxArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{MaxAttempts: 1}
}

type RelayOutboxWorker struct {
	river.WorkerDefaults[RelayOutboxArgs]
	Relay  Relayer
	Logger *slog.Logger
}

func (w *RelayOutboxWorker) Work(ctx context.Context, _ *river.Job[RelayOutboxArgs]) error {
	published, err := w.Relay.RunOnce(ctx)
	if err != nil {
		return err
	}
	if published > 0 && w.Logger != nil {
		w.Logger.Info("outbox relay job completed",
			"event", "jobs_relay_outbox_completed",
			"module", "internal/platform/jobs",
			"layer", "platform",
			"published_count", published,
		)
	}
	return nil
}

func (w *RelayOutboxWorker) Timeout(*river.Job[RelayOutboxArgs]) time.Duration {
	return relayJobTimeout
}

func PeriodicRelay(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return RelayOutboxArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}

// Runner owns the river client and the pgx pool it runs on.
type Runner struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

type RunnerConfig struct {
	DSN      string
	Interval time.Duration
	Migrate  bool
	Relay    Relayer
	Logger   *slog.Logger
}

func NewRunner(ctx context.Context, cfg RunnerConfig) (*Runner, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	driver := riverpgxv5.New(pool)

	if cfg.Migrate {
		migrator, err := rivermigrate.New(driver, nil)
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("create river migrator: %w", err)
		}
		if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate river schema: %w", err)
		}
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &RelayOutboxWorker{Relay: cfg.Relay, Logger: cfg.Logger})

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{PeriodicRelay(cfg.Interval)},
		Logger:       cfg.Logger,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Runner{client: client, pool: pool}, nil
}

func (r *Runner) Start(ctx context.Context) error {
	return r.client.Start(ctx)
}

// Stop waits for the running job to finish.
func (r *Runner) Stop(ctx context.Context) error {
	return r.client.Stop(ctx)
}

// StopAndCancel cancels the running job and waits for it to return.
func (r *Runner) StopAndCancel(ctx context.Context) error {
	return r.client.StopAndCancel(ctx)
}

func (r *Runner) Stopped() <-chan struct{} {
	return r.client.Stopped()
}

func (r *Runner) Close() {
	r.pool.Close()
}
