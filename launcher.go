package batchgate

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/batchgate/ext"
	"github.com/xraph/batchgate/gate"
	"github.com/xraph/batchgate/worker"
)

// Outcome is the terminal state of a Dispatch call.
type Outcome string

const (
	// OutcomeScheduled means the job body was handed to the worker pool.
	OutcomeScheduled Outcome = "scheduled"
	// OutcomeSkipped means the pre-check declined the job. Not an error;
	// no work was scheduled and the permit was returned.
	OutcomeSkipped Outcome = "skipped"
	// OutcomeRejected means the worker pool refused the submission
	// despite an available permit. The permit was returned.
	OutcomeRejected Outcome = "rejected"
)

// PreCheck decides synchronously whether an admitted job should actually
// run — duplicate suppression, for example. Returning false is a
// legitimate business decision, not an error. A PreCheck must be fast;
// it runs on the dispatching goroutine while a permit is held.
type PreCheck func(ctx context.Context, jobID string) (bool, error)

// Runner executes the body of a scheduled job on a worker goroutine.
// Implementations must contain every failure: nothing a Runner does may
// panic through to the pool. *worker.Executor is the standard Runner.
type Runner interface {
	Run(ctx context.Context, jobID string)
}

// Launcher admits jobs into a bounded worker pool. Admission is gated by
// a counting semaphore sized independently of the pool's intake queue;
// every successful gate acquisition is paired with exactly one release on
// every exit path.
//
// Per call: submitted → admitted → pre-checked →
// {skipped | scheduled | rejected} → running → done.
type Launcher struct {
	config   Config
	logger   *slog.Logger
	gate     *gate.Gate
	pool     *worker.Pool
	runner   Runner
	preCheck PreCheck
	hooks    *ext.Registry
}

// Option configures a Launcher.
type Option func(*Launcher) error

// WithConfig replaces the whole configuration.
func WithConfig(cfg Config) Option {
	return func(l *Launcher) error {
		l.config = cfg
		return nil
	}
}

// WithCapacity sets the number of admission permits.
func WithCapacity(n int) Option {
	return func(l *Launcher) error {
		l.config.Capacity = n
		return nil
	}
}

// WithIntakeCapacity sets the worker pool's intake queue size.
func WithIntakeCapacity(n int) Option {
	return func(l *Launcher) error {
		l.config.IntakeCapacity = n
		return nil
	}
}

// WithWorkers sets the number of worker goroutines.
func WithWorkers(n int) Option {
	return func(l *Launcher) error {
		l.config.Workers = n
		return nil
	}
}

// WithFairness selects FIFO permit hand-off. The policy is fixed once the
// Launcher is constructed; there is no way to change it afterwards.
func WithFairness(fair bool) Option {
	return func(l *Launcher) error {
		l.config.Fair = fair
		return nil
	}
}

// WithRunner sets the job body runner. Required.
func WithRunner(r Runner) Option {
	return func(l *Launcher) error {
		l.runner = r
		return nil
	}
}

// WithPreCheck sets the synchronous pre-check hook. When nil, every
// admitted job is scheduled.
func WithPreCheck(pc PreCheck) Option {
	return func(l *Launcher) error {
		l.preCheck = pc
		return nil
	}
}

// WithHooks sets the lifecycle hook registry.
func WithHooks(r *ext.Registry) Option {
	return func(l *Launcher) error {
		l.hooks = r
		return nil
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Launcher) error {
		l.logger = logger
		return nil
	}
}

// New creates a Launcher. The admission gate and the worker pool are
// created and owned by the Launcher; the pool's workers start immediately.
func New(opts ...Option) (*Launcher, error) {
	l := &Launcher{
		config: DefaultConfig(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(l); err != nil {
			return nil, err
		}
	}
	if err := l.config.validate(); err != nil {
		return nil, err
	}
	if l.runner == nil {
		return nil, ErrNoRunner
	}
	if l.hooks == nil {
		l.hooks = ext.NewRegistry(l.logger)
	}

	l.gate = gate.New(l.config.Capacity, gate.WithFairness(l.config.Fair))
	l.pool = worker.NewPool(l.config.Workers, l.config.IntakeCapacity, l.logger)

	l.logger.Debug("launcher created",
		slog.Int("capacity", l.config.Capacity),
		slog.Int("intake_capacity", l.config.IntakeCapacity),
		slog.Int("workers", l.config.Workers),
		slog.Bool("fair", l.config.Fair),
	)
	return l, nil
}

// Config returns a copy of the launcher's configuration.
func (l *Launcher) Config() Config { return l.config }

// Gate returns the admission gate. Exposed for inspection; callers must
// not acquire or release permits themselves.
func (l *Launcher) Gate() *gate.Gate { return l.gate }

// Hooks returns the lifecycle hook registry.
func (l *Launcher) Hooks() *ext.Registry { return l.hooks }

// Dispatch admits and schedules one job. It blocks while the gate is
// saturated; that wait is the system's backpressure, not a stall. If ctx
// is cancelled during the wait, the dispatch is abandoned with no permit
// held.
//
// The returned Outcome is the call's terminal state. An error is returned
// only for conditions attributable to this call (empty id, cancelled
// admission, failed pre-check, pool rejection); failures inside the job
// body are contained at the worker boundary and reported through the
// hook registry instead.
func (l *Launcher) Dispatch(ctx context.Context, jobID string) (Outcome, error) {
	if jobID == "" {
		return "", ErrInvalidJobID
	}

	if err := l.gate.Acquire(ctx); err != nil {
		return "", fmt.Errorf("batchgate: admission for job %q: %w", jobID, err)
	}
	l.hooks.EmitJobAdmitted(ctx, jobID)

	if l.preCheck != nil {
		ok, err := l.preCheck(ctx, jobID)
		if err != nil {
			l.gate.Release()
			return "", fmt.Errorf("batchgate: pre-check job %q: %w", jobID, err)
		}
		if !ok {
			l.gate.Release()
			l.hooks.EmitJobSkipped(ctx, jobID)
			l.logger.Info("job skipped by pre-check", slog.String("job_id", jobID))
			return OutcomeSkipped, nil
		}
	}

	task := func() {
		// The permit spans queueing and execution; release happens here
		// on every path, including a panicking runner.
		defer l.gate.Release()
		l.runner.Run(context.Background(), jobID)
	}

	if err := l.pool.Submit(task); err != nil {
		l.gate.Release()
		l.hooks.EmitJobRejected(ctx, jobID, err)
		l.logger.Error("worker pool rejected job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		return OutcomeRejected, fmt.Errorf("%w: %q: %w", ErrPoolRejected, jobID, err)
	}

	return OutcomeScheduled, nil
}

// Shutdown stops the pool from accepting new submissions and blocks until
// every queued and running job has finished. There is no deadline: the
// loop polls for quiescence once per ShutdownPollInterval, logging
// progress, for as long as it takes. Batch jobs are never abandoned, so
// this trades availability for completeness. Shutdown never fails.
//
// Dispatch calls made after Shutdown begins take the pool-rejection path.
func (l *Launcher) Shutdown() {
	l.pool.Shutdown()

	for !l.pool.AwaitQuiescence(l.config.ShutdownPollInterval) {
		l.logger.Info("waiting for in-flight jobs",
			slog.Int("active", l.pool.Active()),
			slog.Int("queued", l.pool.Queued()),
		)
	}

	l.hooks.EmitShutdown(context.Background())
	l.logger.Info("launcher shut down")
}
