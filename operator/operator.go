// Package operator drives a Launcher from an external supply of job
// requests. It polls a RequestSource at a fixed interval, optionally
// rate-limits intake, and dispatches each returned job id. The source —
// typically a job-request table or queue — stays outside the core behind
// the narrow Poll contract.
package operator

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/xraph/batchgate"
	"github.com/xraph/batchgate/gate"
)

// Exit status codes returned by Run.
const (
	StatusOK    = 0
	StatusError = 1
)

// RequestSource supplies job sequence ids ready for dispatch. Poll
// returns at most max ids; an empty slice means nothing is pending. Poll
// errors are logged and retried on the next interval, never fatal.
type RequestSource interface {
	Poll(ctx context.Context, max int) ([]string, error)
}

// Operator polls a RequestSource and feeds the Launcher until its
// context is cancelled, then shuts the Launcher down.
type Operator struct {
	launcher *batchgate.Launcher
	source   RequestSource
	logger   *slog.Logger

	pollInterval time.Duration
	batchSize    int
	pollers      int
	limiter      *rate.Limiter
}

// Option configures an Operator.
type Option func(*Operator)

// WithPollInterval sets how long a poller sleeps when the source is
// empty or failing. Default 1s.
func WithPollInterval(d time.Duration) Option {
	return func(o *Operator) { o.pollInterval = d }
}

// WithBatchSize sets the maximum ids fetched per poll. Default 10.
func WithBatchSize(n int) Option {
	return func(o *Operator) { o.batchSize = n }
}

// WithPollers sets the number of concurrent polling goroutines.
// Default 1.
func WithPollers(n int) Option {
	return func(o *Operator) { o.pollers = n }
}

// WithRateLimit caps sustained dispatches per second with the given
// burst, using a token bucket. Zero disables rate limiting (the
// default); admission backpressure still applies.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(o *Operator) {
		if perSecond > 0 {
			if burst < 1 {
				burst = 1
			}
			o.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
		}
	}
}

// New creates an Operator for the given launcher and source.
func New(l *batchgate.Launcher, src RequestSource, logger *slog.Logger, opts ...Option) *Operator {
	o := &Operator{
		launcher:     l,
		source:       src,
		logger:       logger,
		pollInterval: time.Second,
		batchSize:    10,
		pollers:      1,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run polls and dispatches until ctx is cancelled, then shuts the
// launcher down — blocking until every in-flight job finishes — and
// returns an exit status code.
func (o *Operator) Run(ctx context.Context) int {
	if o.launcher == nil || o.source == nil {
		o.logger.Error("operator missing launcher or source")
		return StatusError
	}

	o.logger.Info("operator started",
		slog.Int("pollers", o.pollers),
		slog.Duration("poll_interval", o.pollInterval),
		slog.Int("batch_size", o.batchSize),
	)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < o.pollers; i++ {
		g.Go(func() error {
			o.pollLoop(gctx)
			return nil
		})
	}
	_ = g.Wait()

	o.launcher.Shutdown()
	o.logger.Info("operator stopped")
	return StatusOK
}

func (o *Operator) pollLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		ids, err := o.source.Poll(ctx, o.batchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			o.logger.Error("poll failed", slog.String("error", err.Error()))
			o.sleep(ctx)
			continue
		}
		if len(ids) == 0 {
			o.sleep(ctx)
			continue
		}

		for _, id := range ids {
			if o.limiter != nil {
				if err := o.limiter.Wait(ctx); err != nil {
					return
				}
			}
			if !o.dispatch(ctx, id) {
				return
			}
		}
	}
}

// dispatch hands one id to the launcher. It returns false when polling
// should stop (the dispatch context was cancelled mid-admission).
func (o *Operator) dispatch(ctx context.Context, id string) bool {
	outcome, err := o.launcher.Dispatch(ctx, id)
	if err != nil {
		if errors.Is(err, gate.ErrCancelled) {
			return false
		}
		// Pool rejections and pre-check failures are per-job conditions:
		// log and move on, the source will offer the job again.
		o.logger.Warn("dispatch failed",
			slog.String("job_id", id),
			slog.String("error", err.Error()),
		)
		return true
	}
	if outcome == batchgate.OutcomeSkipped {
		o.logger.Debug("job skipped", slog.String("job_id", id))
	}
	return true
}

func (o *Operator) sleep(ctx context.Context) {
	select {
	case <-time.After(o.pollInterval):
	case <-ctx.Done():
	}
}
