package worker

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/xraph/batchgate/ctxcache"
	"github.com/xraph/batchgate/ext"
	"github.com/xraph/batchgate/job"
	"github.com/xraph/batchgate/middleware"
)

// RequestResolver looks up the full job record for a sequence id. The
// record store itself (database, file, queue) stays outside the core;
// this is the narrow contract the executor consumes.
type RequestResolver func(ctx context.Context, jobID string) (*job.Request, error)

// ContextFactory builds the shared execution context for a job type
// code. It may perform expensive I/O; the executor's cache guarantees at
// most one concurrent construction per type.
type ContextFactory func(ctx context.Context, typeCode string) (*job.ExecContext, error)

// Executor runs one job body end to end: resolve the request, obtain the
// per-type execution context, and invoke the registered handler through
// the middleware chain. Run is a containment boundary — every failure,
// including panics, is reported through the hook registry and the logger
// and never propagates to the pool.
type Executor struct {
	registry *job.Registry
	resolver RequestResolver
	contexts *ctxcache.Cache[*job.ExecContext]
	factory  ContextFactory
	hooks    *ext.Registry
	mw       middleware.Middleware
	logger   *slog.Logger
}

// NewExecutor creates an Executor with the given collaborators.
func NewExecutor(
	registry *job.Registry,
	resolver RequestResolver,
	factory ContextFactory,
	hooks *ext.Registry,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry: registry,
		resolver: resolver,
		contexts: ctxcache.New[*job.ExecContext](),
		factory:  factory,
		hooks:    hooks,
		mw:       middleware.Chain(mws...),
		logger:   logger,
	}
}

// Contexts returns the per-type execution context cache.
func (e *Executor) Contexts() *ctxcache.Cache[*job.ExecContext] { return e.contexts }

// Run executes the job identified by jobID. It never panics and returns
// nothing: outcomes are observable only through hooks and logs, keeping
// the pool and the gate healthy no matter what the body does.
func (e *Executor) Run(ctx context.Context, jobID string) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("job execution panicked",
				slog.String("job_id", jobID),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	req, err := e.resolver(ctx, jobID)
	if err != nil {
		e.fail(ctx, &job.Request{SequenceID: jobID}, fmt.Errorf("resolve job %q: %w", jobID, err))
		return
	}

	ec, err := e.contexts.Resolve(ctx, req.TypeCode, ctxcache.Factory[*job.ExecContext](e.factory))
	if err != nil {
		e.fail(ctx, req, fmt.Errorf("execution context for type %q: %w", req.TypeCode, err))
		return
	}

	handler, ok := e.registry.Get(req.TypeCode)
	if !ok {
		e.fail(ctx, req, fmt.Errorf("no handler registered for type %q", req.TypeCode))
		return
	}

	e.hooks.EmitJobStarted(ctx, req)
	start := time.Now()

	terminal := func(ctx context.Context) error {
		return handler(ctx, ec, req)
	}
	err = e.mw(ctx, req, terminal)
	elapsed := time.Since(start)

	if err != nil {
		e.fail(ctx, req, err)
		return
	}
	e.hooks.EmitJobCompleted(ctx, req, elapsed)
}

// Close tears down every cached execution context. Call it only after
// dispatching has stopped (Launcher.Shutdown has returned).
func (e *Executor) Close() error {
	return e.contexts.TeardownAll(func(ec *job.ExecContext) error {
		return ec.Close()
	})
}

func (e *Executor) fail(ctx context.Context, req *job.Request, err error) {
	e.logger.Error("job failed",
		slog.String("job_id", req.SequenceID),
		slog.String("job_type", req.TypeCode),
		slog.String("error", err.Error()),
	)
	e.hooks.EmitJobFailed(ctx, req, err)
}
