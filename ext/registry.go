package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/xraph/batchgate/job"
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type jobAdmittedEntry struct {
	name string
	hook JobAdmitted
}

type jobSkippedEntry struct {
	name string
	hook JobSkipped
}

type jobRejectedEntry struct {
	name string
	hook JobRejected
}

type jobStartedEntry struct {
	name string
	hook JobStarted
}

type jobCompletedEntry struct {
	name string
	hook JobCompleted
}

type jobFailedEntry struct {
	name string
	hook JobFailed
}

type shutdownEntry struct {
	name string
	hook Shutdown
}

// Registry holds registered extensions and dispatches lifecycle events to
// them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	jobAdmitted  []jobAdmittedEntry
	jobSkipped   []jobSkippedEntry
	jobRejected  []jobRejectedEntry
	jobStarted   []jobStartedEntry
	jobCompleted []jobCompletedEntry
	jobFailed    []jobFailedEntry
	shutdown     []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable hook
// caches. Extensions are notified in registration order. Register is not
// safe to call concurrently with emits; register everything before
// dispatching.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(JobAdmitted); ok {
		r.jobAdmitted = append(r.jobAdmitted, jobAdmittedEntry{name, h})
	}
	if h, ok := e.(JobSkipped); ok {
		r.jobSkipped = append(r.jobSkipped, jobSkippedEntry{name, h})
	}
	if h, ok := e.(JobRejected); ok {
		r.jobRejected = append(r.jobRejected, jobRejectedEntry{name, h})
	}
	if h, ok := e.(JobStarted); ok {
		r.jobStarted = append(r.jobStarted, jobStartedEntry{name, h})
	}
	if h, ok := e.(JobCompleted); ok {
		r.jobCompleted = append(r.jobCompleted, jobCompletedEntry{name, h})
	}
	if h, ok := e.(JobFailed); ok {
		r.jobFailed = append(r.jobFailed, jobFailedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// EmitJobAdmitted notifies all extensions that implement JobAdmitted.
func (r *Registry) EmitJobAdmitted(ctx context.Context, jobID string) {
	for _, e := range r.jobAdmitted {
		r.safeEmit("OnJobAdmitted", e.name, func() error {
			return e.hook.OnJobAdmitted(ctx, jobID)
		})
	}
}

// EmitJobSkipped notifies all extensions that implement JobSkipped.
func (r *Registry) EmitJobSkipped(ctx context.Context, jobID string) {
	for _, e := range r.jobSkipped {
		r.safeEmit("OnJobSkipped", e.name, func() error {
			return e.hook.OnJobSkipped(ctx, jobID)
		})
	}
}

// EmitJobRejected notifies all extensions that implement JobRejected.
func (r *Registry) EmitJobRejected(ctx context.Context, jobID string, err error) {
	for _, e := range r.jobRejected {
		r.safeEmit("OnJobRejected", e.name, func() error {
			return e.hook.OnJobRejected(ctx, jobID, err)
		})
	}
}

// EmitJobStarted notifies all extensions that implement JobStarted.
func (r *Registry) EmitJobStarted(ctx context.Context, req *job.Request) {
	for _, e := range r.jobStarted {
		r.safeEmit("OnJobStarted", e.name, func() error {
			return e.hook.OnJobStarted(ctx, req)
		})
	}
}

// EmitJobCompleted notifies all extensions that implement JobCompleted.
func (r *Registry) EmitJobCompleted(ctx context.Context, req *job.Request, elapsed time.Duration) {
	for _, e := range r.jobCompleted {
		r.safeEmit("OnJobCompleted", e.name, func() error {
			return e.hook.OnJobCompleted(ctx, req, elapsed)
		})
	}
}

// EmitJobFailed notifies all extensions that implement JobFailed.
func (r *Registry) EmitJobFailed(ctx context.Context, req *job.Request, err error) {
	for _, e := range r.jobFailed {
		r.safeEmit("OnJobFailed", e.name, func() error {
			return e.hook.OnJobFailed(ctx, req, err)
		})
	}
}

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		r.safeEmit("OnShutdown", e.name, func() error {
			return e.hook.OnShutdown(ctx)
		})
	}
}

// safeEmit runs one hook, logging errors and containing panics so a
// misbehaving extension cannot break dispatch.
func (r *Registry) safeEmit(hook, extension string, fn func() error) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("extension hook panicked",
				slog.String("hook", hook),
				slog.String("extension", extension),
				slog.Any("panic", rec),
			)
		}
	}()
	if err := fn(); err != nil {
		r.logger.Error("extension hook failed",
			slog.String("hook", hook),
			slog.String("extension", extension),
			slog.String("error", err.Error()),
		)
	}
}
