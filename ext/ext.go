// Package ext defines the lifecycle hook system for batchgate.
// Extensions are notified of dispatch lifecycle events and can react to
// them — recording metrics, writing audit trails, alerting on failures.
// Each hook is a separate interface so extensions opt in only to the
// events they care about.
//
// Hooks are invoked synchronously on the emitting goroutine and must be
// cheap; anything slow belongs on the extension's own goroutine. A hook
// error or panic is logged and never disturbs the dispatch path.
package ext

import (
	"context"
	"time"

	"github.com/xraph/batchgate/job"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// JobAdmitted is called when a dispatch call obtains an admission permit.
type JobAdmitted interface {
	OnJobAdmitted(ctx context.Context, jobID string) error
}

// JobSkipped is called when the pre-check declines an admitted job.
// The permit has already been returned.
type JobSkipped interface {
	OnJobSkipped(ctx context.Context, jobID string) error
}

// JobRejected is called when the worker pool refuses a submission despite
// an available permit.
type JobRejected interface {
	OnJobRejected(ctx context.Context, jobID string, err error) error
}

// JobStarted is called when a worker begins executing a job body.
type JobStarted interface {
	OnJobStarted(ctx context.Context, req *job.Request) error
}

// JobCompleted is called after a job body finishes successfully.
type JobCompleted interface {
	OnJobCompleted(ctx context.Context, req *job.Request, elapsed time.Duration) error
}

// JobFailed is called when a job body fails or panics. The failure has
// already been contained at the worker boundary; this hook is the only
// place it surfaces.
type JobFailed interface {
	OnJobFailed(ctx context.Context, req *job.Request, err error) error
}

// Shutdown is called once when the launcher finishes shutting down.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
