// Package job defines the job request model, the per-type execution
// context, and the registry mapping job type codes to handlers.
package job

import "context"

// Request is one unit of batch work. The dispatcher deals only in the
// SequenceID; the full record is resolved by an external collaborator
// when a worker picks the job up.
type Request struct {
	// SequenceID uniquely identifies this submission.
	SequenceID string

	// TypeCode identifies the job type. It keys both the handler lookup
	// and the shared per-type ExecContext.
	TypeCode string

	// Args are the job's launch arguments, opaque to the framework.
	Args []string
}

// Handler executes the business logic for one job type. The ExecContext
// is shared by every concurrent execution of the same type code and must
// be treated as read-only scaffolding, not per-job state.
type Handler func(ctx context.Context, ec *ExecContext, req *Request) error
