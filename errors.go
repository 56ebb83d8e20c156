package batchgate

import (
	"errors"
	"fmt"
)

var (
	// Argument errors.
	ErrInvalidJobID = errors.New("batchgate: empty job id")

	// Wiring errors.
	ErrNoRunner = errors.New("batchgate: no job runner configured")

	// ErrPoolRejected reports that the worker pool refused a submission
	// even though an admission permit had been granted. This is a
	// recoverable, per-call condition: the permit has already been
	// returned and the caller may retry. It occurs when the pool is
	// shutting down, or when the intake queue is full because the gate
	// capacity exceeds the intake capacity.
	ErrPoolRejected = errors.New("batchgate: worker pool rejected job")
)

func errInvalidConfig(msg string) error {
	return fmt.Errorf("batchgate: invalid config: %s", msg)
}
