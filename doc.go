// Package batchgate provides bounded asynchronous dispatch for batch jobs.
// It admits work into a fixed-capacity worker pool through a counting
// admission gate with configurable FIFO fairness, runs a synchronous
// pre-check before scheduling, and guarantees that every admission permit
// is released exactly once regardless of how the dispatch ends.
//
// Batchgate is designed as a library, not a service. Register job handlers,
// wire an executor, and feed job identifiers to the Launcher.
//
// # Quick Start
//
//	reg := job.NewRegistry()
//	reg.Register("DB_REORG", reorgHandler)
//
//	exec := worker.NewExecutor(reg, resolver, contextFactory, hooks, logger,
//	    middleware.Recover(logger),
//	    middleware.Logging(logger),
//	)
//
//	l, err := batchgate.New(
//	    batchgate.WithRunner(exec),
//	    batchgate.WithCapacity(10),
//	)
//
//	outcome, err := l.Dispatch(ctx, jobSequenceID)
//
// # Architecture
//
// The Launcher owns two bounds: the admission gate (how many jobs may be in
// flight) and the worker pool's intake queue (how many accepted jobs may be
// waiting for a worker). They are configured independently; if the gate is
// sized larger than the intake queue, Dispatch can be rejected by the pool
// even though a permit was granted. Such rejections are surfaced as
// ErrPoolRejected with the permit returned.
//
// Per-job-type execution contexts — expensive shared resources built once
// per type code — are cached by ctxcache with at-most-one concurrent
// construction per key.
package batchgate
