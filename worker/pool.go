// Package worker provides the job execution engine — a fixed Pool of
// worker goroutines fed through a bounded intake queue, and an Executor
// that runs job bodies behind a failure-containing boundary.
package worker

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed reports a submission after Shutdown began.
	ErrPoolClosed = errors.New("worker: pool closed")

	// ErrPoolSaturated reports that the intake queue is full. With an
	// admission gate sized larger than the intake queue this can happen
	// even though the caller holds a permit.
	ErrPoolSaturated = errors.New("worker: intake queue full")
)

// Task is one unit of work submitted to the pool.
type Task func()

// Pool runs tasks on a fixed set of worker goroutines. Submissions pass
// through a bounded intake queue and are rejected, never blocked, when
// the queue is full or the pool is shutting down. The workers start when
// the pool is created and exit only after Shutdown once the queue has
// drained.
type Pool struct {
	intake chan Task
	logger *slog.Logger

	mu     sync.Mutex
	closed bool

	active   atomic.Int64
	stopOnce sync.Once
	wg       sync.WaitGroup
	done     chan struct{}
}

// NewPool creates a Pool with the given number of workers and intake
// queue capacity, and starts the workers. Values below 1 are raised to 1.
func NewPool(workers, intakeCapacity int, logger *slog.Logger) *Pool {
	if workers < 1 {
		workers = 1
	}
	if intakeCapacity < 1 {
		intakeCapacity = 1
	}
	p := &Pool{
		intake: make(chan Task, intakeCapacity),
		logger: logger,
		done:   make(chan struct{}),
	}
	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.workerLoop()
	}
	go func() {
		p.wg.Wait()
		close(p.done)
	}()
	return p
}

// Submit queues a task for execution. It never blocks: the pool answers
// immediately with ErrPoolClosed or ErrPoolSaturated when it cannot
// accept the task.
func (p *Pool) Submit(t Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.intake <- t:
		return nil
	default:
		return ErrPoolSaturated
	}
}

// Shutdown stops the pool from accepting new submissions. Tasks already
// queued still run; use AwaitQuiescence to observe completion.
func (p *Pool) Shutdown() {
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		p.mu.Unlock()
		// No further sends are possible once closed is set, so the
		// workers can drain and exit.
		close(p.intake)
		p.logger.Info("worker pool intake closed")
	})
}

// AwaitQuiescence waits up to d for the pool to reach quiescence: no
// running and no queued work after Shutdown. It returns early when
// quiescence is reached, and false when d elapses first.
func (p *Pool) AwaitQuiescence(d time.Duration) bool {
	select {
	case <-p.done:
		return true
	case <-time.After(d):
		return false
	}
}

// Active returns the number of tasks currently executing.
func (p *Pool) Active() int { return int(p.active.Load()) }

// Queued returns the number of tasks waiting in the intake queue.
func (p *Pool) Queued() int { return len(p.intake) }

func (p *Pool) workerLoop() {
	defer p.wg.Done()
	for t := range p.intake {
		p.runTask(t)
	}
}

// runTask is the worker's control-loop boundary: nothing a task does may
// escape and kill the worker goroutine.
func (p *Pool) runTask(t Task) {
	p.active.Add(1)
	defer p.active.Add(-1)
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("task panicked in worker", slog.Any("panic", r))
		}
	}()
	t()
}
