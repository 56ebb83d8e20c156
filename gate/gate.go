// Package gate implements the admission gate: a counting semaphore with
// configurable FIFO fairness and context-aware acquisition. One permit
// must be held for the duration of one in-flight job.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrCancelled reports that the calling context was cancelled while
// waiting for a permit. No permit is held when Acquire returns it.
var ErrCancelled = errors.New("gate: acquire cancelled")

// Gate is a fixed-capacity counting semaphore. Capacity and fairness are
// set at construction and immutable thereafter. All methods are safe for
// concurrent use.
type Gate struct {
	capacity int
	fair     bool

	mu        sync.Mutex
	available int
	waiters   []chan struct{}
}

// Option configures a Gate.
type Option func(*Gate)

// WithFairness selects FIFO hand-off to waiters. Fair gates grant permits
// in the order waiting began; unfair gates grant in unspecified order.
// Default is fair.
func WithFairness(fair bool) Option {
	return func(g *Gate) { g.fair = fair }
}

// New creates a Gate with the given capacity. A capacity below 1 is
// raised to 1. The fairness policy is fixed here; the Gate exposes no way
// to change it afterwards.
func New(capacity int, opts ...Option) *Gate {
	if capacity < 1 {
		capacity = 1
	}
	g := &Gate{
		capacity:  capacity,
		fair:      true,
		available: capacity,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Capacity returns the fixed permit count.
func (g *Gate) Capacity() int { return g.capacity }

// Fair reports whether waiters are granted permits in FIFO order.
func (g *Gate) Fair() bool { return g.fair }

// Available returns the number of permits not currently held.
func (g *Gate) Available() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.available
}

// Waiting returns the number of callers blocked in Acquire.
func (g *Gate) Waiting() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.waiters)
}

// Acquire blocks until a permit is available or ctx is cancelled. On
// cancellation it returns an error wrapping ErrCancelled and holds
// nothing; a permit granted concurrently with the cancellation is passed
// on to the next waiter.
func (g *Gate) Acquire(ctx context.Context) error {
	g.mu.Lock()
	// A fair gate never lets a newcomer barge past existing waiters;
	// an unfair one takes any free permit immediately.
	if g.available > 0 && (!g.fair || len(g.waiters) == 0) {
		g.available--
		g.mu.Unlock()
		return nil
	}
	ready := make(chan struct{})
	g.waiters = append(g.waiters, ready)
	g.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		g.mu.Lock()
		for i, w := range g.waiters {
			if w == ready {
				g.waiters = append(g.waiters[:i], g.waiters[i+1:]...)
				g.mu.Unlock()
				return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
			}
		}
		// Already granted in the race with cancellation: the permit is
		// ours, so hand it straight back.
		g.releaseLocked()
		g.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
	}
}

// Release returns one permit. It never blocks. Releasing more times than
// acquired restores at most one permit and saturates at capacity; it
// never corrupts the gate.
func (g *Gate) Release() {
	g.mu.Lock()
	g.releaseLocked()
	g.mu.Unlock()
}

// releaseLocked hands the permit directly to a waiter when one exists,
// so the grant order is decided here: front of the queue when fair,
// back when not.
func (g *Gate) releaseLocked() {
	if n := len(g.waiters); n > 0 {
		var ready chan struct{}
		if g.fair {
			ready = g.waiters[0]
			g.waiters = g.waiters[1:]
		} else {
			ready = g.waiters[n-1]
			g.waiters = g.waiters[:n-1]
		}
		close(ready)
		return
	}
	if g.available < g.capacity {
		g.available++
	}
}
