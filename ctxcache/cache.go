// Package ctxcache provides a lazily-initialized keyed cache with
// at-most-one concurrent construction per key. It exists to share one
// expensive per-job-type execution context across all workers running
// jobs of that type: the first resolver for a key builds the value inside
// a per-key critical section while resolvers for other keys proceed
// untouched.
package ctxcache

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xraph/batchgate/keylock"
)

// Factory builds the value for a key. It may perform expensive I/O —
// that is exactly why duplicate concurrent construction is prevented.
// A factory error leaves nothing cached; the next Resolve retries.
type Factory[V any] func(ctx context.Context, key string) (V, error)

// Cache resolves or lazily constructs one value per key using
// double-checked locking over per-key monitors. Distinct keys never
// block each other. Safe for concurrent use.
type Cache[V any] struct {
	locks *keylock.Registry

	mu      sync.RWMutex
	entries map[string]V
}

// New creates an empty cache.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		locks:   keylock.NewRegistry(),
		entries: make(map[string]V),
	}
}

// Resolve returns the cached value for key, constructing it with factory
// if absent. At most one factory invocation per key is ever in flight;
// once a value is published every subsequent Resolve for that key returns
// it (whatever factory is passed) until TeardownAll.
func (c *Cache[V]) Resolve(ctx context.Context, key string, factory Factory[V]) (V, error) {
	var zero V

	// Fast path: already published.
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	mon, err := c.locks.Monitor(key)
	if err != nil {
		return zero, err
	}
	mon.Lock()
	defer mon.Unlock()

	// Re-check: another goroutine may have published while this one was
	// acquiring the monitor.
	c.mu.RLock()
	v, ok = c.entries[key]
	c.mu.RUnlock()
	if ok {
		return v, nil
	}

	v, err = factory(ctx, key)
	if err != nil {
		return zero, fmt.Errorf("ctxcache: build %q: %w", key, err)
	}

	c.mu.Lock()
	c.entries[key] = v
	c.mu.Unlock()
	return v, nil
}

// Len returns the number of published entries.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// TeardownAll clears the cache and invokes cleanup once per published
// entry. Cleanup is best-effort: one entry failing (error or panic) never
// prevents the rest from being attempted, and all failures are joined
// into the returned error. The store is swapped atomically, so a Resolve
// arriving after TeardownAll starts fresh.
//
// Resolves in flight while TeardownAll runs are undefined; stop
// dispatching before tearing down.
func (c *Cache[V]) TeardownAll(cleanup func(V) error) error {
	c.mu.Lock()
	old := c.entries
	c.entries = make(map[string]V)
	c.mu.Unlock()

	if cleanup == nil {
		return nil
	}

	var errs []error
	for key, v := range old {
		if err := runCleanup(cleanup, v); err != nil {
			errs = append(errs, fmt.Errorf("ctxcache: teardown %q: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func runCleanup[V any](cleanup func(V) error, v V) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("cleanup panicked: %v", r)
		}
	}()
	return cleanup(v)
}
