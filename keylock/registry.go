// Package keylock maps string keys to per-key mutual-exclusion monitors,
// created on first use and reused for the registry's lifetime.
package keylock

import (
	"errors"
	"sync"
)

// ErrInvalidKey reports an empty key.
var ErrInvalidKey = errors.New("keylock: empty key")

// Monitor is an opaque per-key mutual-exclusion handle. Every caller that
// asks the registry for the same key receives the same Monitor.
type Monitor struct {
	mu sync.Mutex
}

// Lock enters the monitor's critical section.
func (m *Monitor) Lock() { m.mu.Lock() }

// Unlock leaves the monitor's critical section.
func (m *Monitor) Unlock() { m.mu.Unlock() }

// Registry hands out one Monitor per key. Entries are never removed:
// keys are low-cardinality job-type codes, so the map stays small and
// bounded for the registry's lifetime. Safe for concurrent use.
type Registry struct {
	monitors sync.Map // key → *Monitor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Monitor returns the canonical monitor for key, creating it on first
// use. Concurrent first-time callers may each build a candidate, but the
// insert-if-absent publish ensures exactly one wins; losers receive the
// winner's monitor.
func (r *Registry) Monitor(key string) (*Monitor, error) {
	if key == "" {
		return nil, ErrInvalidKey
	}
	if m, ok := r.monitors.Load(key); ok {
		return m.(*Monitor), nil
	}
	candidate := &Monitor{}
	actual, _ := r.monitors.LoadOrStore(key, candidate)
	return actual.(*Monitor), nil
}

// Len returns the number of keys ever registered.
func (r *Registry) Len() int {
	n := 0
	r.monitors.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}
