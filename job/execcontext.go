package job

import (
	"errors"
	"sync"
)

// ExecContext is the execution environment shared by all jobs of one type
// code: connection pools, compiled templates, whatever the type's handler
// needs but is too expensive to build per job. Construction happens at
// most once per type (see ctxcache); Close tears the resources down at
// shutdown.
type ExecContext struct {
	typeCode string

	mu        sync.RWMutex
	resources map[string]any
	closers   []func() error
}

// NewExecContext creates an empty context for the given type code.
func NewExecContext(typeCode string) *ExecContext {
	return &ExecContext{
		typeCode:  typeCode,
		resources: make(map[string]any),
	}
}

// TypeCode returns the job type this context belongs to.
func (c *ExecContext) TypeCode() string { return c.typeCode }

// Set stores a named resource. Intended for use by the context factory
// during construction.
func (c *ExecContext) Set(name string, v any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resources[name] = v
}

// Value returns a named resource.
func (c *ExecContext) Value(name string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.resources[name]
	return v, ok
}

// OnClose registers a cleanup function to run when the context is closed.
func (c *ExecContext) OnClose(fn func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closers = append(c.closers, fn)
}

// Close runs the registered cleanup functions in reverse registration
// order. Every closer is attempted; failures are joined.
func (c *ExecContext) Close() error {
	c.mu.Lock()
	closers := c.closers
	c.closers = nil
	c.mu.Unlock()

	var errs []error
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
