package job

import "sync"

// Registry maps job type codes to handlers. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register associates a handler with a type code, replacing any previous
// registration for the same code.
func (r *Registry) Register(typeCode string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[typeCode] = h
}

// Get returns the handler for the given type code.
// Returns false if no handler is registered.
func (r *Registry) Get(typeCode string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typeCode]
	return h, ok
}

// Names returns all registered type codes.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}
