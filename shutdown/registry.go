package shutdown

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go_styletransfer/core"
)

// Priorities used by the styletransfer binary. Lower runs first: stop taking
// requests, release the engine, then flush what recorded them.
const (
	PriorityHTTPServer  = 10
	PriorityGPUSampler  = 15
	PriorityRuntime     = 20
	PriorityHistory     = 30
	PriorityGPUInstance = 40
	PriorityLogger      = 90
)

type handler struct {
	name     string
	priority int
	seq      int
	fn       core.ShutdownFunc
}

// Registry holds cleanup handlers and runs them once, ordered by priority.
// Handlers with equal priority run in registration order.
type Registry struct {
	mu       sync.Mutex
	handlers []handler
	closed   bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds fn. Registration after Shutdown is ignored.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.handlers = append(r.handlers, handler{
		name:     name,
		priority: priority,
		seq:      len(r.handlers),
		fn:       fn,
	})
}

// Shutdown runs every handler, even after failures, and returns the errors
// prefixed with the handler name. Later calls return nil.
func (r *Registry) Shutdown(ctx context.Context) []error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	ordered := r.sortedLocked()
	r.mu.Unlock()

	var errs []error
	for _, h := range ordered {
		if err := h.fn(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", h.name, err))
		}
	}
	return errs
}

// Names lists handler names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ordered := r.sortedLocked()
	names := make([]string, len(ordered))
	for i, h := range ordered {
		names[i] = h.name
	}
	return names
}

// Count returns the number of registered handlers.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.handlers)
}

// IsClosed reports whether Shutdown ran.
func (r *Registry) IsClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Registry) sortedLocked() []handler {
	ordered := make([]handler, len(r.handlers))
	copy(ordered, r.handlers)
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].priority != ordered[j].priority {
			return ordered[i].priority < ordered[j].priority
		}
		return ordered[i].seq < ordered[j].seq
	})
	return ordered
}
