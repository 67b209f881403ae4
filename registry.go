package worker

import (
	"fmt"
	"sync"
)

// Registry is a table of live workers keyed by their host-assigned
// ids. Host callbacks and the remote bridge route inbound messages
// through a registry, keeping worker ownership explicit instead of
// hiding it in engine-internal state.
type Registry struct {
	mu      sync.RWMutex
	workers map[int]*Worker
}

func NewRegistry() *Registry {
	return &Registry{workers: make(map[int]*Worker)}
}

// Register adds w under id. Registering a taken id is an error and
// leaves the original in place.
func (r *Registry) Register(id int, w *Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.workers[id]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	r.workers[id] = w
	return nil
}

// Lookup returns the worker registered under id.
func (r *Registry) Lookup(id int) (*Worker, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	w, ok := r.workers[id]
	return w, ok
}

// Remove unregisters and returns the worker under id. Removal does
// not dispose the worker; that stays with the caller.
func (r *Registry) Remove(id int) (*Worker, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.workers[id]
	if ok {
		delete(r.workers, id)
	}
	return w, ok
}

// Len reports the number of registered workers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}

// DefaultRegistry serves hosts that do not carry their own registry.
var DefaultRegistry = NewRegistry()
