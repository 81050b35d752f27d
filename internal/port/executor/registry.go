package executor

import (
	"fmt"
	"sort"
	"sync"
)

// Registry is the set of known executors. It is injected rather than held as
// package state so tests and hosts can assemble their own executor sets.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register adds an executor. Registering the same type twice is an error.
func (r *Registry) Register(e Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.executors[e.Type()]; exists {
		return fmt.Errorf("executor: duplicate registration for %q", e.Type())
	}
	r.executors[e.Type()] = e
	return nil
}

// Get returns the executor with the given type, if registered.
func (r *Registry) Get(executorType string) (Executor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.executors[executorType]
	return e, ok
}

// All returns the registered executors sorted by type, so capability
// scoring iterates in a deterministic order.
func (r *Registry) All() []Executor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := make([]Executor, 0, len(r.executors))
	for _, e := range r.executors {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Type() < all[j].Type() })
	return all
}

// Types returns the sorted type names of all registered executors.
func (r *Registry) Types() []string {
	all := r.All()
	types := make([]string, len(all))
	for i, e := range all {
		types[i] = e.Type()
	}
	return types
}
