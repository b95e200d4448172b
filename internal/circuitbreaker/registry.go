package circuitbreaker

import (
	"sort"
	"sync"
)

// Registry is a process-wide mapping from circuit name to breaker
// instance, so unrelated call sites protecting the same dependency
// converge on one state machine. Breakers are created lazily on first
// lookup; the first registration's configuration wins and later differing
// options for the same name are ignored.
type Registry struct {
	mutex    sync.RWMutex
	breakers map[string]*CircuitBreaker
	defaults []Option
}

// NewRegistry creates a registry. defaults are applied to every breaker it
// creates, before any per-call options.
func NewRegistry(defaults ...Option) *Registry {
	return &Registry{
		breakers: make(map[string]*CircuitBreaker),
		defaults: defaults,
	}
}

// GetBreaker returns the breaker registered under name, creating it with
// the registry defaults plus options on first use.
func (r *Registry) GetBreaker(name string, options ...Option) *CircuitBreaker {
	r.mutex.RLock()
	cb, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return cb
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if cb, exists = r.breakers[name]; exists {
		return cb
	}

	opts := make([]Option, 0, len(r.defaults)+len(options))
	opts = append(opts, r.defaults...)
	opts = append(opts, options...)

	cb = NewCircuitBreaker(name, opts...)
	r.breakers[name] = cb
	return cb
}

// Lookup returns the breaker registered under name without creating one.
func (r *Registry) Lookup(name string) (*CircuitBreaker, bool) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	cb, exists := r.breakers[name]
	return cb, exists
}

// Statuses returns a snapshot of every registered breaker, sorted by
// circuit name.
func (r *Registry) Statuses() []Status {
	r.mutex.RLock()
	breakers := make([]*CircuitBreaker, 0, len(r.breakers))
	for _, cb := range r.breakers {
		breakers = append(breakers, cb)
	}
	r.mutex.RUnlock()

	statuses := make([]Status, 0, len(breakers))
	for _, cb := range breakers {
		statuses = append(statuses, cb.Status())
	}

	sort.Slice(statuses, func(i, j int) bool {
		return statuses[i].Name < statuses[j].Name
	})

	return statuses
}

// Reset drops all registered breakers.
func (r *Registry) Reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.breakers = make(map[string]*CircuitBreaker)
}
