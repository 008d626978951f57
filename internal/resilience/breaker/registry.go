package breaker

import (
	"fmt"
	"sync"
)

// Registry owns one breaker per dependency. Breakers are created at
// startup and live for the process lifetime.
type Registry struct {
	mu       sync.RWMutex
	breakers map[Dependency]*Breaker
	cfg      Config
}

// NewRegistry creates a registry that builds breakers with cfg.
func NewRegistry(cfg Config) *Registry {
	return &Registry{
		breakers: make(map[Dependency]*Breaker),
		cfg:      cfg,
	}
}

// Get returns the breaker for a dependency, creating it on first use.
func (r *Registry) Get(dep Dependency) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[dep]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[dep]; ok {
		return b
	}
	b = New(dep, r.cfg)
	r.breakers[dep] = b
	return b
}

// Reset closes the named breaker. Operator action.
func (r *Registry) Reset(dep Dependency) error {
	r.mu.RLock()
	b, ok := r.breakers[dep]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("unknown circuit breaker: %s", dep)
	}
	b.Reset()
	return nil
}

// StatusAll returns snapshots of every breaker for health reporting.
func (r *Registry) StatusAll() []Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make([]Status, 0, len(r.breakers))
	for _, b := range r.breakers {
		statuses = append(statuses, b.Status())
	}
	return statuses
}
