// Package hooks contains the hook contract, the registry, and the
// execution engine that runs hooks against events with retry, circuit
// breaking, and fallback behavior.
package hooks

import (
	"context"
	"fmt"
	"sync"

	"github.com/vietddude/hookbridge/internal/core/domain"
	"github.com/vietddude/hookbridge/internal/resilience/breaker"
)

// Hook is an independent handler invoked with an event. Implementations
// are treated as arbitrary user code: they may block, fail, or panic.
type Hook interface {
	ID() string
	Enabled() bool
	CanHandle(evt *domain.Event) bool
	Execute(ctx context.Context, evt *domain.Event) error
}

// DependencyTagged is implemented by hooks that declare which downstream
// dependency their execution exercises, so the engine can pick the right
// circuit breaker. Untagged hooks share the webhook_processing breaker.
type DependencyTagged interface {
	Dependency() breaker.Dependency
}

func hookDependency(h Hook) breaker.Dependency {
	if t, ok := h.(DependencyTagged); ok {
		return t.Dependency()
	}
	return breaker.DepWebhookProcessing
}

// Registry holds hooks in registration order. Dispatch results follow this
// order regardless of completion order.
type Registry struct {
	mu    sync.RWMutex
	hooks []Hook
	byID  map[string]Hook
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[string]Hook)}
}

// Register adds a hook. Duplicate IDs are rejected.
func (r *Registry) Register(h Hook) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[h.ID()]; exists {
		return fmt.Errorf("hook %q already registered", h.ID())
	}
	r.byID[h.ID()] = h
	r.hooks = append(r.hooks, h)
	return nil
}

// Get returns a hook by ID.
func (r *Registry) Get(id string) (Hook, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.byID[id]
	return h, ok
}

// Candidates returns the hooks an event targets, in registration order.
// Events with explicit hook targets select only those; all hooks are
// candidates otherwise. Enabled/can-handle checks happen per execution.
func (r *Registry) Candidates(evt *domain.Event) []Hook {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(evt.HookIDs) == 0 {
		return append([]Hook(nil), r.hooks...)
	}

	targets := make(map[string]bool, len(evt.HookIDs))
	for _, id := range evt.HookIDs {
		targets[id] = true
	}
	out := make([]Hook, 0, len(evt.HookIDs))
	for _, h := range r.hooks {
		if targets[h.ID()] {
			out = append(out, h)
		}
	}
	return out
}
