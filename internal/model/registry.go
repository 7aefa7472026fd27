package model

import (
	"fmt"
	"maps"
	"slices"
	"sync"
)

// Registry maps roles to models so operations can reach other entities.
//
// Thread Safety: all methods are safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{models: make(map[string]*Model)}
}

// Register adds m under its role.
func (r *Registry) Register(m *Model) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.models[m.Role()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateRole, m.Role())
	}
	r.models[m.Role()] = m
	return nil
}

// Get returns the model registered for role.
func (r *Registry) Get(role string) (*Model, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.models[role]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return m, nil
}

// Roles returns the registered role names, sorted.
func (r *Registry) Roles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.models))
}
