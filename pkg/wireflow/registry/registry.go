// Package registry provides a generic thread-safe registry for values indexed by key.
//
// wireflow uses it to look up node classes by name when rebuilding saved
// composites, and executor constructors by name when resolving lazy
// executor instructions.
package registry

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// Sentinel errors for registration.
var (
	// ErrDuplicate indicates a key is already registered.
	ErrDuplicate = errors.New("already registered")

	// ErrConflict indicates a key is registered with a different definition.
	ErrConflict = errors.New("already defined differently")
)

// Registry is a thread-safe registry for values indexed by key.
type Registry[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]V
}

// New creates a new empty registry.
func New[K comparable, V any]() *Registry[K, V] {
	return &Registry[K, V]{
		entries: make(map[K]V),
	}
}

// Register adds or replaces the value under key.
func (r *Registry[K, V]) Register(key K, value V) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = value
}

// RegisterOnce adds a value, returning ErrDuplicate if the key exists.
func (r *Registry[K, V]) RegisterOnce(key K, value V) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[key]; ok {
		return fmt.Errorf("%v: %w", key, ErrDuplicate)
	}
	r.entries[key] = value
	return nil
}

// Define registers value under key unless the key is taken. When it is,
// same decides whether the registered value is an equivalent definition:
// if so that value is returned, otherwise ErrConflict. Repeated
// definitions, such as package-level class declarations evaluated more
// than once, therefore resolve to the first.
func (r *Registry[K, V]) Define(key K, value V, same func(prior V) bool) (V, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	prior, ok := r.entries[key]
	if !ok {
		r.entries[key] = value
		return value, nil
	}
	if same(prior) {
		return prior, nil
	}
	var zero V
	return zero, fmt.Errorf("%v: %w", key, ErrConflict)
}

// Get returns the value for a key and whether it exists.
func (r *Registry[K, V]) Get(key K) (V, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	return v, ok
}

// Keys returns all keys in the registry, in no particular order.
func (r *Registry[K, V]) Keys() []K {
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := make([]K, 0, len(r.entries))
	for k := range r.entries {
		keys = append(keys, k)
	}
	return keys
}

// SortedKeys returns the keys of an ordered-key registry in ascending order.
func SortedKeys[K cmp.Ordered, V any](r *Registry[K, V]) []K {
	keys := r.Keys()
	slices.Sort(keys)
	return keys
}
