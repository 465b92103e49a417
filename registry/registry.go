// Package registry maps well-known names to owner addresses.
// Every unit that shares a store consults the same registry to
// find the current owner.
package registry

import (
	"errors"
	"sync"
)

// ErrInvalidName is returned for an empty name
var ErrInvalidName = errors.New("registry: invalid name")

// Registry is a shared name registry
type Registry interface {
	// Register maps name to address, replacing any
	// existing mapping
	Register(name string, address string) error
	// Lookup returns the address registered for name.
	// ok is false if nothing is registered.
	Lookup(name string) (address string, ok bool, err error)
	// Unregister removes the mapping for name. It has
	// no effect if nothing is registered.
	Unregister(name string) error
}

var _ Registry = (*Memory)(nil)

// Memory is a Registry visible to every unit in one process
type Memory struct {
	mu        sync.RWMutex
	addresses map[string]string
}

// NewMemory creates an empty in-memory registry
func NewMemory() *Memory {
	return &Memory{addresses: map[string]string{}}
}

func (registry *Memory) Register(name string, address string) error {
	if name == "" {
		return ErrInvalidName
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	registry.addresses[name] = address

	return nil
}

func (registry *Memory) Lookup(name string) (string, bool, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	address, ok := registry.addresses[name]

	return address, ok, nil
}

func (registry *Memory) Unregister(name string) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	delete(registry.addresses, name)

	return nil
}

// UnregisterIf removes name only if it still maps to address. It
// reports whether anything was removed. An owner uses it on shutdown
// so that it never removes a newer owner's entry.
func UnregisterIf(registry Registry, name string, address string) (bool, error) {
	if cas, ok := registry.(interface {
		UnregisterIf(name string, address string) (bool, error)
	}); ok {
		return cas.UnregisterIf(name, address)
	}

	current, ok, err := registry.Lookup(name)

	if err != nil || !ok || current != address {
		return false, err
	}

	return true, registry.Unregister(name)
}

// UnregisterIf implements the conditional removal under one lock
func (registry *Memory) UnregisterIf(name string, address string) (bool, error) {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.addresses[name] != address {
		return false, nil
	}

	delete(registry.addresses, name)

	return true, nil
}
