// Package funcs resolves named functions inside the owner.
// Commands name a predicate or key function instead of carrying
// one, so only functions registered ahead of time in the owner's
// table can run there.
package funcs

import (
	"errors"
	"fmt"
	"sync"
)

// ErrUnknownFunc is returned when a name resolves to nothing
var ErrUnknownFunc = errors.New("funcs: unknown function")

// Predicate selects values for GetAllWhere. It receives
// decoded values.
type Predicate func(value interface{}) bool

// KeyFunc derives a key for PutAll from a value
type KeyFunc func(value interface{}) interface{}

// Table holds the functions commands may name
type Table struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
	keyFuncs   map[string]KeyFunc
}

// NewTable creates an empty table
func NewTable() *Table {
	return &Table{
		predicates: map[string]Predicate{},
		keyFuncs:   map[string]KeyFunc{},
	}
}

// RegisterPredicate adds or replaces a predicate
func (table *Table) RegisterPredicate(name string, predicate Predicate) {
	table.mu.Lock()
	defer table.mu.Unlock()

	table.predicates[name] = predicate
}

// RegisterKeyFunc adds or replaces a key function
func (table *Table) RegisterKeyFunc(name string, keyFunc KeyFunc) {
	table.mu.Lock()
	defer table.mu.Unlock()

	table.keyFuncs[name] = keyFunc
}

// Predicate looks up a predicate by name
func (table *Table) Predicate(name string) (Predicate, error) {
	table.mu.RLock()
	defer table.mu.RUnlock()

	predicate, ok := table.predicates[name]

	if !ok {
		return nil, fmt.Errorf("%w: predicate %q", ErrUnknownFunc, name)
	}

	return predicate, nil
}

// KeyFunc looks up a key function by name
func (table *Table) KeyFunc(name string) (KeyFunc, error) {
	table.mu.RLock()
	defer table.mu.RUnlock()

	keyFunc, ok := table.keyFuncs[name]

	if !ok {
		return nil, fmt.Errorf("%w: key function %q", ErrUnknownFunc, name)
	}

	return keyFunc, nil
}
