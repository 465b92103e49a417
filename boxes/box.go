package boxes

import (
	"sync"

	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/funcs"
	"github.com/jrife/roost/storage/kv"
	"github.com/jrife/roost/utils/stream"
	"go.uber.org/zap"
)

// Box runs key-value operations against one collection.
// Mutations hold the write lock for their whole duration
// and reads hold the read lock, so a Toggle never
// interleaves with another mutation of the same box.
type Box struct {
	mu         sync.RWMutex
	collection kv.Collection
	logger     *zap.Logger
}

func newBox(collection kv.Collection, logger *zap.Logger) *Box {
	return &Box{collection: collection, logger: logger}
}

func (box *Box) Name() string {
	return box.collection.Name()
}

func (box *Box) Tag() codec.Tag {
	return box.collection.Tag()
}

func (box *Box) Put(key interface{}, value interface{}) error {
	box.mu.Lock()
	defer box.mu.Unlock()

	return box.collection.Put(key, value)
}

// Get returns nil if key doesn't exist
func (box *Box) Get(key interface{}) (interface{}, error) {
	box.mu.RLock()
	defer box.mu.RUnlock()

	value, _, err := box.collection.Get(key)

	return value, err
}

func (box *Box) GetAll() ([]interface{}, error) {
	return box.GetAllWhere(nil)
}

// GetAllWhere returns the values that satisfy predicate in key
// order. A nil predicate selects every value.
func (box *Box) GetAllWhere(predicate funcs.Predicate) ([]interface{}, error) {
	box.mu.RLock()
	defer box.mu.RUnlock()

	values, err := box.collection.Values()

	if err != nil {
		return nil, err
	}

	var filter stream.Processor

	if predicate != nil {
		filter = stream.Filter(predicate)
	}

	return stream.Collect(stream.Pipeline(values, stream.Log(box.logger), filter))
}

func (box *Box) Exists(key interface{}) (bool, error) {
	box.mu.RLock()
	defer box.mu.RUnlock()

	return box.collection.ContainsKey(key)
}

func (box *Box) Remove(key interface{}) error {
	box.mu.Lock()
	defer box.mu.Unlock()

	return box.collection.Delete(key)
}

func (box *Box) Clear() error {
	box.mu.Lock()
	defer box.mu.Unlock()

	return box.collection.Clear()
}

// AddAll stores values under new integer keys and returns them
func (box *Box) AddAll(values []interface{}) ([]interface{}, error) {
	box.mu.Lock()
	defer box.mu.Unlock()

	return box.collection.AddAll(values)
}

func (box *Box) Count() (int, error) {
	box.mu.RLock()
	defer box.mu.RUnlock()

	return box.collection.Length()
}

// Toggle deletes key and returns false if it exists, otherwise
// stores value under key and returns true
func (box *Box) Toggle(key interface{}, value interface{}) (bool, error) {
	box.mu.Lock()
	defer box.mu.Unlock()

	exists, err := box.collection.ContainsKey(key)

	if err != nil {
		return false, err
	}

	if exists {
		return false, box.collection.Delete(key)
	}

	return true, box.collection.Put(key, value)
}

// PutAll stores each value under keyFunc(value) in input order.
// It stops at the first failure; values before it stay stored.
func (box *Box) PutAll(values []interface{}, keyFunc funcs.KeyFunc) error {
	box.mu.Lock()
	defer box.mu.Unlock()

	for _, value := range values {
		if err := box.collection.Put(keyFunc(value), value); err != nil {
			return err
		}
	}

	return nil
}
