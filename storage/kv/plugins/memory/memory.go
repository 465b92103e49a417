// Package memory implements an in-memory kv store. Each
// collection is a sorted map from encoded key to encoded value.
package memory

import (
	"fmt"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/storage/kv"
	"github.com/jrife/roost/storage/kv/keys"
	"github.com/jrife/roost/utils/stream"
)

const (
	// DriverName is the plugin name
	DriverName = "memory"
)

// Plugins returns the plugins provided by this package
func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&Plugin{},
	}
}

var _ kv.Plugin = (*Plugin)(nil)

// Plugin is the memory storage plugin
type Plugin struct {
}

// Name implements kv.Plugin.Name
func (plugin *Plugin) Name() string {
	return DriverName
}

// NewStore implements kv.Plugin.NewStore. It accepts no options.
func (plugin *Plugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	return New(), nil
}

// NewTempStore implements kv.Plugin.NewTempStore
func (plugin *Plugin) NewTempStore() (kv.Store, error) {
	return New(), nil
}

var _ kv.Store = (*Store)(nil)

// Store is an in-memory kv.Store
type Store struct {
	mu          sync.Mutex
	adapters    *codec.Registry
	collections map[string]*collectionData
	closed      bool
}

type collectionData struct {
	mu     sync.RWMutex
	tag    codec.Tag
	values *treemap.Map
}

// New creates an empty store
func New() *Store {
	return &Store{
		adapters:    codec.NewRegistry(),
		collections: map[string]*collectionData{},
	}
}

// Adapters implements kv.Store.Adapters
func (store *Store) Adapters() *codec.Registry {
	return store.adapters
}

// OpenCollection implements kv.Store.OpenCollection
func (store *Store) OpenCollection(name string, tag codec.Tag) (kv.Collection, error) {
	if err := kv.ValidateName(name); err != nil {
		return nil, err
	}

	store.mu.Lock()
	defer store.mu.Unlock()

	if store.closed {
		return nil, kv.ErrClosed
	}

	data, ok := store.collections[name]

	if !ok {
		data = &collectionData{tag: tag, values: treemap.NewWithStringComparator()}
		store.collections[name] = data
	} else if data.tag != tag {
		return nil, fmt.Errorf("%w: %s was created with tag %d, not %d", kv.ErrCollectionTag, name, data.tag, tag)
	}

	return &Collection{store: store, name: name, data: data}, nil
}

func (store *Store) isClosed() bool {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.closed
}

// Close implements kv.Store.Close
func (store *Store) Close() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true

	return nil
}

// Delete implements kv.Store.Delete
func (store *Store) Delete() error {
	store.mu.Lock()
	defer store.mu.Unlock()

	store.closed = true
	store.collections = map[string]*collectionData{}

	return nil
}

var _ kv.Collection = (*Collection)(nil)

// Collection is a handle to one collection of a Store
type Collection struct {
	store *Store
	name  string
	data  *collectionData
}

// Name implements kv.Collection.Name
func (collection *Collection) Name() string {
	return collection.name
}

// Tag implements kv.Collection.Tag
func (collection *Collection) Tag() codec.Tag {
	return collection.data.tag
}

// Put implements kv.Collection.Put
func (collection *Collection) Put(key interface{}, value interface{}) error {
	k, err := keys.Encode(key)

	if err != nil {
		return err
	}

	encoded, err := kv.EncodeValue(collection.store.adapters, collection.data.tag, value)

	if err != nil {
		return err
	}

	collection.data.mu.Lock()
	defer collection.data.mu.Unlock()

	if collection.store.isClosed() {
		return kv.ErrClosed
	}

	collection.data.values.Put(string(k), encoded)

	return nil
}

// Get implements kv.Collection.Get
func (collection *Collection) Get(key interface{}) (interface{}, bool, error) {
	k, err := keys.Encode(key)

	if err != nil {
		return nil, false, err
	}

	collection.data.mu.RLock()
	defer collection.data.mu.RUnlock()

	if collection.store.isClosed() {
		return nil, false, kv.ErrClosed
	}

	raw, ok := collection.data.values.Get(string(k))

	if !ok {
		return nil, false, nil
	}

	value, err := collection.store.adapters.Decode(raw.(codec.EncodedValue))

	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

// Delete implements kv.Collection.Delete
func (collection *Collection) Delete(key interface{}) error {
	k, err := keys.Encode(key)

	if err != nil {
		return err
	}

	collection.data.mu.Lock()
	defer collection.data.mu.Unlock()

	if collection.store.isClosed() {
		return kv.ErrClosed
	}

	collection.data.values.Remove(string(k))

	return nil
}

// ContainsKey implements kv.Collection.ContainsKey
func (collection *Collection) ContainsKey(key interface{}) (bool, error) {
	k, err := keys.Encode(key)

	if err != nil {
		return false, err
	}

	collection.data.mu.RLock()
	defer collection.data.mu.RUnlock()

	if collection.store.isClosed() {
		return false, kv.ErrClosed
	}

	_, ok := collection.data.values.Get(string(k))

	return ok, nil
}

// Clear implements kv.Collection.Clear
func (collection *Collection) Clear() error {
	collection.data.mu.Lock()
	defer collection.data.mu.Unlock()

	if collection.store.isClosed() {
		return kv.ErrClosed
	}

	collection.data.values.Clear()

	return nil
}

// AddAll implements kv.Collection.AddAll
func (collection *Collection) AddAll(values []interface{}) ([]interface{}, error) {
	encoded := make([]codec.EncodedValue, len(values))

	for i, value := range values {
		e, err := kv.EncodeValue(collection.store.adapters, collection.data.tag, value)

		if err != nil {
			return nil, err
		}

		encoded[i] = e
	}

	collection.data.mu.Lock()
	defer collection.data.mu.Unlock()

	if collection.store.isClosed() {
		return nil, kv.ErrClosed
	}

	var last keys.Key

	if floor, _ := collection.data.values.Floor(string(keys.LastInt())); floor != nil && keys.IsInt(keys.Key(floor.(string))) {
		last = keys.Key(floor.(string))
	}

	next, err := keys.NextInt(last)

	if err != nil {
		return nil, err
	}

	if len(values) > 0 && uint64(next)+uint64(len(values))-1 > keys.MaxInt {
		return nil, fmt.Errorf("%w: integer keys exhausted", keys.ErrInvalidKey)
	}

	added := make([]interface{}, len(values))

	for i, e := range encoded {
		k, err := keys.Encode(next + i)

		if err != nil {
			return nil, err
		}

		collection.data.values.Put(string(k), e)
		added[i] = next + i
	}

	return added, nil
}

// Values implements kv.Collection.Values
func (collection *Collection) Values() (stream.Stream, error) {
	collection.data.mu.RLock()
	defer collection.data.mu.RUnlock()

	if collection.store.isClosed() {
		return nil, kv.ErrClosed
	}

	values := make([]codec.EncodedValue, 0, collection.data.values.Size())

	for _, value := range collection.data.values.Values() {
		values = append(values, value.(codec.EncodedValue))
	}

	return kv.Stream(collection.store.adapters, values), nil
}

// Length implements kv.Collection.Length
func (collection *Collection) Length() (int, error) {
	collection.data.mu.RLock()
	defer collection.data.mu.RUnlock()

	if collection.store.isClosed() {
		return 0, kv.ErrClosed
	}

	return collection.data.values.Size(), nil
}
