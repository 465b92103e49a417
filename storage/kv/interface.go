package kv

import (
	"errors"

	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/utils/stream"
)

var (
	// ErrClosed indicates that the store was closed
	ErrClosed = errors.New("kv: store was closed")
	// ErrTypeMismatch indicates that a value's tag does not match
	// the tag its collection was created with
	ErrTypeMismatch = errors.New("kv: value type does not match collection")
	// ErrCollectionTag indicates that a collection already exists
	// with a different tag
	ErrCollectionTag = errors.New("kv: collection exists with a different tag")
	// ErrInvalidName indicates an empty collection name
	ErrInvalidName = errors.New("kv: invalid collection name")
	// ErrNilValue indicates an attempt to store nil
	ErrNilValue = errors.New("kv: nil value")
)

// PluginOptions configure a plugin's store. Each plugin
// documents the options it understands.
type PluginOptions map[string]interface{}

// Plugin represents a kv storage plugin
type Plugin interface {
	// Name returns the name of the storage plugin
	Name() string
	// NewStore returns an instance of the plugin store
	NewStore(options PluginOptions) (Store, error)
	// NewTempStore returns an instance of the plugin store
	// initialized with some sane defaults. It is meant for
	// tests that need an initialized instance of the plugin's
	// store without knowing how to initialize it
	NewTempStore() (Store, error)
}

// Store is a root store holding named collections.
// Implementations must be safe for concurrent use.
type Store interface {
	// Adapters returns the store's own adapter table. Values
	// are encoded with it before they are written. The owner
	// runs the application's adapter initializer against it
	// so that the store and the transport agree on every tag.
	Adapters() *codec.Registry
	// OpenCollection opens the named collection, creating it
	// if it doesn't exist. A new collection records tag; opening
	// an existing collection with a different tag must return
	// ErrCollectionTag. Calling OpenCollection more than once
	// for the same name is allowed but may be expensive.
	OpenCollection(name string, tag codec.Tag) (Collection, error)
	// Close closes the store. Calls to collections descended from
	// this store made after Close returns must return ErrClosed.
	Close() error
	// Delete closes then deletes this store and all its contents.
	Delete() error
}

// Collection is a handle to a named, typed partition of a store.
// Keys are ints or strings as accepted by keys.Encode. Iteration
// order is key order: integer keys ascending then string keys in
// byte order. Each method is atomic on its own but consecutive
// calls are not; callers that need read-modify-write atomicity
// must provide their own locking.
type Collection interface {
	// Name returns the name of the collection
	Name() string
	// Tag returns the tag the collection was created with
	Tag() codec.Tag
	// Put inserts or replaces the value for key
	Put(key interface{}, value interface{}) error
	// Get returns the value for key. ok is false if the key
	// does not exist.
	Get(key interface{}) (value interface{}, ok bool, err error)
	// Delete deletes key. It has no effect if key doesn't exist.
	Delete(key interface{}) error
	// ContainsKey returns true if key exists
	ContainsKey(key interface{}) (bool, error)
	// Clear deletes every key
	Clear() error
	// AddAll inserts values under auto-incremented integer
	// keys, one higher than the current highest integer key,
	// and returns the keys in input order.
	AddAll(values []interface{}) ([]interface{}, error)
	// Values returns a stream of decoded values in key order.
	// The stream reflects the collection at the time Values
	// was called.
	Values() (stream.Stream, error)
	// Length returns the number of keys
	Length() (int, error)
}
