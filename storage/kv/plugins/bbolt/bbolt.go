package bbolt

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gogo/protobuf/proto"
	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/storage/kv"
	"github.com/jrife/roost/storage/kv/keys"
	"github.com/jrife/roost/utils/stream"
	"github.com/jrife/roost/utils/uuid"
	bolt "go.etcd.io/bbolt"
)

const (
	DriverName = "bbolt"
)

var (
	metaBucket        = []byte("meta")
	collectionsBucket = []byte("collections")
)

func Plugins() []kv.Plugin {
	return []kv.Plugin{
		&BBoltPlugin{},
	}
}

type BBoltPlugin struct {
}

func (plugin *BBoltPlugin) Name() string {
	return DriverName
}

// NewStore opens a store at options["path"]. options["timeout"]
// optionally bounds how long to wait for the file lock.
func (plugin *BBoltPlugin) NewStore(options kv.PluginOptions) (kv.Store, error) {
	var config BBoltStoreConfig

	if path, ok := options["path"]; !ok {
		return nil, fmt.Errorf("\"path\" is required")
	} else if pathString, ok := path.(string); !ok {
		return nil, fmt.Errorf("\"path\" must be a string")
	} else {
		config.Path = pathString
	}

	if timeout, ok := options["timeout"]; ok {
		if d, ok := timeout.(time.Duration); !ok {
			return nil, fmt.Errorf("\"timeout\" must be a time.Duration")
		} else {
			config.Timeout = d
		}
	}

	store, err := New(config)

	if err != nil {
		return nil, err
	}

	return store, nil
}

func (plugin *BBoltPlugin) NewTempStore() (kv.Store, error) {
	return plugin.NewStore(kv.PluginOptions{
		"path": filepath.Join(os.TempDir(), fmt.Sprintf("bbolt-%s", uuid.MustUUID())),
	})
}

type BBoltStoreConfig struct {
	Path    string
	Timeout time.Duration
}

var _ kv.Store = (*BBoltStore)(nil)

func New(config BBoltStoreConfig) (*BBoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(config.Path), 0755); err != nil {
		return nil, fmt.Errorf("Could not create directory for bbolt store at %s: %s", config.Path, err.Error())
	}

	db, err := bolt.Open(config.Path, 0666, &bolt.Options{Timeout: config.Timeout})

	if err != nil {
		return nil, fmt.Errorf("Could not open bbolt store at %s: %s", config.Path, err.Error())
	}

	if err := db.Update(func(txn *bolt.Tx) error {
		if _, err := txn.CreateBucketIfNotExists(metaBucket); err != nil {
			return err
		}

		_, err := txn.CreateBucketIfNotExists(collectionsBucket)

		return err
	}); err != nil {
		db.Close()

		return nil, fmt.Errorf("Could not ensure root buckets exist: %s", err.Error())
	}

	return &BBoltStore{
		db:       db,
		adapters: codec.NewRegistry(),
		locks:    map[string]*sync.Mutex{},
	}, nil
}

type BBoltStore struct {
	db       *bolt.DB
	adapters *codec.Registry
	mu       sync.Mutex
	locks    map[string]*sync.Mutex
	closed   bool
}

func (store *BBoltStore) Adapters() *codec.Registry {
	return store.adapters
}

func (store *BBoltStore) OpenCollection(name string, tag codec.Tag) (kv.Collection, error) {
	if err := kv.ValidateName(name); err != nil {
		return nil, err
	}

	if store.isClosed() {
		return nil, kv.ErrClosed
	}

	if err := store.db.Update(func(txn *bolt.Tx) error {
		meta := txn.Bucket(metaBucket)

		if raw := meta.Get([]byte(name)); raw != nil {
			existing, n := proto.DecodeVarint(raw)

			if n == 0 {
				return fmt.Errorf("Could not decode tag for collection %s", name)
			}

			if codec.Tag(existing) != tag {
				return fmt.Errorf("%w: %s was created with tag %d, not %d", kv.ErrCollectionTag, name, existing, tag)
			}
		} else if err := meta.Put([]byte(name), proto.EncodeVarint(uint64(tag))); err != nil {
			return err
		}

		_, err := txn.Bucket(collectionsBucket).CreateBucketIfNotExists([]byte(name))

		return err
	}); err != nil {
		return nil, err
	}

	return &BBoltCollection{store: store, name: name, tag: tag, lock: store.collectionLock(name)}, nil
}

// collectionLock serializes AddAll calls on one collection so that
// reading the highest key and writing after it happen together.
func (store *BBoltStore) collectionLock(name string) *sync.Mutex {
	store.mu.Lock()
	defer store.mu.Unlock()

	lock, ok := store.locks[name]

	if !ok {
		lock = &sync.Mutex{}
		store.locks[name] = lock
	}

	return lock
}

func (store *BBoltStore) isClosed() bool {
	store.mu.Lock()
	defer store.mu.Unlock()

	return store.closed
}

func (store *BBoltStore) Close() error {
	store.mu.Lock()

	if store.closed {
		store.mu.Unlock()

		return nil
	}

	store.closed = true
	store.mu.Unlock()

	return store.db.Close()
}

func (store *BBoltStore) Delete() error {
	path := store.db.Path()

	if err := store.Close(); err != nil {
		return fmt.Errorf("Could not close store: %s", err.Error())
	}

	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("Could not remove path %s: %s", path, err.Error())
	}

	return nil
}

func (store *BBoltStore) view(fn func(txn *bolt.Tx) error) error {
	if store.isClosed() {
		return kv.ErrClosed
	}

	return store.db.View(fn)
}

func (store *BBoltStore) update(fn func(txn *bolt.Tx) error) error {
	if store.isClosed() {
		return kv.ErrClosed
	}

	return store.db.Update(fn)
}

var _ kv.Collection = (*BBoltCollection)(nil)

type BBoltCollection struct {
	store *BBoltStore
	name  string
	tag   codec.Tag
	lock  *sync.Mutex
}

func (collection *BBoltCollection) bucket(txn *bolt.Tx) (*bolt.Bucket, error) {
	bucket := txn.Bucket(collectionsBucket).Bucket([]byte(collection.name))

	if bucket == nil {
		return nil, fmt.Errorf("Could not find bucket for collection %s", collection.name)
	}

	return bucket, nil
}

func (collection *BBoltCollection) Name() string {
	return collection.name
}

func (collection *BBoltCollection) Tag() codec.Tag {
	return collection.tag
}

func (collection *BBoltCollection) Put(key interface{}, value interface{}) error {
	k, err := keys.Encode(key)

	if err != nil {
		return err
	}

	encoded, err := kv.EncodeValue(collection.store.adapters, collection.tag, value)

	if err != nil {
		return err
	}

	return collection.store.update(func(txn *bolt.Tx) error {
		bucket, err := collection.bucket(txn)

		if err != nil {
			return err
		}

		return bucket.Put(k, encoded.Marshal())
	})
}

func (collection *BBoltCollection) Get(key interface{}) (interface{}, bool, error) {
	k, err := keys.Encode(key)

	if err != nil {
		return nil, false, err
	}

	var raw []byte

	if err := collection.store.view(func(txn *bolt.Tx) error {
		bucket, err := collection.bucket(txn)

		if err != nil {
			return err
		}

		if v := bucket.Get(k); v != nil {
			raw = make([]byte, len(v))
			copy(raw, v)
		}

		return nil
	}); err != nil {
		return nil, false, err
	}

	if raw == nil {
		return nil, false, nil
	}

	encoded, err := codec.UnmarshalEncodedValue(raw)

	if err != nil {
		return nil, false, fmt.Errorf("Could not unmarshal value: %s", err.Error())
	}

	value, err := collection.store.adapters.Decode(encoded)

	if err != nil {
		return nil, false, err
	}

	return value, true, nil
}

func (collection *BBoltCollection) Delete(key interface{}) error {
	k, err := keys.Encode(key)

	if err != nil {
		return err
	}

	return collection.store.update(func(txn *bolt.Tx) error {
		bucket, err := collection.bucket(txn)

		if err != nil {
			return err
		}

		return bucket.Delete(k)
	})
}

func (collection *BBoltCollection) ContainsKey(key interface{}) (bool, error) {
	k, err := keys.Encode(key)

	if err != nil {
		return false, err
	}

	var found bool

	err = collection.store.view(func(txn *bolt.Tx) error {
		bucket, err := collection.bucket(txn)

		if err != nil {
			return err
		}

		found = bucket.Get(k) != nil

		return nil
	})

	return found, err
}

func (collection *BBoltCollection) Clear() error {
	return collection.store.update(func(txn *bolt.Tx) error {
		collections := txn.Bucket(collectionsBucket)

		if err := collections.DeleteBucket([]byte(collection.name)); err != nil && err != bolt.ErrBucketNotFound {
			return fmt.Errorf("Could not delete bucket for collection %s: %s", collection.name, err.Error())
		}

		_, err := collections.CreateBucket([]byte(collection.name))

		return err
	})
}

func (collection *BBoltCollection) AddAll(values []interface{}) ([]interface{}, error) {
	encoded := make([]codec.EncodedValue, len(values))

	for i, value := range values {
		e, err := kv.EncodeValue(collection.store.adapters, collection.tag, value)

		if err != nil {
			return nil, err
		}

		encoded[i] = e
	}

	collection.lock.Lock()
	defer collection.lock.Unlock()

	added := make([]interface{}, len(values))

	err := collection.store.update(func(txn *bolt.Tx) error {
		bucket, err := collection.bucket(txn)

		if err != nil {
			return err
		}

		next, err := keys.NextInt(lastInt(bucket.Cursor()))

		if err != nil {
			return err
		}

		for i, e := range encoded {
			k, err := keys.Encode(next + i)

			if err != nil {
				return err
			}

			if err := bucket.Put(k, e.Marshal()); err != nil {
				return err
			}

			added[i] = next + i
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return added, nil
}

// lastInt returns the highest integer key or nil if there are none
func lastInt(cursor *bolt.Cursor) keys.Key {
	k, _ := cursor.Seek(keys.LastInt())

	if k != nil && keys.IsInt(k) {
		return keys.Key(append([]byte{}, k...))
	}

	if k == nil {
		k, _ = cursor.Last()
	} else {
		k, _ = cursor.Prev()
	}

	for ; k != nil; k, _ = cursor.Prev() {
		if keys.IsInt(k) {
			return keys.Key(append([]byte{}, k...))
		}
	}

	return nil
}

func (collection *BBoltCollection) Values() (stream.Stream, error) {
	values := []codec.EncodedValue{}

	if err := collection.store.view(func(txn *bolt.Tx) error {
		bucket, err := collection.bucket(txn)

		if err != nil {
			return err
		}

		return bucket.ForEach(func(k, v []byte) error {
			encoded, err := codec.UnmarshalEncodedValue(v)

			if err != nil {
				return fmt.Errorf("Could not unmarshal value: %s", err.Error())
			}

			values = append(values, encoded)

			return nil
		})
	}); err != nil {
		return nil, err
	}

	return kv.Stream(collection.store.adapters, values), nil
}

func (collection *BBoltCollection) Length() (int, error) {
	var length int

	err := collection.store.view(func(txn *bolt.Tx) error {
		bucket, err := collection.bucket(txn)

		if err != nil {
			return err
		}

		cursor := bucket.Cursor()

		for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
			length++
		}

		return nil
	})

	return length, err
}

