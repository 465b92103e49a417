package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	bolt "go.etcd.io/bbolt"
)

var namesBucket = []byte("names")

// DefaultLockTimeout bounds how long File waits
// for another process to release the registry file
const DefaultLockTimeout = time.Second

var _ Registry = (*File)(nil)

// File is a Registry stored in a bbolt file so that units
// in separate processes on one host can find each other.
// bbolt holds an exclusive lock on an open file, so File
// opens the database for each operation and closes it after.
type File struct {
	path    string
	timeout time.Duration
	mu      sync.Mutex
}

// NewFile returns a registry backed by the file at path.
// The file is created on first use.
func NewFile(path string, lockTimeout time.Duration) *File {
	if lockTimeout <= 0 {
		lockTimeout = DefaultLockTimeout
	}

	return &File{path: path, timeout: lockTimeout}
}

// Path returns the registry file's path
func (registry *File) Path() string {
	return registry.path
}

func (registry *File) withDB(writable bool, fn func(bucket *bolt.Bucket) error) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(registry.path), 0755); err != nil {
		return fmt.Errorf("Could not create directory for registry at %s: %s", registry.path, err.Error())
	}

	db, err := bolt.Open(registry.path, 0666, &bolt.Options{Timeout: registry.timeout})

	if err != nil {
		return fmt.Errorf("Could not open registry at %s: %s", registry.path, err.Error())
	}

	defer db.Close()

	if !writable {
		return db.View(func(txn *bolt.Tx) error {
			bucket := txn.Bucket(namesBucket)

			if bucket == nil {
				return fn(nil)
			}

			return fn(bucket)
		})
	}

	return db.Update(func(txn *bolt.Tx) error {
		bucket, err := txn.CreateBucketIfNotExists(namesBucket)

		if err != nil {
			return fmt.Errorf("Could not ensure names bucket exists: %s", err.Error())
		}

		return fn(bucket)
	})
}

func (registry *File) Register(name string, address string) error {
	if name == "" {
		return ErrInvalidName
	}

	return registry.withDB(true, func(bucket *bolt.Bucket) error {
		return bucket.Put([]byte(name), []byte(address))
	})
}

func (registry *File) Lookup(name string) (string, bool, error) {
	var address string
	var ok bool

	err := registry.withDB(false, func(bucket *bolt.Bucket) error {
		if bucket == nil {
			return nil
		}

		if v := bucket.Get([]byte(name)); v != nil {
			address = string(v)
			ok = true
		}

		return nil
	})

	return address, ok, err
}

func (registry *File) Unregister(name string) error {
	return registry.withDB(true, func(bucket *bolt.Bucket) error {
		return bucket.Delete([]byte(name))
	})
}

// UnregisterIf removes name inside one transaction if it still maps to address
func (registry *File) UnregisterIf(name string, address string) (bool, error) {
	var removed bool

	err := registry.withDB(true, func(bucket *bolt.Bucket) error {
		if string(bucket.Get([]byte(name))) != address {
			return nil
		}

		removed = true

		return bucket.Delete([]byte(name))
	})

	return removed, err
}
