package boxes

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/storage/kv"
	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var (
	// ErrOpen is matched by every error from a failed open
	ErrOpen = errors.New("boxes: could not open box")
	// ErrTagMismatch is returned when a box is opened
	// with a tag other than the one it was opened with
	ErrTagMismatch = errors.New("boxes: tag mismatch")
)

// OpenError reports a failed open. It matches ErrOpen
// and unwraps to the storage error.
type OpenError struct {
	Name string
	Err  error
}

func (err *OpenError) Error() string {
	return fmt.Sprintf("boxes: could not open box %s: %s", err.Name, err.Err.Error())
}

func (err *OpenError) Unwrap() error {
	return err.Err
}

func (err *OpenError) Is(target error) bool {
	return target == ErrOpen
}

// Cache holds every box opened against one store. For
// each name at most one open is in flight: concurrent
// callers share its result and the store's OpenCollection
// runs once per name for the life of the cache.
type Cache struct {
	store  kv.Store
	logger *zap.Logger
	group  singleflight.Group
	mu     sync.RWMutex
	boxes  map[string]*Box
}

// NewCache creates an empty cache over store
func NewCache(store kv.Store, logger *zap.Logger) *Cache {
	return &Cache{
		store:  store,
		logger: log.OrNop(logger),
		boxes:  map[string]*Box{},
	}
}

func (cache *Cache) cached(name string, tag codec.Tag) (*Box, bool, error) {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	box, ok := cache.boxes[name]

	if !ok {
		return nil, false, nil
	}

	if box.Tag() != tag {
		return nil, true, fmt.Errorf("%w: box %s holds tag %d, not %d", ErrTagMismatch, name, box.Tag(), tag)
	}

	return box, true, nil
}

// Open returns the box called name, opening it on first
// use. A failed open is returned to every waiter and
// forgotten so that a later call tries again. ctx only
// bounds how long this caller waits.
func (cache *Cache) Open(ctx context.Context, name string, tag codec.Tag) (*Box, error) {
	if box, ok, err := cache.cached(name, tag); ok {
		return box, err
	}

	result := cache.group.DoChan(name, func() (interface{}, error) {
		if box, ok, err := cache.cached(name, tag); ok {
			return box, err
		}

		collection, err := cache.store.OpenCollection(name, tag)

		if err != nil {
			cache.logger.Warn("could not open box", zap.String("box", name), zap.Error(err))

			return nil, &OpenError{Name: name, Err: err}
		}

		box := newBox(collection, cache.logger.With(zap.String("box", name)))

		cache.mu.Lock()
		cache.boxes[name] = box
		cache.mu.Unlock()

		cache.logger.Debug("opened box", zap.String("box", name), zap.Uint32("tag", uint32(tag)))

		return box, nil
	})

	select {
	case r := <-result:
		if r.Err != nil {
			return nil, r.Err
		}

		box := r.Val.(*Box)

		// A caller that joined an open for a different tag
		if box.Tag() != tag {
			return nil, fmt.Errorf("%w: box %s holds tag %d, not %d", ErrTagMismatch, name, box.Tag(), tag)
		}

		return box, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Names lists the open boxes in name order
func (cache *Cache) Names() []string {
	cache.mu.RLock()
	defer cache.mu.RUnlock()

	names := make([]string, 0, len(cache.boxes))

	for name := range cache.boxes {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}
