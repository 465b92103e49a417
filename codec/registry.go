package codec

import (
	"errors"
	"fmt"
	"reflect"
	"sync"
)

var (
	// ErrUnknownType is returned when a value's Go type has no adapter
	ErrUnknownType = errors.New("codec: no adapter registered for type")
	// ErrUnknownTag is returned when encoded data carries a tag with no adapter
	ErrUnknownTag = errors.New("codec: no adapter registered for tag")
	// ErrInvalidAdapter is returned when an adapter is missing a required field
	ErrInvalidAdapter = errors.New("codec: invalid adapter")
	// ErrMalformed is returned when encoded data cannot be decoded
	ErrMalformed = errors.New("codec: malformed data")
)

// Encoder turns a value into bytes
type Encoder func(value interface{}) ([]byte, error)

// Decoder turns bytes produced by the matching Encoder
// back into a value
type Decoder func(data []byte) (interface{}, error)

// Adapter binds a tag to a Go type and the functions
// used to move values of that type across a boundary.
type Adapter struct {
	Tag    Tag
	Type   reflect.Type
	Encode Encoder
	Decode Decoder
}

// Registrar is anything adapters can be registered against.
// Both the owner's registry and a storage engine's adapter
// table implement it so they agree on the wire format.
type Registrar interface {
	Register(adapter Adapter, internal bool) error
}

// Initializer registers application adapters
type Initializer func(registrar Registrar) error

type entry struct {
	adapter  Adapter
	internal bool
}

// Registry maps tags and Go types to adapters.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	byTag  map[Tag]entry
	byType map[reflect.Type]Tag
	sealed bool
	once   sync.Once
}

// NewRegistry returns a registry with the built-in
// adapters already registered.
func NewRegistry() *Registry {
	registry := &Registry{
		byTag:  make(map[Tag]entry),
		byType: make(map[reflect.Type]Tag),
	}

	for _, adapter := range Builtins() {
		if err := registry.Register(adapter, true); err != nil {
			panic(fmt.Sprintf("could not register built-in adapter %d: %s", adapter.Tag, err.Error()))
		}
	}

	return registry
}

// Register adds or replaces the adapter for a tag. Internal
// adapters win over application adapters that collide with
// their tag or type: the later registration is ignored.
// Registering against a sealed registry does nothing.
func (registry *Registry) Register(adapter Adapter, internal bool) error {
	if adapter.Tag == TagDynamic {
		return fmt.Errorf("%w: tag %d is reserved", ErrInvalidAdapter, TagDynamic)
	}

	if adapter.Type == nil || adapter.Encode == nil || adapter.Decode == nil {
		return fmt.Errorf("%w: tag %d needs a type, an encoder and a decoder", ErrInvalidAdapter, adapter.Tag)
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if registry.sealed {
		return nil
	}

	if existing, ok := registry.byTag[adapter.Tag]; ok && existing.internal {
		return nil
	}

	if tag, ok := registry.byType[adapter.Type]; ok && tag != adapter.Tag && registry.byTag[tag].internal {
		return nil
	}

	if existing, ok := registry.byTag[adapter.Tag]; ok && existing.adapter.Type != adapter.Type {
		delete(registry.byType, existing.adapter.Type)
	}

	registry.byTag[adapter.Tag] = entry{adapter: adapter, internal: internal}
	registry.byType[adapter.Type] = adapter.Tag

	return nil
}

// Init runs the initializer against this registry and seals it.
// Only the first call has any effect. Later calls return nil
// without running their initializer.
func (registry *Registry) Init(initializer Initializer) error {
	var err error

	registry.once.Do(func() {
		if initializer != nil {
			err = initializer(registry)
		}

		registry.mu.Lock()
		registry.sealed = true
		registry.mu.Unlock()
	})

	return err
}

// Sealed reports whether Init has run
func (registry *Registry) Sealed() bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	return registry.sealed
}

// TagOf returns the tag registered for the value's Go type
func (registry *Registry) TagOf(value interface{}) (Tag, error) {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	tag, ok := registry.byType[reflect.TypeOf(value)]

	if !ok {
		return TagDynamic, fmt.Errorf("%w: %T", ErrUnknownType, value)
	}

	return tag, nil
}

// Encode encodes a value with the adapter registered for its type
func (registry *Registry) Encode(value interface{}) (EncodedValue, error) {
	registry.mu.RLock()
	tag, ok := registry.byType[reflect.TypeOf(value)]
	e := registry.byTag[tag]
	registry.mu.RUnlock()

	if !ok {
		return EncodedValue{}, fmt.Errorf("%w: %T", ErrUnknownType, value)
	}

	data, err := e.adapter.Encode(value)

	if err != nil {
		return EncodedValue{}, fmt.Errorf("could not encode %T with tag %d: %w", value, tag, err)
	}

	return EncodedValue{Tag: tag, Data: data}, nil
}

// Decode decodes a value with the adapter registered for its tag
func (registry *Registry) Decode(value EncodedValue) (interface{}, error) {
	registry.mu.RLock()
	e, ok := registry.byTag[value.Tag]
	registry.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTag, value.Tag)
	}

	decoded, err := e.adapter.Decode(value.Data)

	if err != nil {
		return nil, fmt.Errorf("could not decode tag %d: %w", value.Tag, err)
	}

	return decoded, nil
}

// EncodeAll encodes each element of values
func (registry *Registry) EncodeAll(values []interface{}) ([]EncodedValue, error) {
	encoded := make([]EncodedValue, 0, len(values))

	for _, value := range values {
		e, err := registry.Encode(value)

		if err != nil {
			return nil, err
		}

		encoded = append(encoded, e)
	}

	return encoded, nil
}

// DecodeAll decodes each element of values
func (registry *Registry) DecodeAll(values []EncodedValue) ([]interface{}, error) {
	decoded := make([]interface{}, 0, len(values))

	for _, value := range values {
		d, err := registry.Decode(value)

		if err != nil {
			return nil, err
		}

		decoded = append(decoded, d)
	}

	return decoded, nil
}
