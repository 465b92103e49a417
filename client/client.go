// Package client gives non-owner units the same operations
// the owner's boxes have. Each call becomes a command that
// travels to the owner through a Router.
package client

import (
	"context"
	"fmt"

	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/transport"
	"github.com/jrife/roost/utils/uuid"
)

// Router delivers requests to the current owner.
// *coordinator.Coordinator implements it.
type Router interface {
	Route(ctx context.Context, request transport.Request) (transport.Response, error)
}

// Box is a proxy for one of the owner's boxes
type Box struct {
	target transport.Target
	router Router
	codecs *codec.Registry
}

// New creates a proxy for the box called name. codecs decodes
// results and must know every tag the box can hold.
func New(name string, tag codec.Tag, router Router, codecs *codec.Registry) *Box {
	return &Box{
		target: transport.Target{Box: name, Tag: tag},
		router: router,
		codecs: codecs,
	}
}

// Name returns the box's name
func (box *Box) Name() string {
	return box.target.Box
}

// Tag returns the type tag the box was opened with
func (box *Box) Tag() codec.Tag {
	return box.target.Tag
}

func (box *Box) do(ctx context.Context, mode transport.DecodeMode, command transport.Command) (interface{}, error) {
	response, err := box.router.Route(ctx, transport.Request{
		ID:      uuid.MustUUID(),
		Mode:    mode,
		Command: command,
	})

	if err != nil {
		return nil, err
	}

	if response.Err != nil {
		return nil, response.Err
	}

	return response.Value, nil
}

func (box *Box) decodeOne(value interface{}) (interface{}, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case codec.EncodedValue:
		return box.codecs.Decode(v)
	}

	return nil, fmt.Errorf("client: expected an encoded value, got %T", value)
}

func (box *Box) decodeMany(value interface{}) ([]interface{}, error) {
	switch v := value.(type) {
	case nil:
		return []interface{}{}, nil
	case []codec.EncodedValue:
		return box.codecs.DecodeAll(v)
	}

	return nil, fmt.Errorf("client: expected encoded values, got %T", value)
}

func asBool(value interface{}) (bool, error) {
	switch v := value.(type) {
	case nil:
		return false, nil
	case bool:
		return v, nil
	}

	return false, fmt.Errorf("client: expected a bool, got %T", value)
}

func asInt(value interface{}) (int, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return v, nil
	}

	return 0, fmt.Errorf("client: expected an int, got %T", value)
}

func (box *Box) Put(ctx context.Context, key interface{}, value interface{}) error {
	_, err := box.do(ctx, transport.DecodeRaw, transport.Put{Target: box.target, Key: key, Value: value})

	return err
}

// Get returns nil for an absent key
func (box *Box) Get(ctx context.Context, key interface{}) (interface{}, error) {
	value, err := box.do(ctx, transport.DecodeEncoded, transport.Get{Target: box.target, Key: key})

	if err != nil {
		return nil, err
	}

	return box.decodeOne(value)
}

func (box *Box) GetAll(ctx context.Context) ([]interface{}, error) {
	value, err := box.do(ctx, transport.DecodeEncoded, transport.GetAll{Target: box.target})

	if err != nil {
		return nil, err
	}

	return box.decodeMany(value)
}

// GetAllWhere returns the values matching the predicate
// registered under predicate in the owner's function table
func (box *Box) GetAllWhere(ctx context.Context, predicate string) ([]interface{}, error) {
	value, err := box.do(ctx, transport.DecodeEncoded, transport.GetAllWhere{Target: box.target, Predicate: predicate})

	if err != nil {
		return nil, err
	}

	return box.decodeMany(value)
}

func (box *Box) Exists(ctx context.Context, key interface{}) (bool, error) {
	value, err := box.do(ctx, transport.DecodePrimitive, transport.Exists{Target: box.target, Key: key})

	if err != nil {
		return false, err
	}

	return asBool(value)
}

func (box *Box) Remove(ctx context.Context, key interface{}) error {
	_, err := box.do(ctx, transport.DecodeRaw, transport.Remove{Target: box.target, Key: key})

	return err
}

func (box *Box) Clear(ctx context.Context) error {
	_, err := box.do(ctx, transport.DecodeRaw, transport.Clear{Target: box.target})

	return err
}

// AddAll stores values under generated integer keys
// and returns the keys in input order
func (box *Box) AddAll(ctx context.Context, values []interface{}) ([]interface{}, error) {
	value, err := box.do(ctx, transport.DecodeRaw, transport.AddAll{Target: box.target, Values: values})

	if err != nil {
		return nil, err
	}

	if value == nil {
		return []interface{}{}, nil
	}

	keys, ok := value.([]interface{})

	if !ok {
		return nil, fmt.Errorf("client: expected a list of keys, got %T", value)
	}

	return keys, nil
}

func (box *Box) Count(ctx context.Context) (int, error) {
	value, err := box.do(ctx, transport.DecodePrimitive, transport.Count{Target: box.target})

	if err != nil {
		return 0, err
	}

	return asInt(value)
}

// Toggle removes key if present and stores value under it
// otherwise. It returns true if it stored value.
func (box *Box) Toggle(ctx context.Context, key interface{}, value interface{}) (bool, error) {
	result, err := box.do(ctx, transport.DecodePrimitive, transport.Toggle{Target: box.target, Key: key, Value: value})

	if err != nil {
		return false, err
	}

	return asBool(result)
}

// PutAll stores each value under the key the function
// registered as keyFunc derives from it
func (box *Box) PutAll(ctx context.Context, values []interface{}, keyFunc string) error {
	_, err := box.do(ctx, transport.DecodeRaw, transport.PutAll{Target: box.target, Values: values, KeyFunc: keyFunc})

	return err
}
