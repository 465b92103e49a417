package kv

import (
	"fmt"
	"reflect"

	"github.com/jrife/roost/codec"
)

// ValidateName returns ErrInvalidName if name can't name a collection
func ValidateName(name string) error {
	if name == "" {
		return ErrInvalidName
	}

	return nil
}

// EncodeValue encodes value for a collection created with tag.
// It returns ErrTypeMismatch if value's tag differs from tag
// and tag isn't codec.TagDynamic.
func EncodeValue(adapters *codec.Registry, tag codec.Tag, value interface{}) (codec.EncodedValue, error) {
	if value == nil {
		return codec.EncodedValue{}, ErrNilValue
	}

	if v := reflect.ValueOf(value); v.Kind() == reflect.Ptr && v.IsNil() {
		return codec.EncodedValue{}, fmt.Errorf("%w: nil %T", ErrNilValue, value)
	}

	encoded, err := adapters.Encode(value)

	if err != nil {
		return codec.EncodedValue{}, err
	}

	if tag != codec.TagDynamic && encoded.Tag != tag {
		return codec.EncodedValue{}, fmt.Errorf("%w: expected tag %d, got %d (%T)", ErrTypeMismatch, tag, encoded.Tag, value)
	}

	return encoded, nil
}
