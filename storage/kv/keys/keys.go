package keys

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrInvalidKey is returned for keys that are not a
// non-negative int up to MaxInt or a string of at most
// MaxStringLength bytes
var ErrInvalidKey = errors.New("keys: invalid key")

const (
	// MaxInt is the largest integer key
	MaxInt = math.MaxUint32
	// MaxStringLength is the longest string key in bytes
	MaxStringLength = 255
)

const (
	intPrefix    byte = 0
	stringPrefix byte = 1
)

// lastInt is the encoding of MaxInt. Every encoded integer key
// sorts at or below it and every string key sorts above it.
var lastInt = []byte{intPrefix, 0xff, 0xff, 0xff, 0xff}

// Key is an encoded key. Encoded keys sort integers first,
// in ascending order, then strings in byte order.
type Key []byte

// Validate checks that key can be encoded
func Validate(key interface{}) error {
	_, err := Encode(key)

	return err
}

// Encode encodes an int or string key
func Encode(key interface{}) (Key, error) {
	switch k := key.(type) {
	case int:
		if k < 0 || uint64(k) > MaxInt {
			return nil, fmt.Errorf("%w: integer keys must be in [0, %d], got %d", ErrInvalidKey, uint32(MaxInt), k)
		}

		encoded := make(Key, 5)
		encoded[0] = intPrefix
		binary.BigEndian.PutUint32(encoded[1:], uint32(k))

		return encoded, nil
	case string:
		if len(k) > MaxStringLength {
			return nil, fmt.Errorf("%w: string keys must be at most %d bytes, got %d", ErrInvalidKey, MaxStringLength, len(k))
		}

		return append(Key{stringPrefix}, k...), nil
	}

	return nil, fmt.Errorf("%w: keys must be int or string, got %T", ErrInvalidKey, key)
}

// Decode is the inverse of Encode
func Decode(key Key) (interface{}, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	switch key[0] {
	case intPrefix:
		if len(key) != 5 {
			return nil, fmt.Errorf("%w: integer keys are 5 bytes, got %d", ErrInvalidKey, len(key))
		}

		return int(binary.BigEndian.Uint32(key[1:])), nil
	case stringPrefix:
		return string(key[1:]), nil
	}

	return nil, fmt.Errorf("%w: unknown prefix %d", ErrInvalidKey, key[0])
}

// Compare compares two keys
// -1 means a < b
// 1 means a > b
// 0 means a = b
func Compare(a, b Key) int {
	return bytes.Compare(a, b)
}

// IsInt returns true if key encodes an integer
func IsInt(key Key) bool {
	return len(key) == 5 && key[0] == intPrefix
}

// LastInt returns the encoding of the largest possible
// integer key. It is a seek target for finding the highest
// integer key in a sorted map.
func LastInt() Key {
	k := make(Key, len(lastInt))
	copy(k, lastInt)

	return k
}

// NextInt returns the integer key that follows last, the
// highest integer key currently in a collection. last = nil
// means the collection has no integer keys.
func NextInt(last Key) (int, error) {
	if last == nil {
		return 0, nil
	}

	if !IsInt(last) {
		return 0, fmt.Errorf("%w: not an integer key", ErrInvalidKey)
	}

	i := binary.BigEndian.Uint32(last[1:])

	if uint64(i) >= MaxInt {
		return 0, fmt.Errorf("%w: integer keys exhausted", ErrInvalidKey)
	}

	return int(i) + 1, nil
}
