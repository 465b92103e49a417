package kv

import (
	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/utils/stream"
)

// Stream decodes values lazily as the returned stream
// advances. Iteration stops at the first value that
// fails to decode and Error reports why.
func Stream(adapters *codec.Registry, values []codec.EncodedValue) stream.Stream {
	return &valueStream{adapters: adapters, values: values, i: -1}
}

type valueStream struct {
	adapters *codec.Registry
	values   []codec.EncodedValue
	i        int
	value    interface{}
	err      error
}

func (stream *valueStream) Next() bool {
	if stream.err != nil || stream.i+1 >= len(stream.values) {
		stream.value = nil

		return false
	}

	stream.i++
	stream.value, stream.err = stream.adapters.Decode(stream.values[stream.i])

	if stream.err != nil {
		stream.value = nil

		return false
	}

	return true
}

func (stream *valueStream) Value() interface{} {
	return stream.value
}

func (stream *valueStream) Error() error {
	return stream.err
}
