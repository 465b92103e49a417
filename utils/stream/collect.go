package stream

// FromSlice streams the elements of values in order
func FromSlice(values []interface{}) Stream {
	return &sliceStream{values: values, i: -1}
}

type sliceStream struct {
	values []interface{}
	i      int
}

func (stream *sliceStream) Next() bool {
	if stream.i+1 >= len(stream.values) {
		stream.i = len(stream.values)

		return false
	}

	stream.i++

	return true
}

func (stream *sliceStream) Value() interface{} {
	if stream.i < 0 || stream.i >= len(stream.values) {
		return nil
	}

	return stream.values[stream.i]
}

func (stream *sliceStream) Error() error {
	return nil
}

// Collect drains the stream into a slice. It returns
// the stream's error, if any, once the stream ends.
func Collect(stream Stream) ([]interface{}, error) {
	values := []interface{}{}

	for stream.Next() {
		values = append(values, stream.Value())
	}

	if err := stream.Error(); err != nil {
		return nil, err
	}

	return values, nil
}
