package stream_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/roost/utils/stream"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

func ints(n int) stream.Stream {
	return &randomIntStream{n, 0}
}

type randomIntStream struct {
	n int
	v int
}

func (stream *randomIntStream) Next() bool {
	if stream.n > 0 {
		stream.n--
		stream.v = rand.Int()

		return true
	}

	return false
}

func (stream *randomIntStream) Value() interface{} {
	return stream.v
}

func (stream *randomIntStream) Error() error {
	return nil
}

func record(record *[]int) stream.Processor {
	*record = []int{}

	return func(stream stream.Stream) stream.Stream {
		return &streamRecorder{stream, record}
	}
}

type streamRecorder struct {
	stream.Stream
	record *[]int
}

func (stream *streamRecorder) Next() bool {
	if !stream.Stream.Next() {
		return false
	}

	*stream.record = append(*stream.record, stream.Value().(int))

	return true
}

type failingStream struct {
	stream.Stream
	err error
}

func (stream *failingStream) Error() error {
	return stream.err
}

func Drain(stream stream.Stream) {
	for stream.Next() {
	}
}

func Filter(ints []int, filter func(a interface{}) bool) []int {
	filteredInts := []int{}

	for _, i := range ints {
		if filter(i) {
			filteredInts = append(filteredInts, i)
		}
	}

	return filteredInts
}

func TestStream(t *testing.T) {
	even := func(a interface{}) bool { return a.(int)%2 == 0 }

	input := []int{}
	output := []int{}

	Drain(stream.Pipeline(ints(1000), record(&input), stream.Filter(even), stream.Log(zaptest.NewLogger(t)), nil, record(&output)))
	diff := cmp.Diff(Filter(input, even), output)

	if diff != "" {
		t.Fatal(diff)
	}
}

func TestCollect(t *testing.T) {
	testCases := map[string]struct {
		input    []interface{}
		filter   func(interface{}) bool
		expected []interface{}
	}{
		"empty": {
			input:    []interface{}{},
			expected: []interface{}{},
		},
		"nil": {
			input:    nil,
			expected: []interface{}{},
		},
		"all": {
			input:    []interface{}{1, "a", 2.5},
			expected: []interface{}{1, "a", 2.5},
		},
		"filtered-keeps-order": {
			input:    []interface{}{1, 2, 3, 4},
			filter:   func(v interface{}) bool { return v.(int)%2 == 0 },
			expected: []interface{}{2, 4},
		},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			var processor stream.Processor

			if testCase.filter != nil {
				processor = stream.Filter(testCase.filter)
			}

			values, err := stream.Collect(stream.Pipeline(stream.FromSlice(testCase.input), processor))

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.expected, values); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestCollectError(t *testing.T) {
	expected := errors.New("broken")
	values, err := stream.Collect(&failingStream{stream.FromSlice([]interface{}{1}), expected})

	if err != expected {
		t.Fatalf("expected %#v, got %#v", expected, err)
	}

	if values != nil {
		t.Fatalf("expected no values, got %#v", values)
	}
}

func TestLog(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)

	if _, err := stream.Collect(stream.Pipeline(stream.FromSlice([]interface{}{"a", "b"}), stream.Log(zap.New(core)))); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	positions := []int64{}

	for _, entry := range logs.FilterMessage("stream value").All() {
		positions = append(positions, entry.ContextMap()["position"].(int64))
	}

	if diff := cmp.Diff([]int64{0, 1}, positions); diff != "" {
		t.Fatal(diff)
	}
}
