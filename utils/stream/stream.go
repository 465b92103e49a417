// Package stream iterates over values read from a collection
// and lets callers stack processors on top of the iteration.
package stream

// Stream yields values one at a time. Call Next before the
// first Value. Once Next returns false, Error says whether
// the stream ended or failed.
type Stream interface {
	Next() bool
	// Value is nil before the first Next and after the last
	Value() interface{}
	Error() error
}

// Processor wraps a stream in another
type Processor func(Stream) Stream

// Pipeline applies processors to source in order. Nil
// processors are skipped so that optional stages can be
// passed without branching.
func Pipeline(source Stream, processors ...Processor) Stream {
	result := source

	for _, processor := range processors {
		if processor != nil {
			result = processor(result)
		}
	}

	return result
}
