package stream

// Filter drops the values keep rejects
func Filter(keep func(value interface{}) bool) Processor {
	return func(source Stream) Stream {
		return &filtered{Stream: source, keep: keep}
	}
}

type filtered struct {
	Stream
	keep func(value interface{}) bool
}

func (f *filtered) Next() bool {
	for f.Stream.Next() {
		if f.keep(f.Stream.Value()) {
			return true
		}
	}

	return false
}
