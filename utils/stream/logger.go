package stream

import "go.uber.org/zap"

// Log writes each value to logger at debug level
// along with its position in the stream
func Log(logger *zap.Logger) Processor {
	return func(source Stream) Stream {
		return &logged{Stream: source, logger: logger}
	}
}

type logged struct {
	Stream
	logger   *zap.Logger
	position int
}

func (l *logged) Next() bool {
	if !l.Stream.Next() {
		if err := l.Stream.Error(); err != nil {
			l.logger.Debug("stream failed", zap.Int("position", l.position), zap.Error(err))
		}

		return false
	}

	if ce := l.logger.Check(zap.DebugLevel, "stream value"); ce != nil {
		ce.Write(zap.Int("position", l.position), zap.Any("value", l.Stream.Value()))
	}

	l.position++

	return true
}
