package owner

import (
	"context"
	"fmt"

	"github.com/jrife/roost/boxes"
	"github.com/jrife/roost/transport"
	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
)

// Handle executes one request and shapes its result by the
// request's mode. Every transport ends up here. A command this
// owner doesn't recognize yields a nil value and no error.
func (owner *Owner) Handle(ctx context.Context, request transport.Request) (response transport.Response) {
	op := transport.OpUnknown

	if request.Command != nil {
		op = request.Command.Op()
	}

	logger, ctx := log.LoggerFromContext(ctx, owner.logger)
	logger = logger.With(zap.Stringer("operation", op))
	logger.Debug("start Handle()", zap.Stringer("mode", request.Mode))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic", zap.Any("panic", r))

			response = transport.Response{Err: fmt.Errorf("owner: panic handling %s: %v", op, r)}
		}
	}()

	value, err := owner.execute(ctx, request.Command)

	if err != nil {
		logger.Debug("error", zap.Error(err))

		return transport.Response{Err: err}
	}

	value, err = owner.shape(request.Mode, value)

	if err != nil {
		logger.Warn("could not encode result", zap.Error(err))

		return transport.Response{Err: err}
	}

	logger.Debug("return from Handle()")

	return transport.Response{Value: value}
}

func (owner *Owner) box(ctx context.Context, target transport.Target) (*boxes.Box, error) {
	return owner.cache.Open(ctx, target.Box, target.Tag)
}

func (owner *Owner) execute(ctx context.Context, command transport.Command) (interface{}, error) {
	switch c := command.(type) {
	case transport.Ping:
		return true, nil
	case transport.Put:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return nil, box.Put(c.Key, c.Value)
	case transport.Get:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return box.Get(c.Key)
	case transport.GetAll:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return box.GetAll()
	case transport.GetAllWhere:
		predicate, err := owner.funcs.Predicate(c.Predicate)

		if err != nil {
			return nil, err
		}

		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return box.GetAllWhere(predicate)
	case transport.Exists:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return box.Exists(c.Key)
	case transport.Remove:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return nil, box.Remove(c.Key)
	case transport.Clear:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return nil, box.Clear()
	case transport.AddAll:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return box.AddAll(c.Values)
	case transport.Count:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return box.Count()
	case transport.Toggle:
		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return box.Toggle(c.Key, c.Value)
	case transport.PutAll:
		keyFunc, err := owner.funcs.KeyFunc(c.KeyFunc)

		if err != nil {
			return nil, err
		}

		box, err := owner.box(ctx, c.Target)

		if err != nil {
			return nil, err
		}

		return nil, box.PutAll(c.Values, keyFunc)
	}

	return nil, nil
}

// shape encodes value for DecodeEncoded requests, element by
// element for sequences. Other modes pass it through.
func (owner *Owner) shape(mode transport.DecodeMode, value interface{}) (interface{}, error) {
	if mode != transport.DecodeEncoded || value == nil {
		return value, nil
	}

	if values, ok := value.([]interface{}); ok {
		return owner.codecs.EncodeAll(values)
	}

	return owner.codecs.Encode(value)
}
