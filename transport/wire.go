package transport

import (
	"errors"
	"fmt"

	"github.com/gogo/protobuf/proto"
	"github.com/jrife/roost/codec"
)

// ErrMalformed is returned for bytes that don't decode
// to a request or response
var ErrMalformed = errors.New("transport: malformed message")

const (
	kindNil uint64 = iota
	kindValue
	kindEncoded
	kindList
	kindEncodedList
)

// MarshalRequest flattens a request. Keys and values are
// encoded with codecs.
func MarshalRequest(codecs *codec.Registry, request Request) ([]byte, error) {
	w := &writer{buffer: proto.NewBuffer(nil), codecs: codecs}

	w.string(request.ID)
	w.varint(uint64(request.Mode))
	w.varint(uint64(request.Command.Op()))

	switch c := request.Command.(type) {
	case Ping, Unknown:
	case Put:
		w.target(c.Target)
		w.value(c.Key)
		w.value(c.Value)
	case Get:
		w.target(c.Target)
		w.value(c.Key)
	case GetAll:
		w.target(c.Target)
	case GetAllWhere:
		w.target(c.Target)
		w.string(c.Predicate)
	case Exists:
		w.target(c.Target)
		w.value(c.Key)
	case Remove:
		w.target(c.Target)
		w.value(c.Key)
	case Clear:
		w.target(c.Target)
	case AddAll:
		w.target(c.Target)
		w.value(c.Values)
	case Count:
		w.target(c.Target)
	case Toggle:
		w.target(c.Target)
		w.value(c.Key)
		w.value(c.Value)
	case PutAll:
		w.target(c.Target)
		w.value(c.Values)
		w.string(c.KeyFunc)
	default:
		return nil, fmt.Errorf("transport: cannot marshal command %T", request.Command)
	}

	if w.err != nil {
		return nil, w.err
	}

	return w.buffer.Bytes(), nil
}

// UnmarshalRequest is the inverse of MarshalRequest. An
// unrecognized op decodes to Unknown.
func UnmarshalRequest(codecs *codec.Registry, data []byte) (Request, error) {
	r := &reader{buffer: proto.NewBuffer(data), codecs: codecs}
	request := Request{}

	request.ID = r.string()
	request.Mode = DecodeMode(r.varint())
	op := Op(r.varint())

	if r.err != nil {
		return Request{}, r.err
	}

	switch op {
	case OpPing:
		request.Command = Ping{}
	case OpPut:
		request.Command = Put{Target: r.target(), Key: r.value(), Value: r.value()}
	case OpGet:
		request.Command = Get{Target: r.target(), Key: r.value()}
	case OpGetAll:
		request.Command = GetAll{Target: r.target()}
	case OpGetAllWhere:
		request.Command = GetAllWhere{Target: r.target(), Predicate: r.string()}
	case OpExists:
		request.Command = Exists{Target: r.target(), Key: r.value()}
	case OpRemove:
		request.Command = Remove{Target: r.target(), Key: r.value()}
	case OpClear:
		request.Command = Clear{Target: r.target()}
	case OpAddAll:
		request.Command = AddAll{Target: r.target(), Values: r.values()}
	case OpCount:
		request.Command = Count{Target: r.target()}
	case OpToggle:
		request.Command = Toggle{Target: r.target(), Key: r.value(), Value: r.value()}
	case OpPutAll:
		request.Command = PutAll{Target: r.target(), Values: r.values(), KeyFunc: r.string()}
	default:
		request.Command = Unknown{Code: op}
	}

	if r.err != nil {
		return Request{}, r.err
	}

	return request, nil
}

// MarshalResponse flattens a response. An error travels
// as its message only.
func MarshalResponse(codecs *codec.Registry, response Response) ([]byte, error) {
	w := &writer{buffer: proto.NewBuffer(nil), codecs: codecs}

	if response.Err != nil {
		w.varint(1)
		w.string(response.Err.Error())
	} else {
		w.varint(0)
		w.value(response.Value)
	}

	if w.err != nil {
		return nil, w.err
	}

	return w.buffer.Bytes(), nil
}

// UnmarshalResponse is the inverse of MarshalResponse.
// Errors come back as *RemoteError.
func UnmarshalResponse(codecs *codec.Registry, data []byte) (Response, error) {
	r := &reader{buffer: proto.NewBuffer(data), codecs: codecs}
	response := Response{}

	if r.varint() == 1 {
		response.Err = &RemoteError{Message: r.string()}
	} else {
		response.Value = r.value()
	}

	if r.err != nil {
		return Response{}, r.err
	}

	return response, nil
}

type writer struct {
	buffer *proto.Buffer
	codecs *codec.Registry
	err    error
}

func (w *writer) varint(x uint64) {
	if w.err == nil {
		w.err = w.buffer.EncodeVarint(x)
	}
}

func (w *writer) bytes(b []byte) {
	if w.err == nil {
		w.err = w.buffer.EncodeRawBytes(b)
	}
}

func (w *writer) string(s string) {
	if w.err == nil {
		w.err = w.buffer.EncodeStringBytes(s)
	}
}

func (w *writer) target(target Target) {
	w.string(target.Box)
	w.varint(uint64(target.Tag))
}

func (w *writer) encoded(value codec.EncodedValue) {
	w.varint(uint64(value.Tag))
	w.bytes(value.Data)
}

func (w *writer) value(value interface{}) {
	if w.err != nil {
		return
	}

	switch v := value.(type) {
	case nil:
		w.varint(kindNil)
	case codec.EncodedValue:
		w.varint(kindEncoded)
		w.encoded(v)
	case []codec.EncodedValue:
		w.varint(kindEncodedList)
		w.varint(uint64(len(v)))

		for _, e := range v {
			w.encoded(e)
		}
	case []interface{}:
		w.varint(kindList)
		w.varint(uint64(len(v)))

		for _, e := range v {
			w.value(e)
		}
	default:
		encoded, err := w.codecs.Encode(value)

		if err != nil {
			w.err = err

			return
		}

		w.varint(kindValue)
		w.encoded(encoded)
	}
}

type reader struct {
	buffer *proto.Buffer
	codecs *codec.Registry
	err    error
}

func (r *reader) varint() uint64 {
	if r.err != nil {
		return 0
	}

	x, err := r.buffer.DecodeVarint()

	if err != nil {
		r.err = fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return x
}

func (r *reader) bytes() []byte {
	if r.err != nil {
		return nil
	}

	b, err := r.buffer.DecodeRawBytes(true)

	if err != nil {
		r.err = fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return b
}

func (r *reader) string() string {
	if r.err != nil {
		return ""
	}

	s, err := r.buffer.DecodeStringBytes()

	if err != nil {
		r.err = fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return s
}

func (r *reader) target() Target {
	return Target{Box: r.string(), Tag: codec.Tag(r.varint())}
}

func (r *reader) encoded() codec.EncodedValue {
	return codec.EncodedValue{Tag: codec.Tag(r.varint()), Data: r.bytes()}
}

func (r *reader) values() []interface{} {
	value := r.value()

	if value == nil {
		return nil
	}

	values, ok := value.([]interface{})

	if !ok && r.err == nil {
		r.err = fmt.Errorf("%w: expected a list", ErrMalformed)
	}

	return values
}

func (r *reader) value() interface{} {
	kind := r.varint()

	if r.err != nil {
		return nil
	}

	switch kind {
	case kindNil:
		return nil
	case kindEncoded:
		return r.encoded()
	case kindEncodedList:
		n := r.varint()
		list := []codec.EncodedValue{}

		for i := uint64(0); i < n && r.err == nil; i++ {
			list = append(list, r.encoded())
		}

		return list
	case kindList:
		n := r.varint()
		list := []interface{}{}

		for i := uint64(0); i < n && r.err == nil; i++ {
			list = append(list, r.value())
		}

		return list
	case kindValue:
		encoded := r.encoded()

		if r.err != nil {
			return nil
		}

		value, err := r.codecs.Decode(encoded)

		if err != nil {
			r.err = err

			return nil
		}

		return value
	}

	r.err = fmt.Errorf("%w: unknown value kind %d", ErrMalformed, kind)

	return nil
}
