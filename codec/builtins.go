package codec

import (
	"fmt"
	"math"
	"math/big"
	"reflect"
	"time"

	"github.com/gogo/protobuf/proto"
	golang_proto "github.com/golang/protobuf/proto"
	"github.com/golang/protobuf/ptypes"
	"github.com/golang/protobuf/ptypes/timestamp"
)

// Builtins returns the adapters every registry starts with
func Builtins() []Adapter {
	return []Adapter{
		{Tag: TagString, Type: reflect.TypeOf(""), Encode: encodeString, Decode: decodeString},
		{Tag: TagInt, Type: reflect.TypeOf(int(0)), Encode: encodeInt, Decode: decodeInt},
		{Tag: TagFloat, Type: reflect.TypeOf(float64(0)), Encode: encodeFloat, Decode: decodeFloat},
		{Tag: TagBool, Type: reflect.TypeOf(false), Encode: encodeBool, Decode: decodeBool},
		{Tag: TagBytes, Type: reflect.TypeOf([]byte(nil)), Encode: encodeBytes, Decode: decodeBytes},
		{Tag: TagDateTime, Type: reflect.TypeOf(time.Time{}), Encode: encodeDateTime, Decode: decodeDateTime},
		{Tag: TagZonedDateTime, Type: reflect.TypeOf(ZonedTime{}), Encode: encodeZonedDateTime, Decode: decodeZonedDateTime},
		{Tag: TagBigInt, Type: reflect.TypeOf((*big.Int)(nil)), Encode: encodeBigInt, Decode: decodeBigInt},
	}
}

func encodeString(value interface{}) ([]byte, error) {
	return []byte(value.(string)), nil
}

func decodeString(data []byte) (interface{}, error) {
	return string(data), nil
}

func encodeInt(value interface{}) ([]byte, error) {
	buffer := proto.NewBuffer(nil)

	if err := buffer.EncodeZigzag64(uint64(value.(int))); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func decodeInt(data []byte) (interface{}, error) {
	i, err := proto.NewBuffer(data).DecodeZigzag64()

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return int(int64(i)), nil
}

func encodeFloat(value interface{}) ([]byte, error) {
	buffer := proto.NewBuffer(nil)

	if err := buffer.EncodeFixed64(math.Float64bits(value.(float64))); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func decodeFloat(data []byte) (interface{}, error) {
	bits, err := proto.NewBuffer(data).DecodeFixed64()

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return math.Float64frombits(bits), nil
}

func encodeBool(value interface{}) ([]byte, error) {
	if value.(bool) {
		return []byte{1}, nil
	}

	return []byte{0}, nil
}

func decodeBool(data []byte) (interface{}, error) {
	if len(data) != 1 {
		return nil, fmt.Errorf("%w: bool must be one byte, got %d", ErrMalformed, len(data))
	}

	return data[0] != 0, nil
}

func encodeBytes(value interface{}) ([]byte, error) {
	b := value.([]byte)
	data := make([]byte, len(b))
	copy(data, b)

	return data, nil
}

func decodeBytes(data []byte) (interface{}, error) {
	b := make([]byte, len(data))
	copy(b, data)

	return b, nil
}

func marshalTimestamp(t time.Time) ([]byte, error) {
	ts, err := ptypes.TimestampProto(t)

	if err != nil {
		return nil, err
	}

	return golang_proto.Marshal(ts)
}

func unmarshalTimestamp(data []byte) (time.Time, error) {
	var ts timestamp.Timestamp

	if err := golang_proto.Unmarshal(data, &ts); err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	t, err := ptypes.Timestamp(&ts)

	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return t, nil
}

func encodeDateTime(value interface{}) ([]byte, error) {
	return marshalTimestamp(value.(time.Time))
}

func decodeDateTime(data []byte) (interface{}, error) {
	return unmarshalTimestamp(data)
}

func encodeZonedDateTime(value interface{}) ([]byte, error) {
	t := value.(ZonedTime).Time
	name, offset := t.Zone()
	ts, err := marshalTimestamp(t)

	if err != nil {
		return nil, err
	}

	buffer := proto.NewBuffer(nil)

	if err := buffer.EncodeRawBytes(ts); err != nil {
		return nil, err
	}

	if err := buffer.EncodeZigzag64(uint64(int64(offset))); err != nil {
		return nil, err
	}

	if err := buffer.EncodeStringBytes(name); err != nil {
		return nil, err
	}

	return buffer.Bytes(), nil
}

func decodeZonedDateTime(data []byte) (interface{}, error) {
	buffer := proto.NewBuffer(data)
	ts, err := buffer.DecodeRawBytes(false)

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	offset, err := buffer.DecodeZigzag64()

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	name, err := buffer.DecodeStringBytes()

	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	t, err := unmarshalTimestamp(ts)

	if err != nil {
		return nil, err
	}

	return ZonedTime{Time: t.In(time.FixedZone(name, int(int64(offset))))}, nil
}

func encodeBigInt(value interface{}) ([]byte, error) {
	i := value.(*big.Int)

	// Gob encodes nil and zero alike
	if i == nil {
		return nil, fmt.Errorf("%w: nil *big.Int", ErrUnknownType)
	}

	return i.GobEncode()
}

func decodeBigInt(data []byte) (interface{}, error) {
	i := new(big.Int)

	if err := i.GobDecode(data); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrMalformed, err.Error())
	}

	return i, nil
}
