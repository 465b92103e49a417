package codec

import (
	"fmt"
	"time"

	"github.com/gogo/protobuf/proto"
)

// Tag identifies the encoding of a value
type Tag uint32

const (
	// TagDynamic is not bound to an adapter. A collection
	// created with it accepts values of any registered type.
	TagDynamic Tag = 0
	// TagString encodes string
	TagString Tag = 1
	// TagInt encodes int
	TagInt Tag = 2
	// TagFloat encodes float64
	TagFloat Tag = 3
	// TagBool encodes bool
	TagBool Tag = 4
	// TagBytes encodes []byte
	TagBytes Tag = 5
	// TagDateTime encodes time.Time as an instant. The
	// location is not kept and values decode in UTC.
	TagDateTime Tag = 16
	// TagZonedDateTime encodes ZonedTime, keeping the offset
	// and zone name
	TagZonedDateTime Tag = 17
	// TagBigInt encodes *big.Int
	TagBigInt Tag = 18
	// FirstApplicationTag is the lowest tag applications
	// should use for their own adapters.
	FirstApplicationTag Tag = 32
)

// EncodedValue is the opaque form of a value produced by an
// adapter's Encoder. Tag selects the Decoder.
type EncodedValue struct {
	Tag  Tag
	Data []byte
}

// Marshal flattens the value into a single byte slice
// prefixed with its tag.
func (value EncodedValue) Marshal() []byte {
	return append(proto.EncodeVarint(uint64(value.Tag)), value.Data...)
}

// UnmarshalEncodedValue is the inverse of EncodedValue.Marshal
func UnmarshalEncodedValue(data []byte) (EncodedValue, error) {
	tag, n := proto.DecodeVarint(data)

	if n == 0 {
		return EncodedValue{}, fmt.Errorf("%w: missing tag", ErrMalformed)
	}

	value := EncodedValue{Tag: Tag(tag), Data: make([]byte, len(data)-n)}
	copy(value.Data, data[n:])

	return value, nil
}

// ZonedTime is a point in time that keeps its UTC offset
// and zone name across encoding. Plain time.Time values
// are encoded as instants only.
type ZonedTime struct {
	time.Time
}

// Zoned wraps t
func Zoned(t time.Time) ZonedTime {
	return ZonedTime{Time: t}
}
