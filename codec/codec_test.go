package codec_test

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/roost/codec"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type point struct {
	X int
	Y int
}

var pointTag = codec.FirstApplicationTag + 1

func pointAdapter() codec.Adapter {
	return codec.Adapter{
		Tag:  pointTag,
		Type: reflect.TypeOf(point{}),
		Encode: func(value interface{}) ([]byte, error) {
			p := value.(point)

			return []byte(fmt.Sprintf("%d,%d", p.X, p.Y)), nil
		},
		Decode: func(data []byte) (interface{}, error) {
			var p point

			if _, err := fmt.Sscanf(string(data), "%d,%d", &p.X, &p.Y); err != nil {
				return nil, err
			}

			return p, nil
		},
	}
}

func roundTrip(t *testing.T, registry *codec.Registry, value interface{}) interface{} {
	t.Helper()

	encoded, err := registry.Encode(value)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	decoded, err := registry.Decode(encoded)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return decoded
}

func TestBuiltinRoundTrip(t *testing.T) {
	registry := codec.NewRegistry()

	testCases := map[string]struct {
		value interface{}
	}{
		"empty-string":  {value: ""},
		"string":        {value: "hello"},
		"zero-int":      {value: 0},
		"negative-int":  {value: -42},
		"int":           {value: 1 << 40},
		"float":         {value: 3.25},
		"true":          {value: true},
		"false":         {value: false},
		"bytes":         {value: []byte("abc")},
		"empty-bytes":   {value: []byte{}},
		"zero-big-int":  {value: big.NewInt(0)},
		"negative-big":  {value: big.NewInt(-12345678901234)},
		"positive-big":  {value: new(big.Int).Lsh(big.NewInt(1), 200)},
		"negative-huge": {value: new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(3), 150))},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			decoded := roundTrip(t, registry, testCase.value)

			if diff := cmp.Diff(testCase.value, decoded, cmp.Comparer(func(a, b *big.Int) bool { return a.Cmp(b) == 0 })); diff != "" {
				t.Fatal(diff)
			}
		})
	}
}

func TestDateTimeRoundTrip(t *testing.T) {
	registry := codec.NewRegistry()

	testCases := map[string]struct {
		value time.Time
	}{
		"epoch":       {value: time.Unix(0, 0).UTC()},
		"before-1970": {value: time.Date(1969, time.July, 20, 20, 17, 40, 0, time.UTC)},
		"nanos":       {value: time.Date(2020, time.March, 1, 12, 0, 0, 123456789, time.UTC)},
		"local":       {value: time.Date(2021, time.June, 5, 8, 30, 0, 0, time.FixedZone("X", -5*3600))},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			decoded := roundTrip(t, registry, testCase.value).(time.Time)

			if !decoded.Equal(testCase.value) {
				t.Fatalf("expected %s, got %s", testCase.value, decoded)
			}

			if decoded.Location() != time.UTC {
				t.Fatalf("expected a UTC time, got location %s", decoded.Location())
			}
		})
	}
}

func TestZonedDateTimeRoundTrip(t *testing.T) {
	registry := codec.NewRegistry()

	testCases := map[string]struct {
		value codec.ZonedTime
	}{
		"epoch-utc":   {value: codec.Zoned(time.Unix(0, 0).UTC())},
		"epoch-cet":   {value: codec.Zoned(time.Unix(0, 0).In(time.FixedZone("CET", 3600)))},
		"negative":    {value: codec.Zoned(time.Date(1999, time.December, 31, 23, 59, 59, 0, time.FixedZone("EST", -5*3600)))},
		"half-offset": {value: codec.Zoned(time.Date(2020, time.January, 1, 0, 0, 0, 500, time.FixedZone("IST", 5*3600+1800)))},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			decoded := roundTrip(t, registry, testCase.value).(codec.ZonedTime)

			if !decoded.Equal(testCase.value.Time) {
				t.Fatalf("expected %s, got %s", testCase.value, decoded)
			}

			expectedName, expectedOffset := testCase.value.Zone()
			name, offset := decoded.Zone()

			if name != expectedName || offset != expectedOffset {
				t.Fatalf("expected zone %s%+d, got %s%+d", expectedName, expectedOffset, name, offset)
			}
		})
	}
}

func TestRoundTripProperties(t *testing.T) {
	registry := codec.NewRegistry()
	properties := gopter.NewProperties(gopter.DefaultTestParameters())

	properties.Property("ints", prop.ForAll(func(i int) bool {
		encoded, err := registry.Encode(i)

		if err != nil {
			return false
		}

		decoded, err := registry.Decode(encoded)

		return err == nil && decoded == i
	}, gen.Int()))

	properties.Property("strings", prop.ForAll(func(s string) bool {
		encoded, err := registry.Encode(s)

		if err != nil {
			return false
		}

		decoded, err := registry.Decode(encoded)

		return err == nil && decoded == s
	}, gen.AnyString()))

	properties.Property("big ints", prop.ForAll(func(i int64, shift uint) bool {
		value := new(big.Int).Lsh(big.NewInt(i), shift)
		encoded, err := registry.Encode(value)

		if err != nil {
			return false
		}

		decoded, err := registry.Decode(encoded)

		return err == nil && decoded.(*big.Int).Cmp(value) == 0
	}, gen.Int64(), gen.UIntRange(0, 256)))

	properties.Property("date times", prop.ForAll(func(seconds int64, nanos int64) bool {
		value := time.Unix(seconds, nanos).UTC()
		encoded, err := registry.Encode(value)

		if err != nil {
			return false
		}

		decoded, err := registry.Decode(encoded)

		return err == nil && decoded.(time.Time).Equal(value)
	}, gen.Int64Range(-62135596800, 253402300799), gen.Int64Range(0, 999999999)))

	properties.TestingRun(t)
}

func TestEncodedValueMarshal(t *testing.T) {
	testCases := map[string]struct {
		value codec.EncodedValue
	}{
		"empty-data":  {value: codec.EncodedValue{Tag: codec.TagString, Data: []byte{}}},
		"large-tag":   {value: codec.EncodedValue{Tag: 1 << 20, Data: []byte("abc")}},
		"binary-data": {value: codec.EncodedValue{Tag: codec.TagBytes, Data: []byte{0, 1, 2, 255}}},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			value, err := codec.UnmarshalEncodedValue(testCase.value.Marshal())

			if err != nil {
				t.Fatalf("expected err to be nil, got %#v", err)
			}

			if diff := cmp.Diff(testCase.value, value); diff != "" {
				t.Fatal(diff)
			}
		})
	}

	if _, err := codec.UnmarshalEncodedValue(nil); !errors.Is(err, codec.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %#v", err)
	}
}

func TestRegister(t *testing.T) {
	t.Run("application-adapter", func(t *testing.T) {
		registry := codec.NewRegistry()

		if err := registry.Register(pointAdapter(), false); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		decoded := roundTrip(t, registry, point{X: 1, Y: -2})

		if diff := cmp.Diff(point{X: 1, Y: -2}, decoded); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("builtin-tag-wins", func(t *testing.T) {
		registry := codec.NewRegistry()
		adapter := pointAdapter()
		adapter.Tag = codec.TagString

		if err := registry.Register(adapter, false); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		encoded, err := registry.Encode("abc")

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if encoded.Tag != codec.TagString {
			t.Fatalf("expected tag %d, got %d", codec.TagString, encoded.Tag)
		}

		if _, err := registry.Encode(point{}); !errors.Is(err, codec.ErrUnknownType) {
			t.Fatalf("expected ErrUnknownType, got %#v", err)
		}
	})

	t.Run("builtin-type-wins", func(t *testing.T) {
		registry := codec.NewRegistry()
		adapter := pointAdapter()
		adapter.Type = reflect.TypeOf(time.Time{})

		if err := registry.Register(adapter, false); err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		tag, err := registry.TagOf(time.Time{})

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		if tag != codec.TagDateTime {
			t.Fatalf("expected tag %d, got %d", codec.TagDateTime, tag)
		}
	})

	t.Run("application-adapter-replaced", func(t *testing.T) {
		registry := codec.NewRegistry()
		first := pointAdapter()
		second := pointAdapter()
		second.Encode = func(value interface{}) ([]byte, error) {
			return []byte("0,0"), nil
		}

		registry.Register(first, false)
		registry.Register(second, false)

		decoded := roundTrip(t, registry, point{X: 5, Y: 5})

		if diff := cmp.Diff(point{}, decoded); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("invalid-adapter", func(t *testing.T) {
		registry := codec.NewRegistry()

		if err := registry.Register(codec.Adapter{Tag: codec.TagDynamic}, false); !errors.Is(err, codec.ErrInvalidAdapter) {
			t.Fatalf("expected ErrInvalidAdapter, got %#v", err)
		}

		if err := registry.Register(codec.Adapter{Tag: pointTag}, false); !errors.Is(err, codec.ErrInvalidAdapter) {
			t.Fatalf("expected ErrInvalidAdapter, got %#v", err)
		}
	})

	t.Run("unknown-tag", func(t *testing.T) {
		registry := codec.NewRegistry()

		if _, err := registry.Decode(codec.EncodedValue{Tag: 999}); !errors.Is(err, codec.ErrUnknownTag) {
			t.Fatalf("expected ErrUnknownTag, got %#v", err)
		}
	})
}

func TestInit(t *testing.T) {
	registry := codec.NewRegistry()
	calls := 0
	initializer := func(registrar codec.Registrar) error {
		calls++

		return registrar.Register(pointAdapter(), false)
	}

	if err := registry.Init(initializer); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := registry.Init(initializer); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if calls != 1 {
		t.Fatalf("expected the initializer to run once, ran %d times", calls)
	}

	if !registry.Sealed() {
		t.Fatalf("expected the registry to be sealed")
	}

	late := pointAdapter()
	late.Tag = pointTag + 1
	late.Type = reflect.TypeOf(struct{ Z int }{})

	if err := registry.Register(late, false); err != nil {
		t.Fatalf("expected registering after sealing to be a no-op, got %#v", err)
	}

	if _, err := registry.Encode(struct{ Z int }{}); !errors.Is(err, codec.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %#v", err)
	}

	if _, err := registry.Encode(point{}); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}
}

func TestInitError(t *testing.T) {
	registry := codec.NewRegistry()
	err := registry.Init(func(registrar codec.Registrar) error {
		return errors.New("boom")
	})

	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Fatalf("expected the initializer's error, got %#v", err)
	}

	if !registry.Sealed() {
		t.Fatalf("expected the registry to be sealed")
	}
}

func TestEncodeAll(t *testing.T) {
	registry := codec.NewRegistry()
	values := []interface{}{1, "two", 3.0, true}

	encoded, err := registry.EncodeAll(values)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	decoded, err := registry.DecodeAll(encoded)

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if diff := cmp.Diff(values, decoded); diff != "" {
		t.Fatal(diff)
	}

	if _, err := registry.EncodeAll([]interface{}{1, point{}}); !errors.Is(err, codec.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %#v", err)
	}
}

func TestNilBigInt(t *testing.T) {
	registry := codec.NewRegistry()

	if _, err := registry.Encode((*big.Int)(nil)); !errors.Is(err, codec.ErrUnknownType) {
		t.Fatalf("expected ErrUnknownType, got %#v", err)
	}

	encoded, err := registry.Encode(big.NewInt(0))

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	decoded, err := registry.Decode(encoded)

	if err != nil || decoded.(*big.Int).Sign() != 0 {
		t.Fatalf("expected 0, <nil>, got %#v, %#v", decoded, err)
	}
}
