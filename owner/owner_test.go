package owner_test

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jrife/roost/boxes"
	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/funcs"
	"github.com/jrife/roost/owner"
	"github.com/jrife/roost/registry"
	"github.com/jrife/roost/storage/kv/plugins/memory"
	"github.com/jrife/roost/transport"
	"github.com/jrife/roost/transport/inproc"
	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type point struct {
	X int
	Y int
}

const tagPoint = codec.FirstApplicationTag

func adapters(registrar codec.Registrar) error {
	return registrar.Register(codec.Adapter{
		Tag:  tagPoint,
		Type: reflect.TypeOf(point{}),
		Encode: func(value interface{}) ([]byte, error) {
			return json.Marshal(value)
		},
		Decode: func(data []byte) (interface{}, error) {
			var p point

			err := json.Unmarshal(data, &p)

			return p, err
		},
	}, false)
}

func newOwner(t *testing.T, r registry.Registry) (*owner.Owner, *memory.Store) {
	t.Helper()

	table := funcs.NewTable()
	table.RegisterPredicate("even", func(value interface{}) bool { return value.(int)%2 == 0 })
	table.RegisterPredicate("explode", func(value interface{}) bool { panic("boom") })
	table.RegisterKeyFunc("self", func(value interface{}) interface{} { return value })

	store := memory.New()
	o, err := owner.New(owner.Config{
		Name:     "test",
		Store:    store,
		Funcs:    table,
		Registry: r,
		Adapters: adapters,
		Logger:   zaptest.NewLogger(t),
	})

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	return o, store
}

func TestNewInvalid(t *testing.T) {
	if _, err := owner.New(owner.Config{Name: "test"}); !errors.Is(err, owner.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %#v", err)
	}
}

func TestAdaptersRegisteredTwice(t *testing.T) {
	o, store := newOwner(t, registry.NewMemory())

	if tag, err := o.Codecs().TagOf(point{}); err != nil || tag != tagPoint {
		t.Fatalf("expected the owner's codecs to know point, got %d, %#v", tag, err)
	}

	if tag, err := store.Adapters().TagOf(point{}); err != nil || tag != tagPoint {
		t.Fatalf("expected the store's adapters to know point, got %d, %#v", tag, err)
	}

	if !o.Codecs().Sealed() || !store.Adapters().Sealed() {
		t.Fatalf("expected both registries to be sealed")
	}
}

func TestHandle(t *testing.T) {
	o, _ := newOwner(t, registry.NewMemory())
	ctx := context.Background()
	ints := transport.Target{Box: "ints", Tag: codec.TagInt}
	points := transport.Target{Box: "points", Tag: tagPoint}

	mustEncode := func(value interface{}) codec.EncodedValue {
		encoded, err := o.Codecs().Encode(value)

		if err != nil {
			t.Fatalf("expected err to be nil, got %#v", err)
		}

		return encoded
	}

	steps := []struct {
		name     string
		request  transport.Request
		expected transport.Response
	}{
		{
			name:     "ping",
			request:  transport.Request{Mode: transport.DecodePrimitive, Command: transport.Ping{}},
			expected: transport.Response{Value: true},
		},
		{
			name:     "add-all",
			request:  transport.Request{Command: transport.AddAll{Target: ints, Values: []interface{}{1, 2, 3, 4}}},
			expected: transport.Response{Value: []interface{}{0, 1, 2, 3}},
		},
		{
			name:     "get-all-where",
			request:  transport.Request{Mode: transport.DecodeEncoded, Command: transport.GetAllWhere{Target: ints, Predicate: "even"}},
			expected: transport.Response{Value: []codec.EncodedValue{mustEncode(2), mustEncode(4)}},
		},
		{
			name:     "count",
			request:  transport.Request{Mode: transport.DecodePrimitive, Command: transport.Count{Target: ints}},
			expected: transport.Response{Value: 4},
		},
		{
			name:     "put-application-type",
			request:  transport.Request{Command: transport.Put{Target: points, Key: "p", Value: point{X: 1, Y: 2}}},
			expected: transport.Response{},
		},
		{
			name:     "get-application-type",
			request:  transport.Request{Mode: transport.DecodeEncoded, Command: transport.Get{Target: points, Key: "p"}},
			expected: transport.Response{Value: mustEncode(point{X: 1, Y: 2})},
		},
		{
			name:     "get-raw",
			request:  transport.Request{Command: transport.Get{Target: points, Key: "p"}},
			expected: transport.Response{Value: point{X: 1, Y: 2}},
		},
		{
			name:     "get-missing",
			request:  transport.Request{Mode: transport.DecodeEncoded, Command: transport.Get{Target: points, Key: "q"}},
			expected: transport.Response{},
		},
		{
			name:     "toggle-on",
			request:  transport.Request{Mode: transport.DecodePrimitive, Command: transport.Toggle{Target: ints, Key: "t", Value: 1}},
			expected: transport.Response{Value: true},
		},
		{
			name:     "toggle-off",
			request:  transport.Request{Mode: transport.DecodePrimitive, Command: transport.Toggle{Target: ints, Key: "t", Value: 1}},
			expected: transport.Response{Value: false},
		},
		{
			name:     "put-all",
			request:  transport.Request{Command: transport.PutAll{Target: ints, Values: []interface{}{10, 11}, KeyFunc: "self"}},
			expected: transport.Response{},
		},
		{
			name:     "exists",
			request:  transport.Request{Mode: transport.DecodePrimitive, Command: transport.Exists{Target: ints, Key: 11}},
			expected: transport.Response{Value: true},
		},
		{
			name:     "remove",
			request:  transport.Request{Command: transport.Remove{Target: ints, Key: 11}},
			expected: transport.Response{},
		},
		{
			name:     "get-all",
			request:  transport.Request{Mode: transport.DecodeEncoded, Command: transport.GetAll{Target: ints}},
			expected: transport.Response{Value: []codec.EncodedValue{mustEncode(1), mustEncode(2), mustEncode(3), mustEncode(4), mustEncode(10)}},
		},
		{
			name:     "clear",
			request:  transport.Request{Command: transport.Clear{Target: ints}},
			expected: transport.Response{},
		},
		{
			name:     "count-after-clear",
			request:  transport.Request{Mode: transport.DecodePrimitive, Command: transport.Count{Target: ints}},
			expected: transport.Response{Value: 0},
		},
		{
			name:     "unknown-command",
			request:  transport.Request{Mode: transport.DecodeEncoded, Command: transport.Unknown{Code: 999}},
			expected: transport.Response{},
		},
	}

	for _, step := range steps {
		response := o.Handle(ctx, step.request)

		if response.Err != nil {
			t.Fatalf("%s: expected err to be nil, got %#v", step.name, response.Err)
		}

		if diff := cmp.Diff(step.expected, response); diff != "" {
			t.Fatalf("%s: %s", step.name, diff)
		}
	}
}

func TestHandleErrors(t *testing.T) {
	o, _ := newOwner(t, registry.NewMemory())
	ctx := context.Background()
	ints := transport.Target{Box: "ints", Tag: codec.TagInt}

	testCases := map[string]struct {
		request transport.Request
		err     error
	}{
		"unknown-predicate": {
			request: transport.Request{Command: transport.GetAllWhere{Target: ints, Predicate: "odd"}},
			err:     funcs.ErrUnknownFunc,
		},
		"unknown-key-func": {
			request: transport.Request{Command: transport.PutAll{Target: ints, Values: []interface{}{1}, KeyFunc: "nope"}},
			err:     funcs.ErrUnknownFunc,
		},
		"open-failure": {
			request: transport.Request{Command: transport.Count{Target: transport.Target{Tag: codec.TagInt}}},
			err:     boxes.ErrOpen,
		},
	}

	for name, testCase := range testCases {
		testCase := testCase

		t.Run(name, func(t *testing.T) {
			response := o.Handle(ctx, testCase.request)

			if !errors.Is(response.Err, testCase.err) {
				t.Fatalf("expected %#v, got %#v", testCase.err, response.Err)
			}
		})
	}

	// A panicking predicate fails the request, not the owner
	if _, err := o.Boxes().Open(ctx, "ints", codec.TagInt); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	o.Handle(ctx, transport.Request{Command: transport.AddAll{Target: ints, Values: []interface{}{1}}})

	if response := o.Handle(ctx, transport.Request{Command: transport.GetAllWhere{Target: ints, Predicate: "explode"}}); response.Err == nil {
		t.Fatalf("expected an error from a panicking predicate")
	}
}

func TestListen(t *testing.T) {
	r := registry.NewMemory()
	o, _ := newOwner(t, r)
	exchange := inproc.NewExchange()
	port := exchange.Listen()

	if o.State() != owner.Uninitialized {
		t.Fatalf("expected %s, got %s", owner.Uninitialized, o.State())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	listenErr := make(chan error, 1)

	go func() {
		listenErr <- o.Listen(ctx, port)
	}()

	select {
	case <-o.Ready():
	case <-time.After(time.Second):
		t.Fatalf("owner never became ready")
	}

	if address, ok, err := r.Lookup("test"); err != nil || !ok || address != port.Address() {
		t.Fatalf("expected %s, true, <nil>, got %s, %t, %#v", port.Address(), address, ok, err)
	}

	if o.State() != owner.Listening || o.Address() != port.Address() {
		t.Fatalf("expected listening on %s, got %s on %s", port.Address(), o.State(), o.Address())
	}

	if err := o.Listen(ctx, exchange.Listen()); !errors.Is(err, owner.ErrAlreadyListening) {
		t.Fatalf("expected ErrAlreadyListening, got %#v", err)
	}

	channel, err := exchange.Dial(ctx, port.Address())

	if err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	response, err := channel.Send(ctx, transport.Request{Mode: transport.DecodePrimitive, Command: transport.Ping{}})

	if err != nil || response.Value != true {
		t.Fatalf("expected true, <nil>, got %#v, %#v", response.Value, err)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := <-listenErr; err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if _, ok, _ := r.Lookup("test"); ok {
		t.Fatalf("expected the owner to unregister itself")
	}

	if o.State() != owner.Stopped {
		t.Fatalf("expected %s, got %s", owner.Stopped, o.State())
	}

	if err := o.Listen(ctx, exchange.Listen()); !errors.Is(err, owner.ErrStopped) {
		t.Fatalf("expected ErrStopped, got %#v", err)
	}
}

func TestStopKeepsSuccessor(t *testing.T) {
	r := registry.NewMemory()
	o, _ := newOwner(t, r)
	exchange := inproc.NewExchange()

	go o.Listen(context.Background(), exchange.Listen())
	<-o.Ready()

	// Another owner replaced this one in the registry
	if err := r.Register("test", "inproc://successor"); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if err := o.Stop(); err != nil {
		t.Fatalf("expected err to be nil, got %#v", err)
	}

	if address, ok, _ := r.Lookup("test"); !ok || address != "inproc://successor" {
		t.Fatalf("expected the successor to stay registered, got %s, %t", address, ok)
	}
}

func TestHandleUsesContextLogger(t *testing.T) {
	o, _ := newOwner(t, registry.NewMemory())
	core, logs := observer.New(zap.DebugLevel)
	ctx := log.WithLogger(context.Background(), zap.New(core))
	ctx = log.WithFields(ctx, zap.String("request", "r1"))

	if response := o.Handle(ctx, transport.Request{Mode: transport.DecodePrimitive, Command: transport.Ping{}}); response.Value != true {
		t.Fatalf("expected true, got %#v", response.Value)
	}

	entries := logs.FilterMessage("start Handle()").All()

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry in the context's logger, got %d", len(entries))
	}

	if diff := cmp.Diff("r1", entries[0].ContextMap()["request"]); diff != "" {
		t.Fatal(diff)
	}

	if diff := cmp.Diff("ping", entries[0].ContextMap()["operation"]); diff != "" {
		t.Fatal(diff)
	}
}
