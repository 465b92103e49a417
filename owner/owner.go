package owner

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jrife/roost/boxes"
	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/funcs"
	"github.com/jrife/roost/registry"
	"github.com/jrife/roost/storage/kv"
	"github.com/jrife/roost/transport"
	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
)

var (
	// ErrInvalidConfig is returned by New for a config
	// missing a name, a store or a registry
	ErrInvalidConfig = errors.New("owner: invalid config")
	// ErrAlreadyListening is returned by a second call to Listen
	ErrAlreadyListening = errors.New("owner: already listening")
	// ErrStopped is returned by Listen after Stop
	ErrStopped = errors.New("owner: stopped")
)

// State is an owner's lifecycle state
type State int

const (
	Uninitialized State = iota
	Listening
	Stopped
)

func (state State) String() string {
	switch state {
	case Uninitialized:
		return "uninitialized"
	case Listening:
		return "listening"
	case Stopped:
		return "stopped"
	}

	return fmt.Sprintf("state(%d)", int(state))
}

// Config configures an owner
type Config struct {
	// Name is the well-known name the owner registers under
	Name string
	// Store holds the owner's collections
	Store kv.Store
	// Codecs encodes results for DecodeEncoded requests.
	// Defaults to a registry holding only the built-ins.
	Codecs *codec.Registry
	// Funcs resolves the predicates and key functions
	// commands refer to by name
	Funcs *funcs.Table
	// Registry is where the owner publishes its address
	Registry registry.Registry
	// Adapters registers the application's adapters. It runs
	// against Codecs and against the store's adapter table.
	Adapters codec.Initializer
	Logger   *zap.Logger
}

var _ transport.Handler = (*Owner)(nil)

// Owner holds the store and serves requests for it
type Owner struct {
	name     string
	codecs   *codec.Registry
	funcs    *funcs.Table
	registry registry.Registry
	cache    *boxes.Cache
	logger   *zap.Logger

	mu      sync.Mutex
	state   State
	port    transport.Port
	address string
	ready   chan struct{}
	done    chan struct{}
}

// New creates an owner in the Uninitialized state
func New(config Config) (*Owner, error) {
	if config.Name == "" || config.Store == nil || config.Registry == nil {
		return nil, ErrInvalidConfig
	}

	owner := &Owner{
		name:     config.Name,
		codecs:   config.Codecs,
		funcs:    config.Funcs,
		registry: config.Registry,
		logger:   config.Logger,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),
	}

	owner.logger = log.OrNop(owner.logger).With(zap.String("owner", config.Name))

	if owner.codecs == nil {
		owner.codecs = codec.NewRegistry()
	}

	if owner.funcs == nil {
		owner.funcs = funcs.NewTable()
	}

	if err := owner.codecs.Init(config.Adapters); err != nil {
		return nil, fmt.Errorf("could not register adapters: %w", err)
	}

	if err := config.Store.Adapters().Init(config.Adapters); err != nil {
		return nil, fmt.Errorf("could not register adapters with the store: %w", err)
	}

	owner.cache = boxes.NewCache(config.Store, owner.logger)

	return owner, nil
}

// Name returns the owner's well-known name
func (owner *Owner) Name() string {
	return owner.name
}

// Codecs returns the owner's codec registry
func (owner *Owner) Codecs() *codec.Registry {
	return owner.codecs
}

// Boxes returns the owner's collection cache
func (owner *Owner) Boxes() *boxes.Cache {
	return owner.cache
}

// State returns the owner's current state
func (owner *Owner) State() State {
	owner.mu.Lock()
	defer owner.mu.Unlock()

	return owner.state
}

// Address returns the address the owner registered or ""
// before it starts listening
func (owner *Owner) Address() string {
	owner.mu.Lock()
	defer owner.mu.Unlock()

	return owner.address
}

// Ready is closed once the owner has registered its address
func (owner *Owner) Ready() <-chan struct{} {
	return owner.ready
}

// Done is closed once the owner stops
func (owner *Owner) Done() <-chan struct{} {
	return owner.done
}

// Listen registers port's address under the owner's name and
// serves requests from port until the port closes, ctx ends or
// Stop is called. Each request runs in its own goroutine.
func (owner *Owner) Listen(ctx context.Context, port transport.Port) error {
	owner.mu.Lock()

	switch owner.state {
	case Listening:
		owner.mu.Unlock()

		return ErrAlreadyListening
	case Stopped:
		owner.mu.Unlock()

		return ErrStopped
	}

	if err := owner.registry.Register(owner.name, port.Address()); err != nil {
		owner.mu.Unlock()

		return fmt.Errorf("could not register %s: %w", owner.name, err)
	}

	owner.state = Listening
	owner.port = port
	owner.address = port.Address()
	close(owner.ready)
	owner.mu.Unlock()

	owner.logger.Info("listening", zap.String("address", port.Address()))

	for {
		select {
		case envelope := <-port.Inbound():
			go owner.serve(ctx, envelope)
		case <-port.Done():
			return nil
		case <-owner.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (owner *Owner) serve(ctx context.Context, envelope transport.Envelope) {
	ctx = log.WithFields(ctx, zap.String("request", envelope.Request.ID))

	// Reply channels are buffered by every transport
	envelope.Reply <- owner.Handle(ctx, envelope.Request)
}

// Stop unregisters the owner's address, if the registry still
// maps the owner's name to it, and closes the owner's port.
func (owner *Owner) Stop() error {
	owner.mu.Lock()
	defer owner.mu.Unlock()

	if owner.state == Stopped {
		return nil
	}

	owner.state = Stopped
	close(owner.done)

	var err error

	if owner.address != "" {
		if _, unregisterErr := registry.UnregisterIf(owner.registry, owner.name, owner.address); unregisterErr != nil {
			err = fmt.Errorf("could not unregister %s: %w", owner.name, unregisterErr)
		}
	}

	if owner.port != nil {
		if closeErr := owner.port.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}

	owner.logger.Info("stopped")

	return err
}
