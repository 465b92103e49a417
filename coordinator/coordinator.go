// Package coordinator finds the owner for a well-known name or
// elects one. Every unit runs a coordinator. It looks the name up
// in the shared registry, probes whatever it finds and, if nothing
// answers in time, evicts the entry and launches a new owner.
//
// Two units that both find no live owner may both launch one. The
// later registration wins and clients of the earlier owner keep
// using it until their channel fails. The probe narrows this
// window but does not close it.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jrife/roost/owner"
	"github.com/jrife/roost/registry"
	"github.com/jrife/roost/transport"
	"github.com/jrife/roost/utils/log"
	"github.com/jrife/roost/utils/uuid"
	"go.uber.org/zap"
)

// DefaultProbeTimeout is how long a probe waits by default
const DefaultProbeTimeout = 100 * time.Millisecond

// ErrInvalidConfig is returned by New for a config missing
// a name, a registry, a dialer or a launcher
var ErrInvalidConfig = errors.New("coordinator: invalid config")

// Launcher starts a new owner and returns it once it has
// registered its address. inline means the owner belongs to
// the calling unit rather than to a dedicated context.
type Launcher func(ctx context.Context, inline bool) (*owner.Owner, error)

// Config configures a coordinator
type Config struct {
	// Name is the well-known name owners register under
	Name string
	// ProbeTimeout bounds the liveness probe. Zero or less
	// skips the probe and trusts any registered address.
	ProbeTimeout time.Duration
	// Inline lets this unit become the owner itself instead
	// of launching a dedicated one
	Inline   bool
	Registry registry.Registry
	Dialer   transport.Dialer
	Launch   Launcher
	Logger   *zap.Logger
}

// Coordinator resolves the channel requests for one name travel on
type Coordinator struct {
	config Config
	logger *zap.Logger

	mu      sync.Mutex
	channel transport.Channel
	owner   *owner.Owner
}

// New creates a coordinator. Nothing is looked up
// until the first call to Channel or Route.
func New(config Config) (*Coordinator, error) {
	if config.Name == "" || config.Registry == nil || config.Dialer == nil || config.Launch == nil {
		return nil, ErrInvalidConfig
	}

	coordinator := &Coordinator{config: config, logger: config.Logger}

	coordinator.logger = log.OrNop(coordinator.logger).With(zap.String("name", config.Name))

	return coordinator, nil
}

// IsOwner reports whether this unit runs the owner
// and the owner hasn't stopped
func (coordinator *Coordinator) IsOwner() bool {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	return coordinator.owner != nil && coordinator.owner.State() != owner.Stopped
}

// Owner returns the owner this unit runs inline, or nil
func (coordinator *Coordinator) Owner() *owner.Owner {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	return coordinator.owner
}

// Channel returns the channel to the current owner, running
// discovery and, if needed, an election first. The result is
// cached until Reset.
func (coordinator *Coordinator) Channel(ctx context.Context) (transport.Channel, error) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	// An inline owner stopped by its unit or environment
	// no longer serves anyone, this unit included
	if coordinator.owner != nil && coordinator.owner.State() == owner.Stopped {
		coordinator.logger.Info("inline owner stopped", zap.String("address", coordinator.owner.Address()))
		coordinator.owner = nil

		if coordinator.channel != nil {
			coordinator.channel.Close()
			coordinator.channel = nil
		}
	}

	if coordinator.channel != nil {
		return coordinator.channel, nil
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	channel, err := coordinator.resolve(ctx)

	if err != nil {
		return nil, err
	}

	coordinator.channel = channel

	return channel, nil
}

func (coordinator *Coordinator) resolve(ctx context.Context) (transport.Channel, error) {
	// An owner never looks itself up
	if coordinator.owner != nil {
		return transport.Local(coordinator.owner), nil
	}

	address, ok, err := coordinator.config.Registry.Lookup(coordinator.config.Name)

	if err != nil {
		return nil, fmt.Errorf("could not look up %s: %w", coordinator.config.Name, err)
	}

	if ok {
		channel, err := coordinator.adopt(ctx, address)

		if err != nil {
			return nil, err
		}

		if channel != nil {
			return channel, nil
		}
	}

	return coordinator.elect(ctx)
}

// adopt returns a channel to address if the owner there answers
// a probe. Otherwise it evicts address and returns nil.
func (coordinator *Coordinator) adopt(ctx context.Context, address string) (transport.Channel, error) {
	logger := coordinator.logger.With(zap.String("address", address))
	channel, err := coordinator.config.Dialer.Dial(ctx, address)

	if err == nil {
		if err = coordinator.probe(ctx, channel); err == nil {
			logger.Debug("discovered owner")

			return channel, nil
		}

		channel.Close()
	}

	// A caller that gave up says nothing about the owner
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	logger.Info("evicting stale owner", zap.Error(err))

	if _, err := registry.UnregisterIf(coordinator.config.Registry, coordinator.config.Name, address); err != nil {
		return nil, fmt.Errorf("could not evict %s: %w", address, err)
	}

	return nil, nil
}

func (coordinator *Coordinator) probe(ctx context.Context, channel transport.Channel) error {
	if coordinator.config.ProbeTimeout <= 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, coordinator.config.ProbeTimeout)
	defer cancel()

	response, err := channel.Send(ctx, transport.Request{
		ID:      uuid.MustUUID(),
		Mode:    transport.DecodePrimitive,
		Command: transport.Ping{},
	})

	if err != nil {
		return err
	}

	if response.Err != nil {
		return response.Err
	}

	if alive, _ := response.Value.(bool); !alive {
		return fmt.Errorf("unexpected probe response %#v", response.Value)
	}

	return nil
}

func (coordinator *Coordinator) elect(ctx context.Context) (transport.Channel, error) {
	o, err := coordinator.config.Launch(ctx, coordinator.config.Inline)

	if err != nil {
		return nil, fmt.Errorf("could not launch an owner for %s: %w", coordinator.config.Name, err)
	}

	coordinator.logger.Info("elected owner", zap.String("address", o.Address()), zap.Bool("inline", coordinator.config.Inline))

	if coordinator.config.Inline {
		coordinator.owner = o

		return transport.Local(o), nil
	}

	return coordinator.config.Dialer.Dial(ctx, o.Address())
}

// Route sends request to the owner. A transport failure resets
// the cached channel so that the next request runs discovery
// again. The failed request is not retried.
func (coordinator *Coordinator) Route(ctx context.Context, request transport.Request) (transport.Response, error) {
	if request.ID == "" {
		request.ID = uuid.MustUUID()
	}

	channel, err := coordinator.Channel(ctx)

	if err != nil {
		return transport.Response{}, err
	}

	response, err := channel.Send(ctx, request)

	if errors.Is(err, transport.ErrUnavailable) {
		coordinator.logger.Info("owner unavailable", zap.Error(err))
		coordinator.reset(channel)
	}

	return response, err
}

// Reset forgets the cached channel
func (coordinator *Coordinator) Reset() {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.channel != nil {
		coordinator.channel.Close()
		coordinator.channel = nil
	}
}

func (coordinator *Coordinator) reset(channel transport.Channel) {
	coordinator.mu.Lock()
	defer coordinator.mu.Unlock()

	if coordinator.channel == channel {
		coordinator.channel.Close()
		coordinator.channel = nil
	}
}

// Close releases the cached channel. An inline owner
// belongs to the unit and is not stopped.
func (coordinator *Coordinator) Close() error {
	coordinator.Reset()

	return nil
}
