package unit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/config"
	"github.com/jrife/roost/funcs"
	"github.com/jrife/roost/owner"
	"github.com/jrife/roost/registry"
	"github.com/jrife/roost/storage/kv"
	"github.com/jrife/roost/storage/kv/plugins"
	"github.com/jrife/roost/storage/kv/plugins/bbolt"
	"github.com/jrife/roost/transport"
	grpctransport "github.com/jrife/roost/transport/grpc"
	"github.com/jrife/roost/transport/inproc"
	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned when launching an owner
	// in an environment that was closed
	ErrClosed = errors.New("unit: environment closed")
	// ErrUnknownPlugin is returned for a storage plugin
	// the plugin manager doesn't know
	ErrUnknownPlugin = errors.New("unit: unknown storage plugin")
)

// Option configures an Environment
type Option func(env *Environment)

// WithRegistry replaces the default in-memory registry
func WithRegistry(r registry.Registry) Option {
	return func(env *Environment) {
		env.registry = r
	}
}

// WithAdapters sets the application's adapter initializer
func WithAdapters(adapters codec.Initializer) Option {
	return func(env *Environment) {
		env.adapters = adapters
	}
}

// WithFuncs sets the table predicates and key
// functions are resolved from
func WithFuncs(table *funcs.Table) Option {
	return func(env *Environment) {
		env.funcs = table
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(env *Environment) {
		env.logger = logger
	}
}

// Environment is the state units in one process share. Tests
// build as many independent environments as they need.
type Environment struct {
	registry registry.Registry
	exchange *inproc.Exchange
	codecs   *codec.Registry
	adapters codec.Initializer
	funcs    *funcs.Table
	logger   *zap.Logger
	plugins  *plugins.KVPluginManager
	dialers  transport.Dialers

	mu       sync.Mutex
	launched []*launched
	closed   bool
}

// NewEnvironment creates an environment and seals its
// codec registry with the application's adapters
func NewEnvironment(options ...Option) (*Environment, error) {
	env := &Environment{
		exchange: inproc.NewExchange(),
		codecs:   codec.NewRegistry(),
		plugins:  plugins.NewKVPluginManager(),
	}

	for _, option := range options {
		option(env)
	}

	if env.registry == nil {
		env.registry = registry.NewMemory()
	}

	if env.funcs == nil {
		env.funcs = funcs.NewTable()
	}

	env.logger = log.OrNop(env.logger)

	if err := env.codecs.Init(env.adapters); err != nil {
		return nil, fmt.Errorf("could not register adapters: %w", err)
	}

	env.dialers = transport.Dialers{
		inproc.Scheme:        env.exchange,
		grpctransport.Scheme: &grpctransport.Dialer{Codecs: env.codecs},
	}

	return env, nil
}

// OpenRegistry returns the registry a config asks for
func OpenRegistry(cfg config.Config) registry.Registry {
	if cfg.Registry.Path == "" {
		return registry.NewMemory()
	}

	return registry.NewFile(cfg.Registry.Path, registry.DefaultLockTimeout)
}

func (env *Environment) Registry() registry.Registry {
	return env.registry
}

func (env *Environment) Exchange() *inproc.Exchange {
	return env.exchange
}

func (env *Environment) Codecs() *codec.Registry {
	return env.codecs
}

func (env *Environment) Funcs() *funcs.Table {
	return env.funcs
}

// Dialer dials any address an owner in this
// environment could have published
func (env *Environment) Dialer() transport.Dialer {
	return env.dialers
}

// launched is an owner together with the store and port it holds
type launched struct {
	owner    *owner.Owner
	store    kv.Store
	stopOnce sync.Once
	err      error
}

func (l *launched) stop() error {
	l.stopOnce.Do(func() {
		l.err = l.owner.Stop()

		if err := l.store.Close(); err != nil && l.err == nil {
			l.err = err
		}
	})

	return l.err
}

// openStore opens the store cfg names. A bbolt open waits for
// the file lock no longer than storage.open_timeout or the time
// left before ctx's deadline, whichever is shorter. Once ctx is
// done the open is abandoned and a store it opens later is closed.
func (env *Environment) openStore(ctx context.Context, cfg config.Config) (kv.Store, error) {
	plugin := env.plugins.Plugin(cfg.Storage.Plugin)

	if plugin == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlugin, cfg.Storage.Plugin)
	}

	options := kv.PluginOptions{}

	if plugin.Name() == bbolt.DriverName {
		options["path"] = cfg.Storage.Path
		options["timeout"] = openTimeout(ctx, cfg.Storage.OpenTimeout)
	}

	type result struct {
		store kv.Store
		err   error
	}

	opened := make(chan result, 1)

	go func() {
		store, err := plugin.NewStore(options)
		opened <- result{store: store, err: err}
	}()

	select {
	case r := <-opened:
		return r.store, r.err
	case <-ctx.Done():
		go func() {
			if r := <-opened; r.err == nil {
				r.store.Close()
			}
		}()

		return nil, ctx.Err()
	}
}

// openTimeout returns the shorter of timeout and the time left
// before ctx's deadline. Zero means wait forever.
func openTimeout(ctx context.Context, timeout time.Duration) time.Duration {
	deadline, ok := ctx.Deadline()

	if !ok {
		return timeout
	}

	remaining := time.Until(deadline)

	if remaining <= 0 {
		remaining = time.Nanosecond
	}

	if timeout <= 0 || remaining < timeout {
		return remaining
	}

	return timeout
}

func (env *Environment) listen(cfg config.Config, logger *zap.Logger) (transport.Port, error) {
	if cfg.Transport != config.TransportGRPC {
		return env.exchange.Listen(), nil
	}

	listener, err := net.Listen("tcp", cfg.Listen)

	if err != nil {
		return nil, fmt.Errorf("could not listen on %s: %w", cfg.Listen, err)
	}

	frontend := grpctransport.NewFrontend(listener, env.codecs, logger)

	go func() {
		if err := frontend.Serve(); err != nil {
			logger.Error("gRPC frontend stopped", zap.Error(err))
		}
	}()

	return frontend, nil
}

// launch starts an owner for cfg.Name and waits until it
// has registered its address
func (env *Environment) launch(ctx context.Context, cfg config.Config) (*launched, error) {
	env.mu.Lock()
	closed := env.closed
	env.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}

	logger := env.logger.With(zap.String("name", cfg.Name))
	store, err := env.openStore(ctx, cfg)

	if err != nil {
		return nil, fmt.Errorf("could not open store: %w", err)
	}

	o, err := owner.New(owner.Config{
		Name:     cfg.Name,
		Store:    store,
		Codecs:   env.codecs,
		Funcs:    env.funcs,
		Registry: env.registry,
		Adapters: env.adapters,
		Logger:   env.logger,
	})

	if err != nil {
		store.Close()

		return nil, err
	}

	port, err := env.listen(cfg, logger)

	if err != nil {
		store.Close()

		return nil, err
	}

	listenErr := make(chan error, 1)

	go func() {
		listenErr <- o.Listen(context.Background(), port)
	}()

	l := &launched{owner: o, store: store}

	select {
	case <-o.Ready():
	case err := <-listenErr:
		port.Close()
		store.Close()

		return nil, err
	case <-ctx.Done():
		l.stop()
		port.Close()

		return nil, ctx.Err()
	}

	env.mu.Lock()
	defer env.mu.Unlock()

	if env.closed {
		l.stop()

		return nil, ErrClosed
	}

	env.launched = append(env.launched, l)

	return l, nil
}

// Close stops every owner launched in this environment
// and closes their stores
func (env *Environment) Close() error {
	env.mu.Lock()
	env.closed = true
	launched := env.launched
	env.launched = nil
	env.mu.Unlock()

	var err error

	for _, l := range launched {
		if stopErr := l.stop(); stopErr != nil && err == nil {
			err = stopErr
		}
	}

	return err
}
