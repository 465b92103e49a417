// Package unit wires an execution unit together: a coordinator
// for the configured name, proxies for the boxes the unit uses
// and the launcher that starts an owner when an election needs
// one. Units share an Environment.
package unit

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrife/roost/client"
	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/config"
	"github.com/jrife/roost/coordinator"
	"github.com/jrife/roost/owner"
	"go.uber.org/zap"
)

// Unit is one participant sharing the store behind a name
type Unit struct {
	env         *Environment
	config      config.Config
	coordinator *coordinator.Coordinator
	logger      *zap.Logger

	mu     sync.Mutex
	inline *launched
}

// New creates a unit. The first request it routes runs
// discovery and, if no owner answers, an election.
func New(env *Environment, cfg config.Config) (*Unit, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	unit := &Unit{
		env:    env,
		config: cfg,
		logger: env.logger.With(zap.String("name", cfg.Name)),
	}

	c, err := coordinator.New(coordinator.Config{
		Name:         cfg.Name,
		ProbeTimeout: cfg.ProbeTimeout,
		Inline:       cfg.Inline,
		Registry:     env.registry,
		Dialer:       env.dialers,
		Launch:       unit.launch,
		Logger:       env.logger,
	})

	if err != nil {
		return nil, fmt.Errorf("could not create coordinator: %w", err)
	}

	unit.coordinator = c

	return unit, nil
}

func (unit *Unit) launch(ctx context.Context, inline bool) (*owner.Owner, error) {
	l, err := unit.env.launch(ctx, unit.config)

	if err != nil {
		return nil, err
	}

	if inline {
		unit.mu.Lock()
		unit.inline = l
		unit.mu.Unlock()
	}

	return l.owner, nil
}

// Box returns a proxy for the owner's box called name
func (unit *Unit) Box(name string, tag codec.Tag) *client.Box {
	return client.New(name, tag, unit.coordinator, unit.env.codecs)
}

// IsOwner reports whether this unit became the owner
func (unit *Unit) IsOwner() bool {
	return unit.coordinator.IsOwner()
}

func (unit *Unit) Coordinator() *coordinator.Coordinator {
	return unit.coordinator
}

// Close releases the unit's channel and stops the owner
// it runs inline, if any. Dedicated owners keep running
// until the environment closes.
func (unit *Unit) Close() error {
	unit.coordinator.Close()

	unit.mu.Lock()
	l := unit.inline
	unit.inline = nil
	unit.mu.Unlock()

	if l == nil {
		return nil
	}

	unit.logger.Info("stopping inline owner")

	return l.stop()
}
