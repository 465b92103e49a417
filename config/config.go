// Package config loads unit configuration from YAML
package config

import (
	"errors"
	"fmt"
	"io/ioutil"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	// TransportInproc keeps every unit in one process
	TransportInproc = "inproc"
	// TransportGRPC lets units in other processes reach the owner
	TransportGRPC = "grpc"
	// DefaultProbeTimeout matches coordinator.DefaultProbeTimeout
	DefaultProbeTimeout = 100 * time.Millisecond
	// DefaultOpenTimeout bounds the wait for a store file
	// another owner still holds
	DefaultOpenTimeout = time.Second
)

// ErrInvalid is returned by Validate
var ErrInvalid = errors.New("config: invalid")

type Storage struct {
	// Plugin is the storage plugin's name, memory or bbolt
	Plugin string
	// Path is where a bbolt store keeps its file. Only the
	// owner opens it.
	Path string
	// OpenTimeout bounds how long opening the store waits for
	// its file lock. Zero leaves only the caller's deadline.
	OpenTimeout time.Duration
}

type fileStorage struct {
	Plugin      string `yaml:"plugin"`
	Path        string `yaml:"path"`
	OpenTimeout string `yaml:"open_timeout"`
}

type Registry struct {
	// Path is the bbolt file backing the shared registry.
	// Empty means a registry that lives in memory.
	Path string `yaml:"path"`
}

type Log struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Config configures one unit
type Config struct {
	Name         string
	ProbeTimeout time.Duration
	Inline       bool
	Transport    string
	Listen       string
	Storage      Storage
	Registry     Registry
	Log          Log
}

type fileConfig struct {
	Name         string      `yaml:"name"`
	ProbeTimeout string      `yaml:"probe_timeout"`
	Inline       bool        `yaml:"inline"`
	Transport    string      `yaml:"transport"`
	Listen       string      `yaml:"listen"`
	Storage      fileStorage `yaml:"storage"`
	Registry     Registry    `yaml:"registry"`
	Log          Log         `yaml:"log"`
}

// Default returns the configuration of an in-process unit
// backed by a memory store
func Default() Config {
	return Config{
		ProbeTimeout: DefaultProbeTimeout,
		Transport:    TransportInproc,
		Listen:       "127.0.0.1:0",
		Storage:      Storage{Plugin: "memory", OpenTimeout: DefaultOpenTimeout},
		Log:          Log{Level: "info"},
	}
}

// Parse reads YAML on top of Default. probe_timeout takes
// a duration such as 100ms. 0s disables the probe.
func Parse(data []byte) (Config, error) {
	config := Default()
	raw := fileConfig{
		Transport: config.Transport,
		Listen:    config.Listen,
		Storage:   fileStorage{Plugin: config.Storage.Plugin},
		Log:       config.Log,
	}

	if err := yaml.UnmarshalStrict(data, &raw); err != nil {
		return Config{}, fmt.Errorf("could not parse config: %w", err)
	}

	if raw.ProbeTimeout != "" {
		probeTimeout, err := time.ParseDuration(strings.TrimSpace(raw.ProbeTimeout))

		if err != nil {
			return Config{}, fmt.Errorf("could not parse probe_timeout: %w", err)
		}

		config.ProbeTimeout = probeTimeout
	}

	if raw.Storage.OpenTimeout != "" {
		openTimeout, err := time.ParseDuration(strings.TrimSpace(raw.Storage.OpenTimeout))

		if err != nil {
			return Config{}, fmt.Errorf("could not parse storage.open_timeout: %w", err)
		}

		config.Storage.OpenTimeout = openTimeout
	}

	config.Name = strings.TrimSpace(raw.Name)
	config.Inline = raw.Inline
	config.Transport = strings.TrimSpace(raw.Transport)
	config.Listen = strings.TrimSpace(raw.Listen)
	config.Storage.Plugin = strings.TrimSpace(raw.Storage.Plugin)
	config.Storage.Path = strings.TrimSpace(raw.Storage.Path)
	config.Registry = raw.Registry
	config.Log = raw.Log

	return config, nil
}

// Load reads and validates the config file at path
func Load(path string) (Config, error) {
	data, err := ioutil.ReadFile(path)

	if err != nil {
		return Config{}, fmt.Errorf("could not read config: %w", err)
	}

	config, err := Parse(data)

	if err != nil {
		return Config{}, err
	}

	if err := config.Validate(); err != nil {
		return Config{}, err
	}

	return config, nil
}

// Validate reports the first problem it finds
func (config Config) Validate() error {
	if config.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalid)
	}

	if config.ProbeTimeout < 0 {
		return fmt.Errorf("%w: probe_timeout must not be negative", ErrInvalid)
	}

	if config.Storage.OpenTimeout < 0 {
		return fmt.Errorf("%w: storage.open_timeout must not be negative", ErrInvalid)
	}

	switch config.Transport {
	case TransportInproc:
	case TransportGRPC:
		if config.Listen == "" {
			return fmt.Errorf("%w: listen is required for the grpc transport", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown transport %q", ErrInvalid, config.Transport)
	}

	switch config.Storage.Plugin {
	case "memory":
	case "bbolt":
		if config.Storage.Path == "" {
			return fmt.Errorf("%w: storage.path is required for bbolt", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: unknown storage plugin %q", ErrInvalid, config.Storage.Plugin)
	}

	return nil
}
