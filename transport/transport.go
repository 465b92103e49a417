package transport

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnavailable wraps any failure to reach the other side.
	// A coordinator that sees it discards its cached channel.
	ErrUnavailable = errors.New("transport: unavailable")
	// ErrNoSuchPort is returned when dialing an address
	// nothing is listening on
	ErrNoSuchPort = fmt.Errorf("%w: no such port", ErrUnavailable)
	// ErrPortClosed is returned when sending to a port
	// that closed
	ErrPortClosed = fmt.Errorf("%w: port closed", ErrUnavailable)
	// ErrInvalidAddress is returned for an address without a scheme
	ErrInvalidAddress = errors.New("transport: invalid address")
	// ErrUnsupportedScheme is returned when no dialer handles
	// an address's scheme
	ErrUnsupportedScheme = errors.New("transport: unsupported scheme")
)

// DecodeMode tells the owner how to shape a result
// and the client how to read it
type DecodeMode uint32

const (
	// DecodeRaw returns the result unmodified
	DecodeRaw DecodeMode = iota
	// DecodeEncoded has the owner encode the result, element
	// by element for sequences, and the client decode it
	DecodeEncoded
	// DecodePrimitive returns a bool or int without the codec
	DecodePrimitive
)

func (mode DecodeMode) String() string {
	switch mode {
	case DecodeRaw:
		return "raw"
	case DecodeEncoded:
		return "encoded"
	case DecodePrimitive:
		return "primitive"
	}

	return fmt.Sprintf("mode(%d)", uint32(mode))
}

// Request is a command bound for an owner
type Request struct {
	ID      string
	Mode    DecodeMode
	Command Command
}

// Response is an owner's answer to a Request
type Response struct {
	Value interface{}
	Err   error
}

// RemoteError is an error that an owner reported
// across a process boundary
type RemoteError struct {
	Message string
}

func (err *RemoteError) Error() string {
	return err.Message
}

// Envelope pairs an inbound request with the
// channel its response must be sent on
type Envelope struct {
	Request Request
	Reply   chan<- Response
}

// Handler executes requests
type Handler interface {
	Handle(ctx context.Context, request Request) Response
}

// HandlerFunc adapts a function to Handler
type HandlerFunc func(ctx context.Context, request Request) Response

func (fn HandlerFunc) Handle(ctx context.Context, request Request) Response {
	return fn(ctx, request)
}

// Port is an owner's inbound side
type Port interface {
	// Address is the address clients dial to reach this port
	Address() string
	// Inbound delivers requests. Each envelope must receive
	// exactly one response.
	Inbound() <-chan Envelope
	// Done is closed once the port closes
	Done() <-chan struct{}
	// Close stops accepting requests
	Close() error
}

// Channel is a client's outbound side
type Channel interface {
	// Send delivers the request and waits for its response
	// or for ctx to end. A failure to reach the owner is
	// reported as an error wrapping ErrUnavailable.
	Send(ctx context.Context, request Request) (Response, error)
	Close() error
}

// Dialer opens channels to addresses
type Dialer interface {
	Dial(ctx context.Context, address string) (Channel, error)
}

// Dialers picks a dialer by address scheme
type Dialers map[string]Dialer

func (dialers Dialers) Dial(ctx context.Context, address string) (Channel, error) {
	scheme, _, err := ParseAddress(address)

	if err != nil {
		return nil, err
	}

	dialer, ok := dialers[scheme]

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, scheme)
	}

	return dialer.Dial(ctx, address)
}

// ParseAddress splits scheme://location
func ParseAddress(address string) (string, string, error) {
	parts := strings.SplitN(address, "://", 2)

	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}

	return parts[0], parts[1], nil
}

// FormatAddress is the inverse of ParseAddress
func FormatAddress(scheme string, location string) string {
	return scheme + "://" + location
}

// Local returns a channel that calls handler directly
// without crossing any boundary
func Local(handler Handler) Channel {
	return &localChannel{handler: handler}
}

type localChannel struct {
	handler Handler
}

func (channel *localChannel) Send(ctx context.Context, request Request) (Response, error) {
	return channel.handler.Handle(ctx, request), nil
}

func (channel *localChannel) Close() error {
	return nil
}
