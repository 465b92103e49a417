// Package inproc connects clients to owner ports
// inside one process through Go channels.
package inproc

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrife/roost/transport"
	"github.com/jrife/roost/utils/uuid"
)

// Scheme is the address scheme of in-process ports
const Scheme = "inproc"

var _ transport.Dialer = (*Exchange)(nil)

// Exchange is a table of in-process ports
type Exchange struct {
	mu    sync.RWMutex
	ports map[string]*Port
}

// NewExchange creates an empty exchange
func NewExchange() *Exchange {
	return &Exchange{ports: map[string]*Port{}}
}

// Listen opens a port with a fresh address
func (exchange *Exchange) Listen() *Port {
	port := &Port{
		exchange: exchange,
		address:  transport.FormatAddress(Scheme, uuid.MustUUID()),
		inbound:  make(chan transport.Envelope),
		done:     make(chan struct{}),
	}

	exchange.mu.Lock()
	defer exchange.mu.Unlock()

	exchange.ports[port.address] = port

	return port
}

// Dial returns a channel to the port listening on address
func (exchange *Exchange) Dial(ctx context.Context, address string) (transport.Channel, error) {
	exchange.mu.RLock()
	defer exchange.mu.RUnlock()

	port, ok := exchange.ports[address]

	if !ok {
		return nil, fmt.Errorf("%w: %s", transport.ErrNoSuchPort, address)
	}

	return &Channel{port: port}, nil
}

func (exchange *Exchange) remove(address string) {
	exchange.mu.Lock()
	defer exchange.mu.Unlock()

	delete(exchange.ports, address)
}

var _ transport.Port = (*Port)(nil)

// Port is an owner's in-process inbound side. Nothing is
// buffered: a send completes only once the owner takes
// the envelope.
type Port struct {
	exchange  *Exchange
	address   string
	inbound   chan transport.Envelope
	done      chan struct{}
	closeOnce sync.Once
}

func (port *Port) Address() string {
	return port.address
}

func (port *Port) Inbound() <-chan transport.Envelope {
	return port.inbound
}

func (port *Port) Done() <-chan struct{} {
	return port.done
}

func (port *Port) Close() error {
	port.closeOnce.Do(func() {
		port.exchange.remove(port.address)
		close(port.done)
	})

	return nil
}

var _ transport.Channel = (*Channel)(nil)

// Channel sends requests to one Port
type Channel struct {
	port *Port
}

// Send hands the request to the port then waits for the response.
// If ctx ends first the reply channel is left behind. It is
// buffered so that the owner never blocks on it.
func (channel *Channel) Send(ctx context.Context, request transport.Request) (transport.Response, error) {
	reply := make(chan transport.Response, 1)

	select {
	case <-channel.port.done:
		return transport.Response{}, transport.ErrPortClosed
	default:
	}

	select {
	case channel.port.inbound <- transport.Envelope{Request: request, Reply: reply}:
	case <-channel.port.done:
		return transport.Response{}, transport.ErrPortClosed
	case <-ctx.Done():
		return transport.Response{}, ctx.Err()
	}

	select {
	case response := <-reply:
		return response, nil
	case <-channel.port.done:
		return transport.Response{}, transport.ErrPortClosed
	case <-ctx.Done():
		return transport.Response{}, ctx.Err()
	}
}

func (channel *Channel) Close() error {
	return nil
}
