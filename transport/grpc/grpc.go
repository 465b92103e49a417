// Package grpc carries owner requests between processes over gRPC.
// The service has one unary method whose messages are frames of
// bytes produced by transport.MarshalRequest and MarshalResponse,
// exchanged with the "roost" content subtype.
package grpc

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/jrife/roost/codec"
	"github.com/jrife/roost/transport"
	"github.com/jrife/roost/utils/log"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/encoding"
	"google.golang.org/grpc/status"
)

const (
	// Scheme is the address scheme of gRPC ports
	Scheme = "grpc"
	// ContentSubtype selects frameCodec on both ends
	ContentSubtype = "roost"

	dispatchMethod = "/roost.Owner/Dispatch"
)

func init() {
	encoding.RegisterCodec(frameCodec{})
}

type frame struct {
	data []byte
}

type frameCodec struct{}

func (frameCodec) Marshal(v interface{}) ([]byte, error) {
	f, ok := v.(*frame)

	if !ok {
		return nil, fmt.Errorf("roost codec cannot marshal %T", v)
	}

	return f.data, nil
}

func (frameCodec) Unmarshal(data []byte, v interface{}) error {
	f, ok := v.(*frame)

	if !ok {
		return fmt.Errorf("roost codec cannot unmarshal into %T", v)
	}

	f.data = append([]byte{}, data...)

	return nil
}

func (frameCodec) Name() string {
	return ContentSubtype
}

type dispatcher interface {
	dispatch(ctx context.Context, in *frame) (*frame, error)
}

func dispatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := &frame{}

	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(dispatcher).dispatch(ctx, in)
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: dispatchMethod,
	}

	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(dispatcher).dispatch(ctx, req.(*frame))
	}

	return interceptor(ctx, in, info, handler)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "roost.Owner",
	HandlerType: (*dispatcher)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Dispatch",
			Handler:    dispatchHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "roost",
}

var _ transport.Port = (*Frontend)(nil)

// Frontend is an owner port that accepts requests from
// a net.Listener
type Frontend struct {
	listener   net.Listener
	grpcServer *grpc.Server
	codecs     *codec.Registry
	logger     *zap.Logger
	inbound    chan transport.Envelope
	done       chan struct{}
	closeOnce  sync.Once
}

// NewFrontend creates a frontend for listener. Values are
// encoded and decoded with codecs. Call Serve to start
// accepting connections.
func NewFrontend(listener net.Listener, codecs *codec.Registry, logger *zap.Logger) *Frontend {
	frontend := &Frontend{
		listener:   listener,
		grpcServer: grpc.NewServer(),
		codecs:     codecs,
		logger:     log.OrNop(logger),
		inbound:    make(chan transport.Envelope),
		done:       make(chan struct{}),
	}

	frontend.grpcServer.RegisterService(&serviceDesc, frontend)

	return frontend
}

// Serve accepts connections until Close is called. It
// returns nil if it stopped because of Close.
func (frontend *Frontend) Serve() error {
	err := frontend.grpcServer.Serve(frontend.listener)

	select {
	case <-frontend.done:
		return nil
	default:
	}

	return err
}

func (frontend *Frontend) Address() string {
	return transport.FormatAddress(Scheme, frontend.listener.Addr().String())
}

func (frontend *Frontend) Inbound() <-chan transport.Envelope {
	return frontend.inbound
}

func (frontend *Frontend) Done() <-chan struct{} {
	return frontend.done
}

// Close stops the gRPC server. It closes the listener.
func (frontend *Frontend) Close() error {
	frontend.closeOnce.Do(func() {
		close(frontend.done)
		frontend.grpcServer.Stop()
	})

	return nil
}

func (frontend *Frontend) dispatch(ctx context.Context, in *frame) (*frame, error) {
	request, err := transport.UnmarshalRequest(frontend.codecs, in.data)

	if err != nil {
		return nil, status.Errorf(codes.InvalidArgument, "Could not unmarshal request: %s", err.Error())
	}

	reply := make(chan transport.Response, 1)

	select {
	case frontend.inbound <- transport.Envelope{Request: request, Reply: reply}:
	case <-frontend.done:
		return nil, status.Error(codes.Unavailable, "owner stopped")
	case <-ctx.Done():
		return nil, contextStatus(ctx.Err())
	}

	var response transport.Response

	select {
	case response = <-reply:
	case <-frontend.done:
		return nil, status.Error(codes.Unavailable, "owner stopped")
	case <-ctx.Done():
		return nil, contextStatus(ctx.Err())
	}

	data, err := transport.MarshalResponse(frontend.codecs, response)

	if err != nil {
		frontend.logger.Error("could not marshal response", zap.String("request", request.ID), zap.Error(err))

		return nil, status.Errorf(codes.Internal, "Could not marshal response: %s", err.Error())
	}

	return &frame{data: data}, nil
}

func contextStatus(err error) error {
	if err == context.DeadlineExceeded {
		return status.Error(codes.DeadlineExceeded, err.Error())
	}

	return status.Error(codes.Canceled, err.Error())
}

var _ transport.Dialer = (*Dialer)(nil)

// Dialer opens channels to gRPC ports
type Dialer struct {
	Codecs *codec.Registry
}

// Dial connects to a grpc://host:port address. The connection
// is established lazily.
func (dialer *Dialer) Dial(ctx context.Context, address string) (transport.Channel, error) {
	scheme, location, err := transport.ParseAddress(address)

	if err != nil {
		return nil, err
	}

	if scheme != Scheme {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnsupportedScheme, scheme)
	}

	conn, err := grpc.DialContext(ctx, location, grpc.WithInsecure())

	if err != nil {
		return nil, fmt.Errorf("%w: %s", transport.ErrUnavailable, err.Error())
	}

	return &Channel{conn: conn, codecs: dialer.Codecs}, nil
}

var _ transport.Channel = (*Channel)(nil)

// Channel sends requests over one gRPC connection
type Channel struct {
	conn   *grpc.ClientConn
	codecs *codec.Registry
}

func (channel *Channel) Send(ctx context.Context, request transport.Request) (transport.Response, error) {
	data, err := transport.MarshalRequest(channel.codecs, request)

	if err != nil {
		return transport.Response{}, err
	}

	out := &frame{}

	if err := channel.conn.Invoke(ctx, dispatchMethod, &frame{data: data}, out, grpc.CallContentSubtype(ContentSubtype)); err != nil {
		if ctx.Err() != nil {
			return transport.Response{}, ctx.Err()
		}

		switch status.Code(err) {
		case codes.Unavailable, codes.Canceled, codes.DeadlineExceeded:
			return transport.Response{}, fmt.Errorf("%w: %s", transport.ErrUnavailable, err.Error())
		}

		return transport.Response{}, err
	}

	return transport.UnmarshalResponse(channel.codecs, out.data)
}

func (channel *Channel) Close() error {
	return channel.conn.Close()
}
