package link

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// GRPCOptions configures the gRPC dialer.
type GRPCOptions struct {
	// DialOptions are appended after the transport credentials.
	DialOptions []grpc.DialOption
}

// NewGRPC creates a Transport opening bus streams over gRPC.
func NewGRPC(g GRPCOptions, opts Options) *Transport {
	return New(&GRPCDialer{opts: g}, opts)
}

// GRPCDialer opens /eventsd.v1.Bus/Connect streams.
type GRPCDialer struct {
	opts GRPCOptions
}

// Dial opens a stream to target.Address() and waits for the server's
// session header, so a returned Conn has been accepted by the server.
func (d *GRPCDialer) Dial(ctx context.Context, target transport.Target) (Conn, error) {
	creds := insecure.NewCredentials()
	if target.TLS {
		creds = credentials.NewTLS(&tls.Config{InsecureSkipVerify: target.InsecureSkipVerify})
	}
	dialOpts := append([]grpc.DialOption{grpc.WithTransportCredentials(creds)}, d.opts.DialOptions...)

	cc, err := grpc.NewClient(target.Address(), dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target.Address(), err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	if target.Token != "" {
		streamCtx = metadata.AppendToOutgoingContext(streamCtx, "authorization", "Bearer "+target.Token)
	}

	stream, err := cc.NewStream(streamCtx, wire.ConnectStreamDesc(), wire.ConnectMethod)
	if err != nil {
		cancel()
		cc.Close()
		return nil, fmt.Errorf("failed to open bus stream to %s: %w", target.Address(), err)
	}
	if err := awaitAccepted(stream); err != nil {
		cancel()
		cc.Close()
		return nil, fmt.Errorf("bus stream to %s rejected: %w", target.Address(), err)
	}

	return &grpcConn{cc: cc, stream: stream, cancel: cancel}, nil
}

// awaitAccepted blocks until the server sends headers. A refused stream ends
// trailers-only, in which case Header returns no metadata and the refusal
// status is only available from RecvMsg.
func awaitAccepted(stream grpc.ClientStream) error {
	md, err := stream.Header()
	if err != nil {
		return err
	}
	if len(md.Get(wire.SessionHeader)) > 0 {
		return nil
	}
	if md == nil {
		if err := stream.RecvMsg(new(structpb.Struct)); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	return ErrNotAccepted
}

type grpcConn struct {
	cc     *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	closeOnce sync.Once
}

func (c *grpcConn) ReadFrame() (string, transport.Body, error) {
	msg := new(structpb.Struct)
	if err := c.stream.RecvMsg(msg); err != nil {
		return "", nil, err
	}
	verb, body, err := wire.DecodeStruct(msg)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	return verb, body, nil
}

func (c *grpcConn) WriteFrame(verb string, data any) error {
	msg, err := wire.EncodeStruct(verb, data)
	if err != nil {
		return err
	}
	return c.stream.SendMsg(msg)
}

func (c *grpcConn) CloseWrite() error {
	return c.stream.CloseSend()
}

func (c *grpcConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		err = c.cc.Close()
	})
	return err
}
