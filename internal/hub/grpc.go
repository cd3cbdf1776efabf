package hub

import (
	"context"
	"errors"
	"io"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	routingtablepkg "github.com/rmacdonaldsmith/eventsd-go/pkg/routingtable"
)

// Authenticator validates bearer tokens and returns the token's subject.
type Authenticator interface {
	Authenticate(token string) (subject string, err error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(token string) (string, error)

// Authenticate calls f.
func (f AuthenticatorFunc) Authenticate(token string) (string, error) {
	return f(token)
}

// Register exposes the hub as the eventsd bus service on srv.
func (h *Hub) Register(srv *grpc.Server) {
	srv.RegisterService(&wire.BusServiceDesc, h)
}

// Connect serves one gRPC bus stream. It implements wire.BusServer.
func (h *Hub) Connect(stream grpc.ServerStream) error {
	ctx := stream.Context()

	subject, err := h.authenticateStream(ctx)
	if err != nil {
		return err
	}
	if h.isClosed() {
		return status.Error(codes.Unavailable, ErrClosed.Error())
	}
	remote := ""
	if p, ok := peer.FromContext(ctx); ok {
		remote = p.Addr.String()
	}

	s := h.newSession(routingtablepkg.GRPCClient, subject, remote)
	// The client treats the stream as open only once this header arrives.
	if err := stream.SendHeader(metadata.Pairs(wire.SessionHeader, s.ID())); err != nil {
		return err
	}
	s.write = func(verb string, data any) error {
		msg, err := wire.EncodeStruct(verb, data)
		if err != nil {
			return err
		}
		return stream.SendMsg(msg)
	}

	return h.run(s, func() error {
		recvErr := make(chan error, 1)
		go func() {
			for {
				msg := new(structpb.Struct)
				if err := stream.RecvMsg(msg); err != nil {
					recvErr <- err
					return
				}
				verb, body, err := wire.DecodeStruct(msg)
				if err != nil {
					s.logger.Debug("malformed frame", "error", err)
					continue
				}
				h.handleFrame(context.Background(), s, verb, body)
			}
		}()

		select {
		case err := <-recvErr:
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		case <-s.done:
			return nil
		}
	})
}

func (h *Hub) authenticateStream(ctx context.Context) (string, error) {
	if h.cfg.Authenticator == nil {
		return "", nil
	}

	md, _ := metadata.FromIncomingContext(ctx)
	values := md.Get("authorization")
	if len(values) == 0 {
		return "", status.Error(codes.Unauthenticated, "missing authorization metadata")
	}
	token, ok := strings.CutPrefix(values[0], "Bearer ")
	if !ok || token == "" {
		return "", status.Error(codes.Unauthenticated, "authorization must be a bearer token")
	}

	subject, err := h.cfg.Authenticator.Authenticate(token)
	if err != nil {
		return "", status.Error(codes.Unauthenticated, err.Error())
	}
	return subject, nil
}

// Verify that Hub implements the bus service at compile time
var _ wire.BusServer = (*Hub)(nil)
