package wire

import (
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// gRPC names of the bus service. The service has a single bidirectional
// stream whose messages are google.protobuf.Struct frames shaped like the
// websocket frames: {"event": <verb>, "data": <payload>}.
const (
	BusServiceName = "eventsd.v1.Bus"
	ConnectMethod  = "/" + BusServiceName + "/Connect"

	// SessionHeader is the header a server sends, with the session ID as
	// value, once it has accepted a Connect stream. A stream ended without
	// it was refused.
	SessionHeader = "eventsd-session"
)

// BusServer is implemented by servers exposing the bus over gRPC.
type BusServer interface {
	Connect(stream grpc.ServerStream) error
}

// BusServiceDesc describes the bus service for grpc.Server.RegisterService.
var BusServiceDesc = grpc.ServiceDesc{
	ServiceName: BusServiceName,
	HandlerType: (*BusServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Connect",
			Handler:       connectHandler,
			ServerStreams: true,
			ClientStreams: true,
		},
	},
	Metadata: "eventsd/v1/bus.proto",
}

func connectHandler(srv any, stream grpc.ServerStream) error {
	return srv.(BusServer).Connect(stream)
}

// ConnectStreamDesc is the client-side descriptor of the Connect stream.
func ConnectStreamDesc() *grpc.StreamDesc {
	return &BusServiceDesc.Streams[0]
}

// EncodeStruct builds a gRPC frame. The payload goes through JSON first so
// struct tags apply exactly as on websocket frames.
func EncodeStruct(verb string, data any) (*structpb.Struct, error) {
	if verb == "" {
		return nil, ErrMissingVerb
	}
	fields := map[string]any{"event": verb}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode %s frame: %w", verb, err)
		}
		var plain any
		if err := json.Unmarshal(raw, &plain); err != nil {
			return nil, fmt.Errorf("failed to encode %s frame: %w", verb, err)
		}
		fields["data"] = plain
	}

	s, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", verb, err)
	}
	return s, nil
}

// DecodeStruct splits a gRPC frame into its verb and undecoded payload.
func DecodeStruct(s *structpb.Struct) (string, transport.Body, error) {
	fields := s.GetFields()
	verb := fields["event"].GetStringValue()
	if verb == "" {
		return "", nil, ErrMissingVerb
	}
	return verb, structBody{v: fields["data"]}, nil
}

type structBody struct {
	v *structpb.Value
}

func (b structBody) Decode(v any) error {
	if b.v == nil {
		return ErrEmptyBody
	}
	if _, isNull := b.v.GetKind().(*structpb.Value_NullValue); isNull {
		return ErrEmptyBody
	}
	raw, err := json.Marshal(b.v.AsInterface())
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, v)
}
