package routingtable

// Subscriber represents a connected client that binds patterns
type Subscriber interface {
	// ID returns unique identifier for this subscriber
	ID() string

	// Type returns how the subscriber is connected
	Type() SubscriberType
}

// SubscriberType represents the transport a subscriber is connected over
type SubscriberType int

const (
	// WebSocketClient is a client connected over websocket
	WebSocketClient SubscriberType = iota

	// GRPCClient is a client connected over the gRPC bus stream
	GRPCClient
)

func (t SubscriberType) String() string {
	switch t {
	case WebSocketClient:
		return "websocket"
	case GRPCClient:
		return "grpc"
	default:
		return "unknown"
	}
}

// StaticSubscriber is a Subscriber with a fixed ID, for tests and tools
type StaticSubscriber struct {
	id   string
	kind SubscriberType
}

// NewStaticSubscriber creates a subscriber with the given ID and type
func NewStaticSubscriber(id string, kind SubscriberType) *StaticSubscriber {
	return &StaticSubscriber{id: id, kind: kind}
}

// ID returns the unique identifier for this subscriber
func (s *StaticSubscriber) ID() string {
	return s.id
}

// Type returns the transport type given at construction
func (s *StaticSubscriber) Type() SubscriberType {
	return s.kind
}
