package transport

// Protocol verbs exchanged with an eventsd server.
const (
	// VerbBind declares interest in a routing key.
	VerbBind = "consume"

	// VerbUnbind retracts a previously declared interest.
	VerbUnbind = "stop"

	// VerbEvent is pushed by the server for every matching event.
	VerbEvent = "event"
)

// Body is an undecoded frame payload.
type Body interface {
	// Decode unmarshals the payload into v.
	Decode(v any) error
}

// Handler receives socket notifications.
type Handler interface {
	// OnOpen is called when the connection is ready to carry frames.
	OnOpen()

	// OnReconnectAttempt is called before every automatic reconnection attempt.
	// attempt counts from 1 and resets after a successful connection.
	OnReconnectAttempt(attempt int)

	// OnMessage is called for every inbound frame, in arrival order.
	OnMessage(verb string, body Body)

	// OnDisconnect is called when an open connection closes. err is nil for
	// a caller-initiated close.
	OnDisconnect(err error)

	// OnError is called when the socket stops for good without being closed
	// by the caller.
	OnError(err error)
}

// Socket is one logical connection to the server. It may reconnect
// underneath; every new connection is announced with OnOpen.
type Socket interface {
	// Emit queues a frame for sending. It never blocks on the network and
	// fails when the connection is not open.
	Emit(verb string, data any) error

	// Open reports whether the connection is currently open.
	Open() bool

	// Close flushes frames already queued, closes the connection and stops
	// reconnecting.
	Close() error
}

// Transport opens sockets.
type Transport interface {
	// Open starts connecting to target and returns immediately.
	Open(target Target, h Handler) Socket
}
