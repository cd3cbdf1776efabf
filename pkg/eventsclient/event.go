package eventsclient

import (
	"errors"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// ErrNoPayload is returned by Event.Decode when the server sent no payload.
var ErrNoPayload = errors.New("event has no payload")

// Event is a message pushed by the server for one of the bound interests.
type Event struct {
	// Time is the server timestamp in unix milliseconds.
	Time int64 `json:"time" cbor:"time"`
	// Microtime is a high-resolution server timestamp in seconds.
	Microtime float64 `json:"microtime" cbor:"microtime"`
	// Msg is the message body as published.
	Msg any `json:"msg" cbor:"msg"`
	// ID identifies the event.
	ID string `json:"id" cbor:"id"`
	// RoutingKey is the key the event was published with.
	RoutingKey string `json:"routingKey" cbor:"routingKey"`

	body transport.Body
}

// Decode re-decodes the raw payload into v, for callers with their own
// event shape.
func (e Event) Decode(v any) error {
	if e.body == nil {
		return ErrNoPayload
	}
	return e.body.Decode(v)
}
