package eventlog

import (
	"time"

	"github.com/google/uuid"
)

// Event is a published event, shaped as it is pushed to subscribers.
type Event struct {
	// Time is the server timestamp in unix milliseconds
	Time int64 `json:"time" cbor:"time"`

	// Microtime is the server timestamp in seconds with microsecond precision
	Microtime float64 `json:"microtime" cbor:"microtime"`

	// Msg is the published message body
	Msg any `json:"msg" cbor:"msg"`

	// ID uniquely identifies the event
	ID string `json:"id" cbor:"id"`

	// RoutingKey is the key the event was published with
	RoutingKey string `json:"routingKey" cbor:"routingKey"`
}

// NewEvent creates an event stamped with the current time and a fresh ID.
func NewEvent(routingKey string, msg any) Event {
	return NewEventAt(routingKey, msg, time.Now())
}

// NewEventAt creates an event stamped with now.
func NewEventAt(routingKey string, msg any, now time.Time) Event {
	return Event{
		Time:       now.UnixMilli(),
		Microtime:  float64(now.UnixMicro()) / 1e6,
		Msg:        msg,
		ID:         uuid.NewString(),
		RoutingKey: routingKey,
	}
}

// Record is an event retained by the log.
type Record struct {
	// Offset is the position assigned by the log, starting at 0
	Offset int64 `json:"offset"`

	Event
}
