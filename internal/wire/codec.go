// Package wire holds the frame formats spoken between eventsd clients and
// servers.
//
// A frame is a verb plus an optional payload, encoded as {event, data}.
// Websocket connections carry frames as JSON text messages or CBOR binary
// messages; the codec is negotiated through the websocket subprotocol. gRPC
// connections carry the same frames as structpb.Struct messages on a
// bidirectional stream (see grpc.go).
package wire

import (
	"errors"
	"fmt"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

var (
	// ErrMissingVerb is returned when a frame carries no verb.
	ErrMissingVerb = errors.New("frame has no verb")
	// ErrEmptyBody is returned when decoding a frame that carries no payload.
	ErrEmptyBody = errors.New("frame has no payload")
	// ErrUnknownCodec is returned for unsupported codec names.
	ErrUnknownCodec = errors.New("unknown codec")
)

// Codec encodes and decodes websocket frames.
type Codec interface {
	// Name is the short name used in configuration ("json", "cbor").
	Name() string

	// Subprotocol is the websocket subprotocol announcing this codec.
	Subprotocol() string

	// Binary reports whether frames travel as binary websocket messages.
	Binary() bool

	// EncodeFrame encodes a verb and its payload. data may be nil.
	EncodeFrame(verb string, data any) ([]byte, error)

	// DecodeFrame splits a frame into its verb and undecoded payload.
	DecodeFrame(b []byte) (string, transport.Body, error)
}

// Codecs in order of preference.
var (
	JSON Codec = jsonCodec{}
	CBOR Codec = cborCodec{}
)

// Codecs lists every supported codec, preferred first.
func Codecs() []Codec {
	return []Codec{JSON, CBOR}
}

// Subprotocols lists the websocket subprotocols of every supported codec.
func Subprotocols() []string {
	codecs := Codecs()
	out := make([]string, 0, len(codecs))
	for _, c := range codecs {
		out = append(out, c.Subprotocol())
	}
	return out
}

// CodecByName returns the codec registered under name. An empty name selects JSON.
func CodecByName(name string) (Codec, error) {
	if name == "" {
		return JSON, nil
	}
	for _, c := range Codecs() {
		if c.Name() == name {
			return c, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
}

// CodecBySubprotocol returns the codec for a negotiated subprotocol.
// Peers that negotiated nothing speak JSON.
func CodecBySubprotocol(proto string) Codec {
	for _, c := range Codecs() {
		if c.Subprotocol() == proto {
			return c
		}
	}
	return JSON
}
