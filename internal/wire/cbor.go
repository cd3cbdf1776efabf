package wire

import (
	"fmt"
	"reflect"

	"github.com/fxamacker/cbor/v2"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// encMode produces deterministic CBOR so identical frames encode identically.
var encMode cbor.EncMode

// decMode is lenient for forward compatibility and decodes maps with string
// keys so payloads look the same as their JSON counterparts.
var decMode cbor.DecMode

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeUnix,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
		DefaultMapType:    reflect.TypeOf(map[string]any(nil)),
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

type cborCodec struct{}

type cborFrame struct {
	Event string          `cbor:"event"`
	Data  cbor.RawMessage `cbor:"data,omitempty"`
}

func (cborCodec) Name() string        { return "cbor" }
func (cborCodec) Subprotocol() string { return "eventsd.v1.cbor" }
func (cborCodec) Binary() bool        { return true }

func (cborCodec) EncodeFrame(verb string, data any) ([]byte, error) {
	if verb == "" {
		return nil, ErrMissingVerb
	}
	frame := struct {
		Event string `cbor:"event"`
		Data  any    `cbor:"data,omitempty"`
	}{Event: verb, Data: data}

	b, err := encMode.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", verb, err)
	}
	return b, nil
}

func (cborCodec) DecodeFrame(b []byte) (string, transport.Body, error) {
	var frame cborFrame
	if err := decMode.Unmarshal(b, &frame); err != nil {
		return "", nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if frame.Event == "" {
		return "", nil, ErrMissingVerb
	}
	return frame.Event, cborBody(frame.Data), nil
}

type cborBody cbor.RawMessage

func (b cborBody) Decode(v any) error {
	// 0xf6 is CBOR null.
	if len(b) == 0 || (len(b) == 1 && b[0] == 0xf6) {
		return ErrEmptyBody
	}
	return decMode.Unmarshal(b, v)
}
