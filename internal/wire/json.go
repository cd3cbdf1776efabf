package wire

import (
	"encoding/json"
	"fmt"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

type jsonCodec struct{}

type jsonFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func (jsonCodec) Name() string        { return "json" }
func (jsonCodec) Subprotocol() string { return "eventsd.v1.json" }
func (jsonCodec) Binary() bool        { return false }

func (jsonCodec) EncodeFrame(verb string, data any) ([]byte, error) {
	if verb == "" {
		return nil, ErrMissingVerb
	}
	frame := struct {
		Event string `json:"event"`
		Data  any    `json:"data,omitempty"`
	}{Event: verb, Data: data}

	b, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s frame: %w", verb, err)
	}
	return b, nil
}

func (jsonCodec) DecodeFrame(b []byte) (string, transport.Body, error) {
	var frame jsonFrame
	if err := json.Unmarshal(b, &frame); err != nil {
		return "", nil, fmt.Errorf("failed to decode frame: %w", err)
	}
	if frame.Event == "" {
		return "", nil, ErrMissingVerb
	}
	return frame.Event, jsonBody(frame.Data), nil
}

type jsonBody json.RawMessage

func (b jsonBody) Decode(v any) error {
	if len(b) == 0 || string(b) == "null" {
		return ErrEmptyBody
	}
	return json.Unmarshal(b, v)
}
