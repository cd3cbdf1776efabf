package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type interestPayload struct {
	RoutingKey string `json:"routingKey"`
	ID         string `json:"id,omitempty"`
}

type eventPayload struct {
	Time       int64   `json:"time"`
	Microtime  float64 `json:"microtime"`
	Msg        any     `json:"msg"`
	ID         string  `json:"id"`
	RoutingKey string  `json:"routingKey"`
}

func TestCodecs_Frames(t *testing.T) {
	for _, codec := range Codecs() {
		codec := codec
		t.Run(codec.Name(), func(t *testing.T) {
			t.Run("bind_frame_carries_verb_and_interest", func(t *testing.T) {
				b, err := codec.EncodeFrame("consume", interestPayload{RoutingKey: "event.a.#", ID: "workers"})
				require.NoError(t, err)

				verb, body, err := codec.DecodeFrame(b)
				require.NoError(t, err)
				assert.Equal(t, "consume", verb)

				var got interestPayload
				require.NoError(t, body.Decode(&got))
				assert.Equal(t, "event.a.#", got.RoutingKey)
				assert.Equal(t, "workers", got.ID)
			})

			t.Run("event_frame_keeps_timestamps", func(t *testing.T) {
				sent := eventPayload{
					Time:       1700000000123,
					Microtime:  1700000000.123456,
					Msg:        "testing",
					ID:         "4f1c",
					RoutingKey: "event.testEvent.one",
				}
				b, err := codec.EncodeFrame("event", sent)
				require.NoError(t, err)

				verb, body, err := codec.DecodeFrame(b)
				require.NoError(t, err)
				assert.Equal(t, "event", verb)

				var got eventPayload
				require.NoError(t, body.Decode(&got))
				assert.Equal(t, sent, got)
			})

			t.Run("nested_messages_decode_with_string_keys", func(t *testing.T) {
				b, err := codec.EncodeFrame("event", map[string]any{"msg": map[string]any{"user": "ada"}})
				require.NoError(t, err)

				_, body, err := codec.DecodeFrame(b)
				require.NoError(t, err)

				var got map[string]any
				require.NoError(t, body.Decode(&got))
				msg, ok := got["msg"].(map[string]any)
				require.True(t, ok, "expected map[string]any, got %T", got["msg"])
				assert.Equal(t, "ada", msg["user"])
			})

			t.Run("frame_without_payload", func(t *testing.T) {
				b, err := codec.EncodeFrame("ping", nil)
				require.NoError(t, err)

				verb, body, err := codec.DecodeFrame(b)
				require.NoError(t, err)
				assert.Equal(t, "ping", verb)

				var got map[string]any
				assert.ErrorIs(t, body.Decode(&got), ErrEmptyBody)
			})

			t.Run("rejects_empty_verb", func(t *testing.T) {
				_, err := codec.EncodeFrame("", nil)
				assert.ErrorIs(t, err, ErrMissingVerb)
			})

			t.Run("rejects_garbage", func(t *testing.T) {
				_, _, err := codec.DecodeFrame([]byte{0xff, 0x00, 0x13})
				assert.Error(t, err)
			})
		})
	}
}

func TestCodecByName(t *testing.T) {
	c, err := CodecByName("")
	require.NoError(t, err)
	assert.Equal(t, "json", c.Name())

	c, err = CodecByName("cbor")
	require.NoError(t, err)
	assert.True(t, c.Binary())

	_, err = CodecByName("msgpack")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestCodecBySubprotocol(t *testing.T) {
	assert.Equal(t, CBOR, CodecBySubprotocol("eventsd.v1.cbor"))
	assert.Equal(t, JSON, CodecBySubprotocol("eventsd.v1.json"))
	assert.Equal(t, JSON, CodecBySubprotocol(""))
	assert.Equal(t, []string{"eventsd.v1.json", "eventsd.v1.cbor"}, Subprotocols())
}
