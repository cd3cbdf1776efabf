package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTarget_URL(t *testing.T) {
	t.Run("plain_websocket", func(t *testing.T) {
		target := Target{Host: "127.0.0.1", Port: 8151, Path: "/socket"}
		assert.Equal(t, "ws://127.0.0.1:8151/socket", target.URL())
		assert.Equal(t, "127.0.0.1:8151", target.Address())
	})

	t.Run("tls_uses_wss", func(t *testing.T) {
		target := Target{Host: "events.example.com", Port: 443, TLS: true}
		assert.Equal(t, "wss://events.example.com:443", target.URL())
	})

	t.Run("ipv6_host_is_bracketed", func(t *testing.T) {
		target := Target{Host: "::1", Port: 8151, Path: "/socket"}
		assert.Equal(t, "[::1]:8151", target.Address())
		assert.Equal(t, "ws://[::1]:8151/socket", target.URL())
	})
}
