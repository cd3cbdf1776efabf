package eventsclient

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_SetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, "127.0.0.1", cfg.Host)
	assert.Equal(t, 8151, cfg.Port)
	assert.False(t, cfg.SSL.Enable)
	assert.Equal(t, "/socket", cfg.Path)
	assert.Empty(t, cfg.Keys)
	assert.Equal(t, ProtocolWebSocket, cfg.Protocol)
	assert.Equal(t, "json", cfg.Codec)
	assert.Equal(t, time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 30*time.Second, cfg.MaxReconnectDelay)
	assert.Equal(t, 0, cfg.MaxReconnectAttempts)
	assert.Equal(t, 25*time.Second, cfg.PingInterval)
	assert.NotNil(t, cfg.Logger)
	assert.NoError(t, cfg.Validate())
	assert.Equal(t, "ws://127.0.0.1:8151/socket", cfg.URL())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"bad_port", func(c *Config) { c.Port = 70000 }},
		{"negative_port", func(c *Config) { c.Port = -1 }},
		{"unknown_protocol", func(c *Config) { c.Protocol = "udp" }},
		{"unknown_codec", func(c *Config) { c.Codec = "xml" }},
		{"max_delay_below_initial", func(c *Config) { c.ReconnectDelay = 10 * time.Second; c.MaxReconnectDelay = time.Second }},
		{"negative_attempts", func(c *Config) { c.MaxReconnectAttempts = -1 }},
		{"key_without_pattern", func(c *Config) { c.Keys = []Interest{{ID: "g"}} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			cfg.SetDefaults()
			tt.modify(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
		})
	}
}

func TestConfig_URL(t *testing.T) {
	cfg := Config{Host: "bus.example.com", Port: 443, SSL: SSLConfig{Enable: true}}
	cfg.SetDefaults()
	assert.Equal(t, "wss://bus.example.com:443/socket", cfg.URL())

	cfg.Protocol = ProtocolGRPC
	assert.Equal(t, "bus.example.com:443", cfg.URL())
}

func TestConfig_BuildTransport(t *testing.T) {
	for _, proto := range []string{ProtocolWebSocket, ProtocolGRPC} {
		t.Run(proto, func(t *testing.T) {
			cfg := Config{Protocol: proto, Codec: "cbor"}
			cfg.SetDefaults()
			tr, err := cfg.buildTransport()
			require.NoError(t, err)
			assert.NotNil(t, tr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("reads_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "client.yaml")
		require.NoError(t, os.WriteFile(path, []byte(`
host: events.internal
port: 9000
ssl:
  enable: true
  insecureSkipVerify: true
protocol: grpc
codec: cbor
token: abc
reconnectDelay: 250ms
maxReconnectDelay: 5s
maxReconnectAttempts: 3
keys:
  - event.testEvent.#
  - routingKey: orders.*
    id: billing
`), 0o600))

		cfg, err := LoadConfig(path)
		require.NoError(t, err)

		assert.Equal(t, "events.internal", cfg.Host)
		assert.Equal(t, 9000, cfg.Port)
		assert.True(t, cfg.SSL.Enable)
		assert.True(t, cfg.SSL.InsecureSkipVerify)
		assert.Equal(t, ProtocolGRPC, cfg.Protocol)
		assert.Equal(t, "cbor", cfg.Codec)
		assert.Equal(t, "abc", cfg.Token)
		assert.Equal(t, 250*time.Millisecond, cfg.ReconnectDelay)
		assert.Equal(t, 5*time.Second, cfg.MaxReconnectDelay)
		assert.Equal(t, 3, cfg.MaxReconnectAttempts)
		assert.Equal(t, []Interest{
			{RoutingKey: "event.testEvent.#"},
			{RoutingKey: "orders.*", ID: "billing"},
		}, cfg.Keys)

		cfg.SetDefaults()
		assert.NoError(t, cfg.Validate())
	})

	t.Run("missing_file", func(t *testing.T) {
		_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid_yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("port: [1, 2"), 0o600))
		_, err := LoadConfig(path)
		assert.Error(t, err)
	})
}
