package eventsclient

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rmacdonaldsmith/eventsd-go/internal/backoff"
	"github.com/rmacdonaldsmith/eventsd-go/internal/link"
	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// Protocols the client can speak.
const (
	ProtocolWebSocket = "websocket"
	ProtocolGRPC      = "grpc"
)

// Defaults applied by Config.SetDefaults.
const (
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8151
	DefaultPath              = "/socket"
	DefaultReconnectDelay    = 1 * time.Second
	DefaultMaxReconnectDelay = 30 * time.Second
	DefaultPingInterval      = 25 * time.Second
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("invalid config")

// SSLConfig controls transport-layer security.
type SSLConfig struct {
	Enable             bool `yaml:"enable"`
	InsecureSkipVerify bool `yaml:"insecureSkipVerify"`
}

// Config holds client configuration.
type Config struct {
	Host string    `yaml:"host"`
	Port int       `yaml:"port"`
	SSL  SSLConfig `yaml:"ssl"`

	// Path is the websocket endpoint path.
	Path string `yaml:"path"`

	// Keys seed the registry before Start.
	Keys []Interest `yaml:"keys"`

	// Token is sent as a bearer token when connecting.
	Token string `yaml:"token"`

	// Protocol is "websocket" or "grpc".
	Protocol string `yaml:"protocol"`

	// Codec is the websocket frame encoding, "json" or "cbor".
	Codec string `yaml:"codec"`

	ReconnectDelay    time.Duration `yaml:"reconnectDelay"`
	MaxReconnectDelay time.Duration `yaml:"maxReconnectDelay"`

	// MaxReconnectAttempts bounds consecutive failed attempts of one socket
	// (0 = unlimited). When exhausted the client starts a fresh socket.
	MaxReconnectAttempts int `yaml:"maxReconnectAttempts"`

	// PingInterval is the websocket keepalive period.
	PingInterval time.Duration `yaml:"pingInterval"`

	// Logger receives debug output. Defaults to a discard logger.
	Logger *slog.Logger `yaml:"-"`

	// Transport overrides the transport built from the fields above.
	Transport transport.Transport `yaml:"-"`
}

// SetDefaults sets reasonable default values for unset fields.
func (c *Config) SetDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.Path == "" {
		c.Path = DefaultPath
	}
	if c.Protocol == "" {
		c.Protocol = ProtocolWebSocket
	}
	if c.Codec == "" {
		c.Codec = wire.JSON.Name()
	}
	if c.ReconnectDelay == 0 {
		c.ReconnectDelay = DefaultReconnectDelay
	}
	if c.MaxReconnectDelay == 0 {
		c.MaxReconnectDelay = DefaultMaxReconnectDelay
	}
	if c.PingInterval == 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: port %d out of range", ErrInvalidConfig, c.Port)
	}
	switch c.Protocol {
	case ProtocolWebSocket, ProtocolGRPC:
	default:
		return fmt.Errorf("%w: unknown protocol %q", ErrInvalidConfig, c.Protocol)
	}
	if _, err := wire.CodecByName(c.Codec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.ReconnectDelay < 0 || c.MaxReconnectDelay < 0 {
		return fmt.Errorf("%w: reconnect delays must not be negative", ErrInvalidConfig)
	}
	if c.MaxReconnectDelay < c.ReconnectDelay {
		return fmt.Errorf("%w: maxReconnectDelay %s is below reconnectDelay %s",
			ErrInvalidConfig, c.MaxReconnectDelay, c.ReconnectDelay)
	}
	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("%w: maxReconnectAttempts must not be negative", ErrInvalidConfig)
	}
	for i, k := range c.Keys {
		if k.RoutingKey == "" {
			return fmt.Errorf("%w: keys[%d] has no routingKey", ErrInvalidConfig, i)
		}
	}
	return nil
}

// Target returns where the client connects to.
func (c *Config) Target() transport.Target {
	return transport.Target{
		Host:               c.Host,
		Port:               c.Port,
		TLS:                c.SSL.Enable,
		InsecureSkipVerify: c.SSL.InsecureSkipVerify,
		Path:               c.Path,
		Token:              c.Token,
	}
}

// URL returns the websocket URL, or host:port for gRPC.
func (c *Config) URL() string {
	t := c.Target()
	if c.Protocol == ProtocolGRPC {
		return t.Address()
	}
	return t.URL()
}

// buildTransport returns the configured transport. Call after SetDefaults.
func (c *Config) buildTransport() (transport.Transport, error) {
	if c.Transport != nil {
		return c.Transport, nil
	}

	opts := link.Options{
		Backoff: backoff.Config{
			Initial: c.ReconnectDelay,
			Max:     c.MaxReconnectDelay,
		},
		MaxReconnectAttempts: c.MaxReconnectAttempts,
		Logger:               c.Logger.WithGroup("link"),
	}

	if c.Protocol == ProtocolGRPC {
		return link.NewGRPC(link.GRPCOptions{}, opts), nil
	}

	codec, err := wire.CodecByName(c.Codec)
	if err != nil {
		return nil, err
	}
	return link.NewWebSocket(link.WebSocketOptions{
		Codec:        codec,
		PingInterval: c.PingInterval,
	}, opts), nil
}

// LoadConfig reads a YAML configuration file. Defaults are not applied.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}
