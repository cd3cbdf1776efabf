package link

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// WebSocketOptions configures the websocket dialer.
type WebSocketOptions struct {
	// Codec selects the frame encoding offered to the server.
	Codec wire.Codec

	// HandshakeTimeout bounds the opening handshake.
	HandshakeTimeout time.Duration

	// PingInterval is the keepalive period (0 disables pings and read deadlines).
	PingInterval time.Duration

	// WriteTimeout bounds every frame write.
	WriteTimeout time.Duration
}

// SetDefaults sets reasonable default values for unset fields.
func (o *WebSocketOptions) SetDefaults() {
	if o.Codec == nil {
		o.Codec = wire.JSON
	}
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = 10 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
}

// NewWebSocket creates a Transport dialling websocket endpoints.
func NewWebSocket(ws WebSocketOptions, opts Options) *Transport {
	ws.SetDefaults()
	return New(&WebSocketDialer{opts: ws}, opts)
}

// WebSocketDialer dials eventsd websocket endpoints.
type WebSocketDialer struct {
	opts WebSocketOptions
}

// Dial opens a websocket connection to target.URL().
func (d *WebSocketDialer) Dial(ctx context.Context, target transport.Target) (Conn, error) {
	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: d.opts.HandshakeTimeout,
		Subprotocols:     []string{d.opts.Codec.Subprotocol()},
	}
	if target.TLS {
		dialer.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: target.InsecureSkipVerify,
		}
	}

	header := http.Header{}
	if target.Token != "" {
		header.Set("Authorization", "Bearer "+target.Token)
	}

	url := target.URL()
	conn, resp, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to dial %s (status %s): %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("failed to dial %s: %w", url, err)
	}

	codec := d.opts.Codec
	if proto := conn.Subprotocol(); proto != "" {
		codec = wire.CodecBySubprotocol(proto)
	}

	c := &wsConn{
		conn:         conn,
		codec:        codec,
		writeTimeout: d.opts.WriteTimeout,
		done:         make(chan struct{}),
	}
	if d.opts.PingInterval > 0 {
		c.keepalive(d.opts.PingInterval)
	}
	return c, nil
}

type wsConn struct {
	conn         *websocket.Conn
	codec        wire.Codec
	writeTimeout time.Duration

	closeOnce sync.Once
	done      chan struct{}
}

// keepalive pings the server and expects a pong within two intervals.
func (c *wsConn) keepalive(interval time.Duration) {
	pongWait := 2 * interval
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(c.writeTimeout)
				if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					return
				}
			}
		}
	}()
}

func (c *wsConn) ReadFrame() (string, transport.Body, error) {
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return "", nil, err
		}
		if messageType != websocket.TextMessage && messageType != websocket.BinaryMessage {
			continue
		}

		verb, body, err := c.codec.DecodeFrame(data)
		if err != nil {
			return "", nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}
		return verb, body, nil
	}
}

func (c *wsConn) WriteFrame(verb string, data any) error {
	b, err := c.codec.EncodeFrame(verb, data)
	if err != nil {
		return err
	}

	messageType := websocket.TextMessage
	if c.codec.Binary() {
		messageType = websocket.BinaryMessage
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.conn.WriteMessage(messageType, b)
}

func (c *wsConn) CloseWrite() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	return c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.writeTimeout))
}

func (c *wsConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.conn.Close()
	})
	return err
}
