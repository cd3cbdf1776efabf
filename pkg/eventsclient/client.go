package eventsclient

import (
	"log/slog"
	"sync"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// Client is an eventsd subscription client. It is safe for concurrent use.
// Observers and Stop callbacks are never called with internal locks held.
type Client struct {
	target    transport.Target
	url       string
	transport transport.Transport
	logger    *slog.Logger

	mu       sync.Mutex
	registry *Registry
	state    State
	current  *conn

	connected    observers[func()]
	reconnecting observers[func(attempt int)]
	disconnected observers[func(err error)]
	events       observers[func(Event)]
}

// NewClient creates a client. It does not connect until Start.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	tr, err := cfg.buildTransport()
	if err != nil {
		return nil, err
	}

	return &Client{
		target:    cfg.Target(),
		url:       cfg.URL(),
		transport: tr,
		logger:    cfg.Logger.With("url", cfg.URL()),
		registry:  NewRegistry(cfg.Keys...),
		state:     StateDisconnected,
	}, nil
}

// conn is one socket opened by Start or by error recovery. Its fields are
// guarded by Client.mu.
type conn struct {
	client *Client
	socket transport.Socket

	// open is true between OnOpen and the following disconnect or reconnect.
	open bool
	// pendingClose is set when the socket was detached while open; its one
	// remaining OnDisconnect is still reported to observers.
	pendingClose bool
}

// Start begins connecting. Callers are expected to call it once; a second
// call replaces and closes the previous socket.
func (c *Client) Start() {
	c.mu.Lock()
	prev := c.detachLocked()
	c.openLocked()
	c.mu.Unlock()

	if prev != nil {
		c.closeSocket(prev)
	}
}

// Stop unbinds every registry entry, closes the connection and then calls
// done (which may be nil) exactly once. Unbinds are dropped when the socket
// is not open. The registry is kept, so a later Start binds it again.
func (c *Client) Stop(done func()) {
	c.mu.Lock()
	h := c.detachLocked()
	keys := c.registry.Snapshot()
	if h == nil {
		c.state = StateDisconnected
		c.mu.Unlock()
		if done != nil {
			done()
		}
		return
	}
	c.mu.Unlock()

	for _, k := range keys {
		if err := h.socket.Emit(transport.VerbUnbind, k); err != nil {
			c.logger.Debug("unbind dropped", "key", k.String(), "error", err)
			continue
		}
		c.logger.Debug("unbind", "key", k.String())
	}
	c.closeSocket(h)

	c.mu.Lock()
	if c.current == nil {
		c.state = StateDisconnected
	}
	c.mu.Unlock()

	if done != nil {
		done()
	}
}

// Close stops the client without a callback.
func (c *Client) Close() error {
	c.Stop(nil)
	return nil
}

// AddKey registers an interest: a pattern string, an Interest, or a map with
// "routingKey" and optional "id". It returns false, without effect, for
// anything else. While connected, one bind is sent for the interest.
func (c *Client) AddKey(key any) bool {
	in, ok := ParseInterest(key)
	if !ok {
		c.logger.Debug("ignoring invalid key", "key", key)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.registry.Add(in)
	if h := c.current; h != nil && h.open {
		c.emitLocked(h, transport.VerbBind, in)
	}
	return true
}

// RemoveKey removes the first registered interest matching key. It returns
// false, without sending anything, when key is invalid or not registered.
// While connected, one unbind is sent for key.
func (c *Client) RemoveKey(key any) bool {
	in, ok := ParseInterest(key)
	if !ok {
		c.logger.Debug("ignoring invalid key", "key", key)
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.registry.Remove(in) {
		return false
	}
	if h := c.current; h != nil && h.open {
		c.emitLocked(h, transport.VerbUnbind, in)
	}
	return true
}

// Keys returns the registered interests in insertion order.
func (c *Client) Keys() []Interest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.Snapshot()
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// URL returns the server address the client connects to.
func (c *Client) URL() string {
	return c.url
}

// OnConnected registers fn to run after every (re)connection, once the
// registry has been bound. The returned func unregisters it.
func (c *Client) OnConnected(fn func()) (cancel func()) {
	return c.connected.add(fn)
}

// OnReconnecting registers fn to run on every automatic reconnection attempt.
func (c *Client) OnReconnecting(fn func(attempt int)) (cancel func()) {
	return c.reconnecting.add(fn)
}

// OnDisconnect registers fn to run whenever a connection closes. err is nil
// when the close was requested by Stop.
func (c *Client) OnDisconnect(fn func(err error)) (cancel func()) {
	return c.disconnected.add(fn)
}

// OnEvent registers fn to receive every event pushed by the server.
func (c *Client) OnEvent(fn func(Event)) (cancel func()) {
	return c.events.add(fn)
}

func (c *Client) openLocked() {
	h := &conn{client: c}
	h.socket = c.transport.Open(c.target, h)
	c.current = h
	c.state = StateConnecting
	c.logger.Debug("connecting")
}

// detachLocked makes the current socket stale and returns it.
func (c *Client) detachLocked() *conn {
	h := c.current
	if h == nil {
		return nil
	}
	c.current = nil
	h.pendingClose = h.open
	h.open = false
	return h
}

func (c *Client) closeSocket(h *conn) {
	if err := h.socket.Close(); err != nil {
		c.logger.Debug("close failed", "error", err)
	}
}

func (c *Client) emitLocked(h *conn, verb string, in Interest) {
	if err := h.socket.Emit(verb, in); err != nil {
		c.logger.Debug("send dropped", "verb", verb, "key", in.String(), "error", err)
		return
	}
	c.logger.Debug("sent", "verb", verb, "key", in.String())
}

// OnOpen binds the whole registry, then notifies observers.
func (h *conn) OnOpen() {
	c := h.client
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	h.open = true
	c.state = StateConnected
	c.logger.Debug("connected", "keys", c.registry.Len())
	for _, k := range c.registry.Snapshot() {
		c.emitLocked(h, transport.VerbBind, k)
	}
	c.mu.Unlock()

	c.connected.each(func(fn func()) { fn() })
}

func (h *conn) OnReconnectAttempt(attempt int) {
	c := h.client
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	h.open = false
	c.state = StateConnecting
	c.mu.Unlock()

	c.logger.Debug("reconnecting", "attempt", attempt)
	c.reconnecting.each(func(fn func(int)) { fn(attempt) })
}

func (h *conn) OnMessage(verb string, body transport.Body) {
	c := h.client
	c.mu.Lock()
	stale := c.current != h
	c.mu.Unlock()
	if stale {
		return
	}

	if verb != transport.VerbEvent {
		c.logger.Debug("ignoring frame", "verb", verb)
		return
	}

	e := Event{body: body}
	if err := body.Decode(&e); err != nil {
		c.logger.Debug("event payload not decoded", "error", err)
		e = Event{body: body}
	}
	c.events.each(func(fn func(Event)) { fn(e) })
}

func (h *conn) OnDisconnect(err error) {
	c := h.client
	c.mu.Lock()
	switch {
	case c.current == h:
		h.open = false
		c.state = StateConnecting
	case h.pendingClose:
		h.pendingClose = false
	default:
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	c.logger.Debug("disconnected", "error", err)
	c.disconnected.each(func(fn func(error)) { fn(err) })
}

// OnError discards the socket and opens a fresh one.
func (h *conn) OnError(err error) {
	c := h.client
	c.mu.Lock()
	if c.current != h {
		c.mu.Unlock()
		return
	}
	c.detachLocked()
	c.openLocked()
	c.mu.Unlock()

	c.logger.Debug("transport error, reconnecting", "error", err)
	c.closeSocket(h)
}

var _ transport.Handler = (*conn)(nil)
