// Package hub is the core of the eventsd server: it tracks connected
// sessions, applies their consume/stop frames to a routing table and fans
// published events out to the bound sessions.
//
// Sessions arrive over websocket (ServeWebSocket) or over the gRPC bus
// stream (Connect). Each session has a bounded send queue drained by its own
// writer goroutine; a session that cannot keep up loses events rather than
// slowing the publisher down.
package hub

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmacdonaldsmith/eventsd-go/internal/eventlog"
	"github.com/rmacdonaldsmith/eventsd-go/internal/routingtable"
	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	eventlogpkg "github.com/rmacdonaldsmith/eventsd-go/pkg/eventlog"
	routingtablepkg "github.com/rmacdonaldsmith/eventsd-go/pkg/routingtable"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

var (
	// ErrClosed is returned by operations on a closed hub.
	ErrClosed = errors.New("hub closed")
	// ErrEmptyRoutingKey is returned when publishing without a routing key.
	ErrEmptyRoutingKey = errors.New("routing key cannot be empty")
)

// DefaultMaxFrameBytes caps inbound frames, matching the HTTP API's body limit.
const DefaultMaxFrameBytes = 1 << 20

// Config configures a Hub.
type Config struct {
	// SendQueueSize is the per-session outbound queue length.
	SendQueueSize int

	// WriteTimeout bounds every frame write to a session.
	WriteTimeout time.Duration

	// MaxFrameBytes is the largest inbound websocket frame. Bigger frames
	// end the session.
	MaxFrameBytes int64

	// RetainEvents is how many published events are kept for inspection.
	RetainEvents int

	// Authenticator checks gRPC bearer tokens. Nil accepts every stream.
	Authenticator Authenticator

	// Logger receives hub logs. Defaults to a discard logger.
	Logger *slog.Logger
}

// SetDefaults sets reasonable default values for unset fields.
func (c *Config) SetDefaults() {
	if c.SendQueueSize <= 0 {
		c.SendQueueSize = 256
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = DefaultMaxFrameBytes
	}
	if c.RetainEvents <= 0 {
		c.RetainEvents = eventlog.DefaultCapacity
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.DiscardHandler)
	}
}

// Hub routes events between sessions.
type Hub struct {
	cfg      Config
	logger   *slog.Logger
	table    routingtablepkg.RoutingTable
	events   eventlogpkg.EventLog
	upgrader websocket.Upgrader

	mu       sync.RWMutex
	sessions map[string]*session
	closed   bool

	published atomic.Uint64
	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// New creates a hub with an in-memory routing table and event log.
func New(cfg Config) *Hub {
	cfg.SetDefaults()
	return &Hub{
		cfg:    cfg,
		logger: cfg.Logger,
		table:  routingtable.NewInMemoryRoutingTable(),
		events: eventlog.NewInMemoryEventLog(cfg.RetainEvents),
		upgrader: websocket.Upgrader{
			Subprotocols: wire.Subprotocols(),
			// Browsers connect from any origin; access control is the
			// token checked before the upgrade.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		sessions: make(map[string]*session),
	}
}

// Publish stamps msg as an event and pushes it to every bound session.
// It returns the event and the number of sessions it was queued for.
func (h *Hub) Publish(ctx context.Context, routingKey string, msg any) (eventlogpkg.Event, int, error) {
	if routingKey == "" {
		return eventlogpkg.Event{}, 0, ErrEmptyRoutingKey
	}
	if h.isClosed() {
		return eventlogpkg.Event{}, 0, ErrClosed
	}

	event := eventlogpkg.NewEvent(routingKey, msg)
	if _, err := h.events.Append(ctx, event); err != nil {
		h.logger.Warn("failed to retain event", "id", event.ID, "error", err)
	}

	subscribers, err := h.table.Route(ctx, routingKey)
	if err != nil {
		return event, 0, fmt.Errorf("failed to route %s: %w", routingKey, err)
	}

	queued := 0
	for _, sub := range subscribers {
		s, ok := sub.(*session)
		if !ok {
			continue
		}
		if s.enqueue(transport.VerbEvent, event) {
			queued++
			continue
		}
		h.dropped.Add(1)
		s.logger.Warn("send queue full, dropping event", "id", event.ID, "routingKey", routingKey)
	}

	h.published.Add(1)
	h.delivered.Add(uint64(queued))
	h.logger.Debug("published", "routingKey", routingKey, "id", event.ID, "deliveries", queued)
	return event, queued, nil
}

// Stats is a snapshot of hub activity.
type Stats struct {
	Sessions          int    `json:"sessions"`
	WebSocketSessions int    `json:"websocketSessions"`
	GRPCSessions      int    `json:"grpcSessions"`
	Bindings          int    `json:"bindings"`
	Patterns          int    `json:"patterns"`
	Published         uint64 `json:"published"`
	Delivered         uint64 `json:"delivered"`
	Dropped           uint64 `json:"dropped"`
	RetainedEvents    int    `json:"retainedEvents"`
}

// Stats returns current counters.
func (h *Hub) Stats(ctx context.Context) (Stats, error) {
	st := Stats{
		Published: h.published.Load(),
		Delivered: h.delivered.Load(),
		Dropped:   h.dropped.Load(),
	}

	h.mu.RLock()
	for _, s := range h.sessions {
		st.Sessions++
		switch s.kind {
		case routingtablepkg.WebSocketClient:
			st.WebSocketSessions++
		case routingtablepkg.GRPCClient:
			st.GRPCSessions++
		}
	}
	h.mu.RUnlock()

	bindings, err := h.table.Bindings(ctx)
	if err != nil {
		return st, err
	}
	st.Bindings = len(bindings)
	if st.Patterns, err = h.table.PatternCount(ctx); err != nil {
		return st, err
	}

	logStats, err := h.events.GetStatistics(ctx)
	if err != nil {
		return st, err
	}
	st.RetainedEvents = logStats.RetainedEvents
	return st, nil
}

// BindingInfo describes one binding for inspection.
type BindingInfo struct {
	Pattern   string `json:"pattern"`
	Group     string `json:"group,omitempty"`
	SessionID string `json:"sessionId"`
	Transport string `json:"transport"`
	Subject   string `json:"subject,omitempty"`
}

// Bindings lists all bindings in bind order.
func (h *Hub) Bindings(ctx context.Context) ([]BindingInfo, error) {
	bindings, err := h.table.Bindings(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]BindingInfo, 0, len(bindings))
	for _, b := range bindings {
		info := BindingInfo{
			Pattern:   b.Pattern,
			Group:     b.Group,
			SessionID: b.Subscriber.ID(),
			Transport: b.Subscriber.Type().String(),
		}
		if s, ok := b.Subscriber.(*session); ok {
			info.Subject = s.subject
		}
		out = append(out, info)
	}
	return out, nil
}

// RecentEvents returns up to limit of the newest published events matching
// pattern (empty for all), oldest first.
func (h *Hub) RecentEvents(ctx context.Context, pattern string, limit int) ([]eventlogpkg.Record, error) {
	return h.events.Recent(ctx, pattern, limit)
}

// SessionCount returns the number of connected sessions.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close disconnects every session and releases the routing table and log.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil // Already closed, idempotent
	}
	h.closed = true
	sessions := make([]*session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.shutdown()
	}

	if err := h.table.Close(); err != nil {
		return fmt.Errorf("failed to close routing table: %w", err)
	}
	if err := h.events.Close(); err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	return nil
}

func (h *Hub) isClosed() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.closed
}

func (h *Hub) register(s *session) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	h.sessions[s.id] = s
	return nil
}

func (h *Hub) unregister(s *session) {
	h.mu.Lock()
	delete(h.sessions, s.id)
	closed := h.closed
	h.mu.Unlock()

	if closed {
		return
	}
	removed, err := h.table.RemoveSubscriber(context.Background(), s.id)
	if err != nil {
		s.logger.Warn("failed to remove bindings", "error", err)
		return
	}
	s.logger.Debug("session closed", "bindingsRemoved", removed)
}
