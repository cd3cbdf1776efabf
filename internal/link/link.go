// Package link provides the reconnecting sockets the eventsd client runs on.
//
// A link socket owns one goroutine that dials, announces the connection,
// reads frames until the connection fails and then waits out an exponential
// backoff before dialling again. Every notification of a socket is
// delivered from that goroutine, so handlers observe open, messages and
// disconnect strictly in order. Outbound frames go through a per-connection
// queue drained by a writer goroutine; nothing is carried over from one
// connection to the next.
//
// Two dialers are provided: websocket (gorilla/websocket, JSON or CBOR
// frames) and gRPC (a bidirectional stream of structpb frames).
package link

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rmacdonaldsmith/eventsd-go/internal/backoff"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

var (
	// ErrNotOpen is returned by Emit while no connection is open.
	ErrNotOpen = errors.New("link: connection not open")
	// ErrClosed is returned by Emit after Close.
	ErrClosed = errors.New("link: socket closed")
	// ErrQueueFull is returned by Emit when the send queue is full.
	ErrQueueFull = errors.New("link: send queue full")
	// ErrReconnectExhausted is reported through OnError when the socket
	// gives up reconnecting.
	ErrReconnectExhausted = errors.New("link: reconnection attempts exhausted")
	// ErrMalformedFrame marks inbound frames that could not be decoded.
	// They are skipped without dropping the connection.
	ErrMalformedFrame = errors.New("link: malformed frame")
	// ErrNotAccepted is returned by a dial the server answered without
	// accepting the stream.
	ErrNotAccepted = errors.New("link: stream not accepted by server")
)

// Conn is one established connection.
type Conn interface {
	// ReadFrame blocks until the next inbound frame. Decoding failures are
	// wrapped with ErrMalformedFrame; any other error ends the connection.
	ReadFrame() (string, transport.Body, error)

	// WriteFrame sends a frame. It is only called from the writer goroutine.
	WriteFrame(verb string, data any) error

	// CloseWrite starts a graceful close after the last frame.
	CloseWrite() error

	// Close tears the connection down.
	Close() error
}

// Dialer establishes connections.
type Dialer interface {
	Dial(ctx context.Context, target transport.Target) (Conn, error)
}

// Options configures reconnection and queueing.
type Options struct {
	// Backoff controls the delay between reconnection attempts.
	Backoff backoff.Config

	// MaxReconnectAttempts bounds consecutive failed attempts (0 = unlimited).
	MaxReconnectAttempts int

	// SendQueueSize is the per-connection outbound queue length.
	SendQueueSize int

	// CloseTimeout bounds how long a graceful close waits for the peer.
	CloseTimeout time.Duration

	// Logger receives debug output. Defaults to a discard logger.
	Logger *slog.Logger
}

// SetDefaults sets reasonable default values for unset fields.
func (o *Options) SetDefaults() {
	o.Backoff.SetDefaults()
	if o.SendQueueSize <= 0 {
		o.SendQueueSize = 256
	}
	if o.CloseTimeout <= 0 {
		o.CloseTimeout = time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
}

// Transport opens reconnecting sockets through a Dialer.
type Transport struct {
	dialer Dialer
	opts   Options
}

// New creates a Transport around dialer.
func New(dialer Dialer, opts Options) *Transport {
	opts.SetDefaults()
	return &Transport{dialer: dialer, opts: opts}
}

// Open starts connecting to target and returns immediately.
func (t *Transport) Open(target transport.Target, h transport.Handler) transport.Socket {
	ctx, cancel := context.WithCancel(context.Background())
	s := &socket{
		dialer:  t.dialer,
		target:  target,
		handler: h,
		opts:    t.opts,
		logger:  t.opts.Logger.With("target", target.Address()),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go s.run()
	return s
}

type outbound struct {
	verb  string
	data  any
	close bool
}

type session struct {
	conn  Conn
	queue chan outbound
	stop  chan struct{}
}

type socket struct {
	dialer  Dialer
	target  transport.Target
	handler transport.Handler
	opts    Options
	logger  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	active *session
	closed bool
}

// Emit queues a frame on the open connection.
func (s *socket) Emit(verb string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.active == nil {
		return ErrNotOpen
	}
	select {
	case s.active.queue <- outbound{verb: verb, data: data}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Open reports whether a connection is currently open.
func (s *socket) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active != nil && !s.closed
}

// Close stops the socket. Frames queued before Close are still written.
func (s *socket) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	sess := s.active
	s.mu.Unlock()

	if sess == nil {
		s.cancel()
		return nil
	}

	select {
	case sess.queue <- outbound{close: true}:
	default:
		s.logger.Debug("send queue full, closing without flush")
		s.cancel()
		return sess.conn.Close()
	}
	return nil
}

func (s *socket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *socket) run() {
	defer close(s.done)
	defer s.cancel()

	bo := backoff.New(s.opts.Backoff)
	attempt := 0
	for {
		if attempt > 0 {
			if limit := s.opts.MaxReconnectAttempts; limit > 0 && attempt > limit {
				s.logger.Debug("giving up reconnecting", "attempts", limit)
				s.handler.OnError(fmt.Errorf("%w after %d attempts", ErrReconnectExhausted, limit))
				return
			}

			delay := bo.Next()
			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
			if s.isClosed() {
				return
			}
			s.logger.Debug("reconnecting", "attempt", attempt, "delay", delay)
			s.handler.OnReconnectAttempt(attempt)
		}

		conn, err := s.dialer.Dial(s.ctx, s.target)
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Debug("dial failed", "error", err, "backoff", bo.Current())
			attempt++
			continue
		}

		bo.Reset()
		s.serve(conn)
		if s.isClosed() {
			return
		}
		attempt = 1
	}
}

// serve runs one connection until it ends.
func (s *socket) serve(conn Conn) {
	sess := &session{
		conn:  conn,
		queue: make(chan outbound, s.opts.SendQueueSize),
		stop:  make(chan struct{}),
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		conn.Close()
		return
	}
	s.active = sess
	s.mu.Unlock()

	writerDone := make(chan struct{})
	go s.writeLoop(sess, writerDone)

	s.logger.Debug("connected")
	s.handler.OnOpen()

	err := s.readLoop(conn)

	s.mu.Lock()
	s.active = nil
	closed := s.closed
	s.mu.Unlock()

	close(sess.stop)
	<-writerDone
	conn.Close()

	if closed {
		err = nil
	}
	s.logger.Debug("connection closed", "error", err)
	s.handler.OnDisconnect(err)
}

func (s *socket) readLoop(conn Conn) error {
	for {
		verb, body, err := conn.ReadFrame()
		if err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				s.logger.Debug("skipping frame", "error", err)
				continue
			}
			return err
		}
		s.handler.OnMessage(verb, body)
	}
}

func (s *socket) writeLoop(sess *session, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-sess.stop:
			return
		case out := <-sess.queue:
			if out.close {
				if err := sess.conn.CloseWrite(); err != nil {
					s.logger.Debug("graceful close failed", "error", err)
					sess.conn.Close()
					return
				}
				timer := time.NewTimer(s.opts.CloseTimeout)
				select {
				case <-sess.stop:
				case <-timer.C:
					sess.conn.Close()
				}
				timer.Stop()
				return
			}

			if err := sess.conn.WriteFrame(out.verb, out.data); err != nil {
				s.logger.Debug("write failed", "verb", out.verb, "error", err)
				sess.conn.Close()
				return
			}
		}
	}
}
