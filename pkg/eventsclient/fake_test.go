package eventsclient

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

var (
	errFakeNotOpen = errors.New("fake: not open")
	errFakeClosed  = errors.New("fake: closed")
)

// fakeTransport records every socket the client opens. Tests drive the
// sockets' notifications by hand, standing in for the transport goroutine.
type fakeTransport struct {
	mu      sync.Mutex
	sockets []*fakeSocket
}

func (f *fakeTransport) Open(target transport.Target, h transport.Handler) transport.Socket {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &fakeSocket{target: target, h: h}
	f.sockets = append(f.sockets, s)
	return s
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sockets)
}

func (f *fakeTransport) socket(t *testing.T, i int) *fakeSocket {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.Greater(t, len(f.sockets), i, "socket %d was never opened", i)
	return f.sockets[i]
}

type frame struct {
	verb string
	key  Interest
}

type fakeSocket struct {
	target transport.Target
	h      transport.Handler

	mu     sync.Mutex
	open   bool
	closed bool
	sent   []frame
	// closedWith holds the frames sent before Close.
	closedWith []frame
}

func (s *fakeSocket) Emit(verb string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errFakeClosed
	}
	if !s.open {
		return errFakeNotOpen
	}
	s.sent = append(s.sent, frame{verb: verb, key: data.(Interest)})
	return nil
}

func (s *fakeSocket) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open && !s.closed
}

func (s *fakeSocket) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closedWith = append([]frame(nil), s.sent...)
	}
	s.closed = true
	s.open = false
	return nil
}

func (s *fakeSocket) connect() {
	s.mu.Lock()
	s.open = true
	s.mu.Unlock()
	s.h.OnOpen()
}

func (s *fakeSocket) drop(err error) {
	s.mu.Lock()
	s.open = false
	s.mu.Unlock()
	s.h.OnDisconnect(err)
}

func (s *fakeSocket) push(t *testing.T, verb string, payload any) {
	t.Helper()
	b, err := wire.JSON.EncodeFrame(verb, payload)
	require.NoError(t, err)
	v, body, err := wire.JSON.DecodeFrame(b)
	require.NoError(t, err)
	s.h.OnMessage(v, body)
}

func (s *fakeSocket) frames() []frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]frame(nil), s.sent...)
}

func (s *fakeSocket) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func binds(keys ...Interest) []frame {
	out := make([]frame, len(keys))
	for i, k := range keys {
		out[i] = frame{verb: transport.VerbBind, key: k}
	}
	return out
}

func unbinds(keys ...Interest) []frame {
	out := make([]frame, len(keys))
	for i, k := range keys {
		out[i] = frame{verb: transport.VerbUnbind, key: k}
	}
	return out
}

func newTestClient(t *testing.T, keys ...Interest) (*Client, *fakeTransport) {
	t.Helper()
	ft := &fakeTransport{}
	c, err := NewClient(Config{Keys: keys, Transport: ft})
	require.NoError(t, err)
	return c, ft
}
