package link

import (
	"testing"
	"time"

	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

type message struct {
	verb string
	body transport.Body
}

// recordingHandler turns socket notifications into channels.
type recordingHandler struct {
	opens       chan struct{}
	attempts    chan int
	messages    chan message
	disconnects chan error
	errors      chan error
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		opens:       make(chan struct{}, 16),
		attempts:    make(chan int, 16),
		messages:    make(chan message, 64),
		disconnects: make(chan error, 16),
		errors:      make(chan error, 16),
	}
}

func (h *recordingHandler) OnOpen()                          { h.opens <- struct{}{} }
func (h *recordingHandler) OnReconnectAttempt(attempt int)   { h.attempts <- attempt }
func (h *recordingHandler) OnMessage(verb string, body transport.Body) {
	h.messages <- message{verb: verb, body: body}
}
func (h *recordingHandler) OnDisconnect(err error) { h.disconnects <- err }
func (h *recordingHandler) OnError(err error)      { h.errors <- err }

const waitTimeout = 2 * time.Second

func waitOpen(t *testing.T, h *recordingHandler) {
	t.Helper()
	select {
	case <-h.opens:
	case <-time.After(waitTimeout):
		t.Fatal("Timeout waiting for open")
	}
}

func waitMessage(t *testing.T, h *recordingHandler) message {
	t.Helper()
	select {
	case m := <-h.messages:
		return m
	case <-time.After(waitTimeout):
		t.Fatal("Timeout waiting for message")
	}
	return message{}
}

func waitDisconnect(t *testing.T, h *recordingHandler) error {
	t.Helper()
	select {
	case err := <-h.disconnects:
		return err
	case <-time.After(waitTimeout):
		t.Fatal("Timeout waiting for disconnect")
	}
	return nil
}

func waitAttempt(t *testing.T, h *recordingHandler) int {
	t.Helper()
	select {
	case n := <-h.attempts:
		return n
	case <-time.After(waitTimeout):
		t.Fatal("Timeout waiting for reconnect attempt")
	}
	return 0
}

func assertQuiet(t *testing.T, h *recordingHandler, d time.Duration) {
	t.Helper()
	select {
	case <-h.opens:
		t.Fatal("Unexpected open")
	case n := <-h.attempts:
		t.Fatalf("Unexpected reconnect attempt %d", n)
	case err := <-h.errors:
		t.Fatalf("Unexpected error %v", err)
	case <-time.After(d):
	}
}
