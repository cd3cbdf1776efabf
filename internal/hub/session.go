package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	routingtablepkg "github.com/rmacdonaldsmith/eventsd-go/pkg/routingtable"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

// interest is the payload of consume and stop frames.
type interest struct {
	RoutingKey string `json:"routingKey" cbor:"routingKey"`
	ID         string `json:"id,omitempty" cbor:"id,omitempty"`
}

type outFrame struct {
	verb string
	data any
}

// session is one connected client. It implements routingtable.Subscriber.
type session struct {
	id      string
	kind    routingtablepkg.SubscriberType
	subject string
	logger  *slog.Logger

	queue chan outFrame
	done  chan struct{}
	once  sync.Once

	write func(verb string, data any) error
	// teardown forces the transport's read loop to return. May be nil.
	teardown func()
}

func (h *Hub) newSession(kind routingtablepkg.SubscriberType, subject, remote string) *session {
	id := uuid.NewString()
	return &session{
		id:      id,
		kind:    kind,
		subject: subject,
		logger: h.logger.With(
			slog.Group("session", "id", id, "transport", kind.String(), "remote", remote),
		),
		queue: make(chan outFrame, h.cfg.SendQueueSize),
		done:  make(chan struct{}),
	}
}

func (s *session) ID() string {
	return s.id
}

func (s *session) Type() routingtablepkg.SubscriberType {
	return s.kind
}

// enqueue queues a frame without blocking and reports whether it fit.
func (s *session) enqueue(verb string, data any) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- outFrame{verb: verb, data: data}:
		return true
	default:
		return false
	}
}

// writeLoop drains the queue until the session ends.
func (s *session) writeLoop(finished chan<- struct{}) {
	defer close(finished)
	for {
		select {
		case <-s.done:
			return
		case f := <-s.queue:
			if err := s.write(f.verb, f.data); err != nil {
				s.logger.Debug("write failed", "verb", f.verb, "error", err)
				s.shutdown()
				return
			}
		}
	}
}

// shutdown ends the session. Safe to call more than once.
func (s *session) shutdown() {
	s.once.Do(func() {
		close(s.done)
		if s.teardown != nil {
			s.teardown()
		}
	})
}

// handleFrame applies one inbound frame.
func (h *Hub) handleFrame(ctx context.Context, s *session, verb string, body transport.Body) {
	switch verb {
	case transport.VerbBind, transport.VerbUnbind:
	default:
		s.logger.Debug("ignoring frame", "verb", verb)
		return
	}

	var in interest
	if err := body.Decode(&in); err != nil || in.RoutingKey == "" {
		s.logger.Debug("ignoring frame without routing key", "verb", verb, "error", err)
		return
	}

	if verb == transport.VerbBind {
		err := h.table.Bind(ctx, routingtablepkg.Binding{
			Pattern:    in.RoutingKey,
			Group:      in.ID,
			Subscriber: s,
		})
		if err != nil {
			s.logger.Warn("bind failed", "routingKey", in.RoutingKey, "error", err)
			return
		}
		s.logger.Debug("bind", "routingKey", in.RoutingKey, "id", in.ID)
		return
	}

	err := h.table.Unbind(ctx, in.RoutingKey, in.ID, s.id)
	switch {
	case errors.Is(err, routingtablepkg.ErrBindingNotFound):
		s.logger.Debug("unbind of unknown binding", "routingKey", in.RoutingKey, "id", in.ID)
	case err != nil:
		s.logger.Warn("unbind failed", "routingKey", in.RoutingKey, "error", err)
	default:
		s.logger.Debug("unbind", "routingKey", in.RoutingKey, "id", in.ID)
	}
}

// run registers s, serves it with readLoop and cleans up afterwards.
// readLoop must return once s.done is closed or the peer goes away.
func (h *Hub) run(s *session, readLoop func() error) error {
	if err := h.register(s); err != nil {
		return err
	}
	s.logger.Debug("session opened", "subject", s.subject)

	writerDone := make(chan struct{})
	go s.writeLoop(writerDone)

	err := readLoop()

	s.shutdown()
	<-writerDone
	h.unregister(s)
	return err
}
