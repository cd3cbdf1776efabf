package hub

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	routingtablepkg "github.com/rmacdonaldsmith/eventsd-go/pkg/routingtable"
)

// ServeWebSocket upgrades the request and serves the session until the
// client goes away. The frame codec follows the negotiated subprotocol;
// clients that offer none speak JSON.
func (h *Hub) ServeWebSocket(w http.ResponseWriter, r *http.Request) {
	if h.isClosed() {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the error response.
		h.logger.Debug("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(h.cfg.MaxFrameBytes)

	codec := wire.CodecBySubprotocol(conn.Subprotocol())
	messageType := websocket.TextMessage
	if codec.Binary() {
		messageType = websocket.BinaryMessage
	}

	s := h.newSession(routingtablepkg.WebSocketClient, SubjectFromContext(r.Context()), r.RemoteAddr)
	s.logger = s.logger.With("codec", codec.Name())
	s.write = func(verb string, data any) error {
		b, err := codec.EncodeFrame(verb, data)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
		return conn.WriteMessage(messageType, b)
	}
	s.teardown = func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server closing")
		conn.WriteControl(websocket.CloseMessage, msg, deadline)
		conn.Close()
	}

	err = h.run(s, func() error {
		for {
			mt, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return nil
				}
				return err
			}
			if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
				continue
			}
			verb, body, err := codec.DecodeFrame(data)
			if err != nil {
				s.logger.Debug("malformed frame", "error", err)
				continue
			}
			h.handleFrame(context.Background(), s, verb, body)
		}
	})
	if err != nil {
		s.logger.Debug("websocket session ended", "error", err)
	}
}
