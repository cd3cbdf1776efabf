package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/rmacdonaldsmith/eventsd-go/internal/hub"
	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/eventlog"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/transport"
)

const testSecret = "test-secret-key"

// testServerSetup holds a hub and an HTTP API server for tests.
type testServerSetup struct {
	Hub    *hub.Hub
	Server *Server
	HTTP   *httptest.Server
}

func newTestServer(t *testing.T, cfg Config) *testServerSetup {
	t.Helper()
	if cfg.SecretKey == "" {
		cfg.SecretKey = testSecret
	}
	h := hub.New(hub.Config{})
	s := NewServer(h, cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		h.Close()
		ts.Close()
	})
	return &testServerSetup{Hub: h, Server: s, HTTP: ts}
}

func (s *testServerSetup) token(t *testing.T, clientID string) string {
	t.Helper()
	token, _, err := s.Server.Auth().GenerateToken(clientID, clientID == "admin")
	require.NoError(t, err)
	return token
}

func (s *testServerSetup) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, s.HTTP.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := s.HTTP.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

// dialSocket opens a JSON websocket session, passing the token as a query
// parameter the way browsers do.
func (s *testServerSetup) dialSocket(t *testing.T, token string) (*websocket.Conn, *http.Response, error) {
	t.Helper()
	url := "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/socket"
	if token != "" {
		url += "?token=" + token
	}
	dialer := websocket.Dialer{Subprotocols: []string{wire.JSON.Subprotocol()}}
	conn, resp, err := dialer.Dial(url, nil)
	if conn != nil {
		t.Cleanup(func() { conn.Close() })
	}
	return conn, resp, err
}

func consume(t *testing.T, conn *websocket.Conn, pattern string) {
	t.Helper()
	b, err := wire.JSON.EncodeFrame(transport.VerbBind, map[string]string{"routingKey": pattern})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, b))
}

func readEvent(t *testing.T, conn *websocket.Conn) eventlog.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	verb, body, err := wire.JSON.DecodeFrame(data)
	require.NoError(t, err)
	require.Equal(t, transport.VerbEvent, verb)
	var e eventlog.Event
	require.NoError(t, body.Decode(&e))
	return e
}
