package eventsclient_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/rmacdonaldsmith/eventsd-go/internal/httpapi"
	"github.com/rmacdonaldsmith/eventsd-go/internal/hub"
	"github.com/rmacdonaldsmith/eventsd-go/internal/wire"
	"github.com/rmacdonaldsmith/eventsd-go/pkg/eventsclient"
)

const (
	integrationSecret = "integration-secret"
	waitFor           = 3 * time.Second
)

// testServer runs a hub behind the HTTP API and a gRPC server. restart
// replaces the hub, which drops every session the way a server restart does.
type testServer struct {
	auth *httpapi.JWTAuth

	mu  sync.Mutex
	hub *hub.Hub
	api atomic.Pointer[http.Handler]

	http     *httptest.Server
	grpcAddr string
	grpcSrv  *grpc.Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{auth: httpapi.NewJWTAuth(integrationSecret, 0)}
	ts.install()

	ts.http = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		(*ts.api.Load()).ServeHTTP(w, r)
	}))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ts.grpcAddr = ln.Addr().String()
	ts.grpcSrv = grpc.NewServer()
	ts.grpcSrv.RegisterService(&wire.BusServiceDesc, busProxy{ts})
	go ts.grpcSrv.Serve(ln)

	t.Cleanup(func() {
		ts.grpcSrv.Stop()
		ts.current().Close()
		ts.http.Close()
	})
	return ts
}

func (ts *testServer) install() {
	h := hub.New(hub.Config{Authenticator: ts.auth})
	handler := httpapi.NewServer(h, httpapi.Config{SecretKey: integrationSecret}).Handler()

	ts.mu.Lock()
	ts.hub = h
	ts.mu.Unlock()
	ts.api.Store(&handler)
}

func (ts *testServer) current() *hub.Hub {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.hub
}

func (ts *testServer) restart(t *testing.T) {
	t.Helper()
	old := ts.current()
	ts.install()
	require.NoError(t, old.Close())
}

// busProxy forwards gRPC streams to whichever hub is current.
type busProxy struct{ ts *testServer }

func (p busProxy) Connect(stream grpc.ServerStream) error {
	return p.ts.current().Connect(stream)
}

func (ts *testServer) token(t *testing.T, clientID string) string {
	t.Helper()
	token, _, err := ts.auth.GenerateToken(clientID, false)
	require.NoError(t, err)
	return token
}

func (ts *testServer) config(t *testing.T, protocol, codec string, keys ...eventsclient.Interest) eventsclient.Config {
	t.Helper()
	addr := ts.grpcAddr
	if protocol == eventsclient.ProtocolWebSocket {
		u, err := url.Parse(ts.http.URL)
		require.NoError(t, err)
		addr = u.Host
	}
	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return eventsclient.Config{
		Host:              host,
		Port:              port,
		Protocol:          protocol,
		Codec:             codec,
		Token:             ts.token(t, "integration"),
		Keys:              keys,
		ReconnectDelay:    10 * time.Millisecond,
		MaxReconnectDelay: 50 * time.Millisecond,
	}
}

func (ts *testServer) waitBindings(t *testing.T, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		b, err := ts.current().Bindings(context.Background())
		return err == nil && len(b) == n
	}, waitFor, 5*time.Millisecond, "expected %d bindings", n)
}

func (ts *testServer) publish(t *testing.T, key string, msg any) int {
	t.Helper()
	_, n, err := ts.current().Publish(context.Background(), key, msg)
	require.NoError(t, err)
	return n
}

// startClient starts a client and waits for its first connection.
func startClient(t *testing.T, cfg eventsclient.Config) (*eventsclient.Client, <-chan eventsclient.Event, <-chan struct{}) {
	t.Helper()
	c, err := eventsclient.NewClient(cfg)
	require.NoError(t, err)

	events := make(chan eventsclient.Event, 256)
	connected := make(chan struct{}, 16)
	c.OnEvent(func(e eventsclient.Event) { events <- e })
	c.OnConnected(func() { connected <- struct{}{} })

	c.Start()
	t.Cleanup(func() { c.Close() })

	select {
	case <-connected:
	case <-time.After(waitFor):
		t.Fatalf("client did not connect to %s", c.URL())
	}
	require.Equal(t, eventsclient.StateConnected, c.State())
	return c, events, connected
}

func nextEvent(t *testing.T, events <-chan eventsclient.Event) eventsclient.Event {
	t.Helper()
	select {
	case e := <-events:
		return e
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for event")
		return eventsclient.Event{}
	}
}

func noEvent(t *testing.T, events <-chan eventsclient.Event) {
	t.Helper()
	select {
	case e := <-events:
		t.Fatalf("unexpected event %s", e.RoutingKey)
	case <-time.After(100 * time.Millisecond):
	}
}

type variant struct {
	name     string
	protocol string
	codec    string
}

var variants = []variant{
	{"websocket-json", eventsclient.ProtocolWebSocket, "json"},
	{"websocket-cbor", eventsclient.ProtocolWebSocket, "cbor"},
	{"grpc", eventsclient.ProtocolGRPC, "json"},
}

func TestIntegration_SubscribeAndReceive(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			ts := newTestServer(t)
			c, events, _ := startClient(t, ts.config(t, v.protocol, v.codec,
				eventsclient.Interest{RoutingKey: "event.testEvent.#"}))
			ts.waitBindings(t, 1)

			assert.Equal(t, 1, ts.publish(t, "event.testEvent.one", "testing"))
			got := nextEvent(t, events)
			assert.Equal(t, "event.testEvent.one", got.RoutingKey)
			assert.Equal(t, "testing", got.Msg)
			assert.NotEmpty(t, got.ID)
			assert.NotZero(t, got.Time)

			// Incremental bind while connected.
			require.True(t, c.AddKey("metrics.*"))
			ts.waitBindings(t, 2)
			ts.publish(t, "metrics.cpu", map[string]any{"load": 0.5})
			got = nextEvent(t, events)
			assert.Equal(t, "metrics.cpu", got.RoutingKey)
			var body struct {
				Msg struct {
					Load float64 `json:"load"`
				} `json:"msg"`
			}
			require.NoError(t, got.Decode(&body))
			assert.InDelta(t, 0.5, body.Msg.Load, 1e-9)

			// Incremental unbind while connected.
			require.True(t, c.RemoveKey("event.testEvent.#"))
			ts.waitBindings(t, 1)
			assert.Equal(t, 0, ts.publish(t, "event.testEvent.two", "gone"))
			noEvent(t, events)
		})
	}
}

func TestIntegration_ResyncAfterRestart(t *testing.T) {
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			ts := newTestServer(t)
			c, events, connected := startClient(t, ts.config(t, v.protocol, v.codec,
				eventsclient.Interest{RoutingKey: "orders.#"}))
			ts.waitBindings(t, 1)

			reconnecting := make(chan int, 16)
			c.OnReconnecting(func(attempt int) { reconnecting <- attempt })

			ts.restart(t)

			select {
			case <-connected:
			case <-time.After(waitFor):
				t.Fatal("client did not reconnect")
			}
			assert.NotEmpty(t, reconnecting)

			// The new server learns every key from the resync.
			ts.waitBindings(t, 1)
			ts.publish(t, "orders.created", "after restart")
			assert.Equal(t, "after restart", nextEvent(t, events).Msg)

			// Keys added while connected survive the next restart too.
			require.True(t, c.AddKey(eventsclient.Interest{RoutingKey: "invoices.*", ID: "billing"}))
			ts.waitBindings(t, 2)
			ts.restart(t)
			select {
			case <-connected:
			case <-time.After(waitFor):
				t.Fatal("client did not reconnect")
			}
			ts.waitBindings(t, 2)

			bindings, err := ts.current().Bindings(context.Background())
			require.NoError(t, err)
			assert.Equal(t, "orders.#", bindings[0].Pattern)
			assert.Equal(t, "invoices.*", bindings[1].Pattern)
			assert.Equal(t, "billing", bindings[1].Group)
		})
	}
}

func TestIntegration_SharedGroupSplitsDelivery(t *testing.T) {
	ts := newTestServer(t)
	shared := eventsclient.Interest{RoutingKey: "jobs.*", ID: "workers"}

	_, eventsA, _ := startClient(t, ts.config(t, eventsclient.ProtocolWebSocket, "json", shared))
	_, eventsB, _ := startClient(t, ts.config(t, eventsclient.ProtocolGRPC, "json", shared))
	_, eventsAll, _ := startClient(t, ts.config(t, eventsclient.ProtocolWebSocket, "cbor",
		eventsclient.Interest{RoutingKey: "jobs.*"}))
	ts.waitBindings(t, 3)

	const n = 20
	for i := range n {
		assert.Equal(t, 2, ts.publish(t, fmt.Sprintf("jobs.j%d", i), i))
	}

	seen := make(map[string]int)
	for range n {
		seen[nextEvent(t, eventsAll).RoutingKey]++
	}
	assert.Len(t, seen, n)

	split := make(map[string]string)
	var countA, countB int
	for countA+countB < n {
		select {
		case e := <-eventsA:
			_, dup := split[e.RoutingKey]
			assert.False(t, dup, "%s delivered twice", e.RoutingKey)
			split[e.RoutingKey] = "a"
			countA++
		case e := <-eventsB:
			_, dup := split[e.RoutingKey]
			assert.False(t, dup, "%s delivered twice", e.RoutingKey)
			split[e.RoutingKey] = "b"
			countB++
		case <-time.After(waitFor):
			t.Fatalf("only %d of %d events delivered to the group", countA+countB, n)
		}
	}
	assert.Equal(t, n/2, countA)
	assert.Equal(t, n/2, countB)
	noEvent(t, eventsA)
	noEvent(t, eventsB)
}

func TestIntegration_StopUnbindsAndDisconnects(t *testing.T) {
	ts := newTestServer(t)
	c, _, _ := startClient(t, ts.config(t, eventsclient.ProtocolWebSocket, "json",
		eventsclient.Interest{RoutingKey: "a.*"},
		eventsclient.Interest{RoutingKey: "b.*"}))
	ts.waitBindings(t, 2)

	disconnected := make(chan error, 1)
	c.OnDisconnect(func(err error) { disconnected <- err })

	done := make(chan struct{})
	c.Stop(func() { close(done) })
	select {
	case <-done:
	case <-time.After(waitFor):
		t.Fatal("stop did not complete")
	}
	assert.Equal(t, eventsclient.StateDisconnected, c.State())

	ts.waitBindings(t, 0)
	require.Eventually(t, func() bool { return ts.current().SessionCount() == 0 }, waitFor, 5*time.Millisecond)

	// The registry outlives the connection.
	assert.Len(t, c.Keys(), 2)
}

func TestIntegration_RejectsBadToken(t *testing.T) {
	ts := newTestServer(t)
	for _, v := range variants {
		t.Run(v.name, func(t *testing.T) {
			cfg := ts.config(t, v.protocol, v.codec, eventsclient.Interest{RoutingKey: "x.*"})
			cfg.Token = "not-a-jwt"
			cfg.MaxReconnectAttempts = 1

			c, err := eventsclient.NewClient(cfg)
			require.NoError(t, err)
			connected := make(chan struct{}, 1)
			c.OnConnected(func() { connected <- struct{}{} })
			c.Start()
			t.Cleanup(func() { c.Close() })

			select {
			case <-connected:
				t.Fatal("connected with an invalid token")
			case <-time.After(200 * time.Millisecond):
			}
			assert.NotEqual(t, eventsclient.StateConnected, c.State())
			assert.Equal(t, 0, ts.current().SessionCount())
		})
	}
}
