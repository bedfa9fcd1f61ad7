package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"a2a-router/internal/domain"
)

// --- test doubles ---

// testBus delivers synchronously so assertions need no polling.
type testBus struct {
	mu    sync.Mutex
	typed map[domain.EventType][]domain.EventHandler
	all   []domain.EventHandler
}

func (b *testBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.Lock()
	hs := append([]domain.EventHandler{}, b.typed[event.Type]...)
	hs = append(hs, b.all...)
	b.mu.Unlock()
	for _, h := range hs {
		h(ctx, event)
	}
}

func (b *testBus) Subscribe(t domain.EventType, handler domain.EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.typed == nil {
		b.typed = make(map[domain.EventType][]domain.EventHandler)
	}
	b.typed[t] = append(b.typed[t], handler)
	return func() {}
}

func (b *testBus) SubscribeAll(handler domain.EventHandler) func() {
	b.mu.Lock()
	b.all = append(b.all, handler)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.all = nil
		b.mu.Unlock()
	}
}

func (b *testBus) Close() {}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startTestServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.Stop(context.Background())
		ts.Close()
	})
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close(websocket.StatusNormalClosure, "") })
	return ws
}

// readFrame skips event frames until a frame of the wanted type arrives.
func readFrame(t *testing.T, ws *websocket.Conn, want FrameType) Frame {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for {
		var f Frame
		require.NoError(t, wsjson.Read(ctx, ws, &f))
		if f.Type == want {
			return f
		}
	}
}

// --- tests ---

func TestServerStartAndStop(t *testing.T) {
	srv := NewServer(&testBus{}, "127.0.0.1:0", discardLogger())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.BoundAddr() != "" }, 3*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServerRPCRoundtrip(t *testing.T) {
	srv := NewServer(&testBus{}, "", discardLogger())
	srv.RegisterHandler("echo", func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		return payload, nil
	})
	ws := dialWS(t, startTestServer(t, srv))

	require.NoError(t, wsjson.Write(context.Background(), ws, Frame{
		Type:    FrameTypeRequest,
		ID:      1,
		Method:  "echo",
		Payload: json.RawMessage(`{"msg":"hello"}`),
	}))

	resp := readFrame(t, ws, FrameTypeResponse)
	assert.Equal(t, uint64(1), resp.ID)
	assert.Empty(t, resp.Error)
	assert.JSONEq(t, `{"msg":"hello"}`, string(resp.Payload))
}

func TestServerUnknownMethod(t *testing.T) {
	srv := NewServer(&testBus{}, "", discardLogger())
	ws := dialWS(t, startTestServer(t, srv))

	require.NoError(t, wsjson.Write(context.Background(), ws, Frame{Type: FrameTypeRequest, ID: 2, Method: "nonexistent"}))

	resp := readFrame(t, ws, FrameTypeResponse)
	assert.Equal(t, uint64(2), resp.ID)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, string(domain.CodeRPCMethodNotFound), resp.Code)
}

func TestServerForwardsEvents(t *testing.T) {
	bus := &testBus{}
	srv := NewServer(bus, "", discardLogger())
	ws := dialWS(t, startTestServer(t, srv))

	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 3*time.Second, 5*time.Millisecond)
	bus.Publish(context.Background(), domain.NewEvent(domain.EventAgentRegistered, "", map[string]string{"agent_id": "weather-agent-18001"}))

	frame := readFrame(t, ws, FrameTypeEvent)
	var ev domain.Event
	require.NoError(t, json.Unmarshal(frame.Payload, &ev))
	assert.Equal(t, domain.EventAgentRegistered, ev.Type)
	assert.Contains(t, string(ev.Payload), "weather-agent-18001")
}

func TestServerClientDisconnect(t *testing.T) {
	srv := NewServer(&testBus{}, "", discardLogger())
	ws := dialWS(t, startTestServer(t, srv))

	require.Eventually(t, func() bool { return srv.Clients() == 1 }, 3*time.Second, 5*time.Millisecond)
	ws.Close(websocket.StatusNormalClosure, "bye")
	assert.Eventually(t, func() bool { return srv.Clients() == 0 }, 3*time.Second, 5*time.Millisecond)
}
