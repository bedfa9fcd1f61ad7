package routerclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/domain"
)

const eventBuffer = 256

// ErrSessionClosed is returned by calls on a closed Session.
var ErrSessionClosed = errors.New("router session closed")

// RemoteError is an error frame returned by the gateway.
type RemoteError struct {
	Code    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return e.Code + ": " + e.Message
}

// Is matches the domain sentinel that carries the same error code.
func (e *RemoteError) Is(target error) bool {
	code := domain.ErrorCodeOf(target)
	return code != domain.CodeUnknown && string(code) == e.Code
}

// Session is a WebSocket connection to the gateway. It multiplexes RPC calls
// and delivers the router's event stream.
type Session struct {
	conn   *websocket.Conn
	nextID atomic.Uint64
	events chan domain.Event

	mu      sync.Mutex
	pending map[uint64]chan gateway.Frame
	err     error

	done chan struct{}
}

// WebSocketURL maps an http(s) router address to its /ws endpoint.
func WebSocketURL(baseURL string) string {
	u := strings.TrimRight(baseURL, "/")
	switch {
	case strings.HasPrefix(u, "https://"):
		u = "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		u = "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u + "/ws"
}

// Dial opens a Session with the router at baseURL.
func Dial(ctx context.Context, baseURL string) (*Session, error) {
	conn, _, err := websocket.Dial(ctx, WebSocketURL(baseURL), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAgentUnreachable, err)
	}
	conn.SetReadLimit(maxResponseBytes)
	s := &Session{
		conn:    conn,
		events:  make(chan domain.Event, eventBuffer),
		pending: make(map[uint64]chan gateway.Frame),
		done:    make(chan struct{}),
	}
	go s.readLoop()
	return s, nil
}

// Events delivers router events. The channel closes with the session. Events
// are dropped while the buffer is full.
func (s *Session) Events() <-chan domain.Event { return s.events }

// Done is closed when the connection ends.
func (s *Session) Done() <-chan struct{} { return s.done }

// Err returns why the session ended, or nil while it is open.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close ends the session.
func (s *Session) Close() error {
	return s.conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Session) readLoop() {
	defer close(s.done)
	defer close(s.events)
	for {
		var f gateway.Frame
		if err := wsjson.Read(context.Background(), s.conn, &f); err != nil {
			s.fail(err)
			return
		}
		switch f.Type {
		case gateway.FrameTypeResponse:
			s.mu.Lock()
			ch, ok := s.pending[f.ID]
			delete(s.pending, f.ID)
			s.mu.Unlock()
			if ok {
				ch <- f
			}
		case gateway.FrameTypeEvent:
			var ev domain.Event
			if json.Unmarshal(f.Payload, &ev) != nil {
				continue
			}
			select {
			case s.events <- ev:
			default:
			}
		}
	}
}

func (s *Session) fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if websocket.CloseStatus(err) == websocket.StatusNormalClosure {
		err = ErrSessionClosed
	}
	s.err = err
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// Call sends one RPC request and decodes the result into out.
func (s *Session) Call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode %s: %w", method, err)
	}
	id := s.nextID.Add(1)
	ch := make(chan gateway.Frame, 1)

	s.mu.Lock()
	if s.err != nil {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.pending[id] = ch
	s.mu.Unlock()

	req := gateway.Frame{Type: gateway.FrameTypeRequest, ID: id, Method: method, Payload: raw}
	if err := wsjson.Write(ctx, s.conn, req); err != nil {
		s.forget(id)
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		s.forget(id)
		return ctx.Err()
	case f, ok := <-ch:
		if !ok {
			return ErrSessionClosed
		}
		if f.Error != "" {
			return &RemoteError{Code: f.Code, Message: f.Error}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(f.Payload, out); err != nil {
			return fmt.Errorf("decode %s: %w", method, err)
		}
		return nil
	}
}

func (s *Session) forget(id uint64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Chat routes text under requestID and waits for the reply.
func (s *Session) Chat(ctx context.Context, requestID, text string) (domain.Reply, error) {
	var reply domain.Reply
	err := s.Call(ctx, gateway.MethodChatSend, gateway.ChatSendRequest{RequestID: requestID, Text: text}, &reply)
	return reply, err
}

// Cancel asks the router to stop requestID. It reports whether the request
// was still running.
func (s *Session) Cancel(ctx context.Context, requestID string) (bool, error) {
	var res gateway.ChatCancelResult
	err := s.Call(ctx, gateway.MethodChatCancel, gateway.ChatCancelRequest{RequestID: requestID}, &res)
	return res.Cancelled, err
}

// SessionStats reads the router's session counters.
func (s *Session) SessionStats(ctx context.Context) (gateway.SessionStats, error) {
	var st gateway.SessionStats
	err := s.Call(ctx, gateway.MethodSessionStats, struct{}{}, &st)
	return st, err
}
