// Package chat is routerctl's interactive conversation view. It talks to a
// running router over the gateway WebSocket and shows each reply with the
// route it took.
package chat

import (
	"time"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/domain"
)

// ReplyMsg carries the outcome of one chat.send call. Gen identifies the
// request so replies to abandoned requests can be discarded.
type ReplyMsg struct {
	Reply   domain.Reply
	Err     error
	Gen     uint64
	Elapsed time.Duration
}

// EventMsg is one event streamed from the router.
type EventMsg struct {
	Event domain.Event
}

// EventsClosedMsg reports that the event stream ended with the session.
type EventsClosedMsg struct{}

// AgentsMsg carries the router's agent inventory.
type AgentsMsg struct {
	Agents gateway.AgentsResponse
	Err    error
}

// StatusMsg carries the router's status snapshot.
type StatusMsg struct {
	Status gateway.StatusResponse
	Err    error
}

// CancelledMsg reports the router's answer to chat.cancel.
type CancelledMsg struct {
	RequestID string
	Running   bool
	Err       error
}

// StreamTickMsg drives progressive rendering of a reply.
type StreamTickMsg struct{}
