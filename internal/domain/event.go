package domain

import (
	"context"
	"encoding/json"
	"time"
)

// EventType identifies the kind of event being published.
type EventType string

const (
	EventAgentRegistered   EventType = "agent.registered"
	EventRequestReceived   EventType = "request.received"
	EventRequestState      EventType = "request.state"
	EventRequestResponded  EventType = "request.responded"
	EventRequestCancelled  EventType = "request.cancelled"
	EventAgentCallFinished EventType = "agent.call.finished"
	EventSessionSwept      EventType = "session.swept"
)

// Event is the envelope published on the event bus.
type Event struct {
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	SessionID string          `json:"session_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// NewEvent builds an Event with a JSON-encoded payload. Encoding failures
// leave the payload empty.
func NewEvent(eventType EventType, sessionID string, payload any) Event {
	ev := Event{Type: eventType, Timestamp: time.Now(), SessionID: sessionID}
	if payload != nil {
		if raw, err := json.Marshal(payload); err == nil {
			ev.Payload = raw
		}
	}
	return ev
}

// EventHandler is a callback invoked when an event is received.
type EventHandler func(ctx context.Context, event Event)

// EventBus provides a publish/subscribe mechanism for domain events.
type EventBus interface {
	// Publish sends an event to all matching subscribers.
	Publish(ctx context.Context, event Event)
	// Subscribe registers a handler for a specific event type.
	// Returns an unsubscribe function.
	Subscribe(eventType EventType, handler EventHandler) func()
	// SubscribeAll registers a handler that receives every event.
	// Returns an unsubscribe function.
	SubscribeAll(handler EventHandler) func()
	// Close drains in-flight handlers and prevents new publishes.
	Close()
}
