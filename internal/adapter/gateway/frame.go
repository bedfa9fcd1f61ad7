package gateway

import "encoding/json"

// FrameType identifies the kind of frame sent over the WebSocket connection.
type FrameType string

const (
	FrameTypeRequest  FrameType = "request"
	FrameTypeResponse FrameType = "response"
	FrameTypeEvent    FrameType = "event"
)

// Frame is the envelope exchanged with WS clients. Requests carry Method and
// an ID the client picks; the matching response echoes the ID. Events carry a
// domain.Event in Payload and no ID.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      uint64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
	Error   string          `json:"error,omitempty"`
	Code    string          `json:"code,omitempty"`
}

// WebSocket RPC methods served by RegisterDefaultHandlers.
const (
	MethodChatSend      = "chat.send"
	MethodChatCancel    = "chat.cancel"
	MethodRegistryList  = "registry.list"
	MethodRegistryStats = "registry.stats"
	MethodSessionStats  = "session.stats"
)
