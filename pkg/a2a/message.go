package a2a

import (
	"strings"

	"github.com/google/uuid"
)

// Roles.
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// PartKindText marks a text part.
const PartKindText = "text"

// Part is one piece of message content. Only text parts are produced.
type Part struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
}

// TextPart builds a text part.
func TextPart(text string) Part {
	return Part{Kind: PartKindText, Text: text}
}

// Message is a conversational turn.
type Message struct {
	Kind      string `json:"kind,omitempty"`
	Role      string `json:"role"`
	Parts     []Part `json:"parts"`
	MessageID string `json:"messageId"`
	ContextID string `json:"contextId,omitempty"`
	TaskID    string `json:"taskId,omitempty"`
}

// NewTextMessage builds a single-part message with a fresh id.
func NewTextMessage(role, text string) Message {
	return Message{
		Kind:      "message",
		Role:      role,
		Parts:     []Part{TextPart(text)},
		MessageID: uuid.NewString(),
	}
}

// Text joins the message's text parts with newlines.
func (m Message) Text() string {
	var texts []string
	for _, p := range m.Parts {
		if p.Kind == PartKindText && p.Text != "" {
			texts = append(texts, p.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// SendMetadata is the router's metadata on a message/send call.
type SendMetadata struct {
	SkillContext string `json:"skill_context"`
	Orchestrator string `json:"orchestrator,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

// MessageSendParams are the params of message/send.
type MessageSendParams struct {
	Message  Message       `json:"message"`
	Metadata *SendMetadata `json:"metadata,omitempty"`
}

// TaskIDParams are the params of tasks/cancel.
type TaskIDParams struct {
	ID string `json:"id"`
}

// Task states.
const (
	TaskCompleted = "completed"
	TaskCanceled  = "canceled"
	TaskFailed    = "failed"
)

// TaskStatus is the state of a task.
type TaskStatus struct {
	State   string   `json:"state"`
	Message *Message `json:"message,omitempty"`
}

// Artifact is an output produced by a task.
type Artifact struct {
	ArtifactID string `json:"artifactId"`
	Name       string `json:"name,omitempty"`
	Parts      []Part `json:"parts"`
}

// Task is the long-form result of message/send.
type Task struct {
	Kind      string     `json:"kind"`
	ID        string     `json:"id"`
	ContextID string     `json:"contextId,omitempty"`
	Status    TaskStatus `json:"status"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
}
