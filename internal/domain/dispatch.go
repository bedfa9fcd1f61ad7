package domain

import (
	"context"
	"fmt"
)

// CallMetadata travels with a dispatch call next to the user text.
type CallMetadata struct {
	SkillContext string `json:"skill_context,omitempty"`
	Orchestrator string `json:"orchestrator,omitempty"`
	SessionID    string `json:"session_id,omitempty"`
}

// AgentCaller sends text to a downstream agent and returns its reply text.
type AgentCaller interface {
	Send(ctx context.Context, address, text string, meta CallMetadata) (string, error)
}

// AgentDirectory is the read side of the capability registry.
type AgentDirectory interface {
	// Discover returns healthy agents declaring skillID, in registration order.
	Discover(skillID string) []AgentDescriptor
	DiscoverMany(skillIDs []string) map[string][]AgentDescriptor
	ListAll() []AgentDescriptor
	Stats() RegistryStats
}

// AgentStatusError reports a non-success HTTP status from an agent.
type AgentStatusError struct {
	StatusCode int
}

func (e *AgentStatusError) Error() string {
	return fmt.Sprintf("%s: %d", ErrAgentStatus, e.StatusCode)
}

func (e *AgentStatusError) Unwrap() error { return ErrAgentStatus }
