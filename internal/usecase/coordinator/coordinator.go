// Package coordinator dispatches skills to downstream agents, either all at
// once or as a chain that carries context from one agent to the next.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/tracer"
)

// Sessions is the slice of the context propagator the chain needs.
type Sessions interface {
	BuildContextualRequest(sessionID, original, targetSkill string) string
	StoreResponse(sessionID, skill, text string)
	ExtractContext(ctx context.Context, sessionID, response, skill string) string
}

// Coordinator runs dispatch plans.
type Coordinator struct {
	caller       domain.AgentCaller
	sessions     Sessions
	bus          domain.EventBus
	orchestrator string
	logger       *slog.Logger
}

// New creates a Coordinator. orchestrator is sent to agents as the caller
// name; bus may be nil.
func New(caller domain.AgentCaller, sessions Sessions, bus domain.EventBus, orchestrator string, logger *slog.Logger) *Coordinator {
	return &Coordinator{caller: caller, sessions: sessions, bus: bus, orchestrator: orchestrator, logger: logger}
}

type callFinished struct {
	Skill      string `json:"skill"`
	AgentID    string `json:"agent_id"`
	Failed     bool   `json:"failed"`
	DurationMS int64  `json:"duration_ms"`
}

// CallAgent sends text to agent on behalf of skill. Failures come back as a
// descriptive reply with Failed set, never as an error.
func (c *Coordinator) CallAgent(ctx context.Context, agent domain.AgentDescriptor, text, skill, sessionID string) domain.SkillResponse {
	start := time.Now()
	out := domain.SkillResponse{SkillID: skill, AgentID: agent.ID}

	reply, err := c.caller.Send(ctx, agent.Address, text, domain.CallMetadata{
		SkillContext: skill,
		Orchestrator: c.orchestrator,
		SessionID:    sessionID,
	})
	switch {
	case err != nil:
		out.Text, out.Failed = failureText(agent.Name, err), true
		c.logger.Warn("agent call failed",
			"skill", skill,
			"agent_id", agent.ID,
			"session_id", sessionID,
			"input", text,
			"error", err,
		)
	case reply == "":
		out.Text = fmt.Sprintf("%s processed the request.", agent.Name)
	default:
		out.Text = reply
	}

	if c.bus != nil {
		c.bus.Publish(ctx, domain.NewEvent(domain.EventAgentCallFinished, sessionID, callFinished{
			Skill:      skill,
			AgentID:    agent.ID,
			Failed:     out.Failed,
			DurationMS: time.Since(start).Milliseconds(),
		}))
	}
	return out
}

func failureText(agentName string, err error) string {
	var status *domain.AgentStatusError
	switch {
	case errors.As(err, &status):
		return fmt.Sprintf("%s request failed (status %d).", agentName, status.StatusCode)
	case errors.Is(err, context.Canceled):
		return fmt.Sprintf("The request to %s was cancelled.", agentName)
	case errors.Is(err, domain.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return fmt.Sprintf("%s did not respond in time.", agentName)
	default:
		return fmt.Sprintf("An error occurred while communicating with %s.", agentName)
	}
}

func missingAgentText(skill string) string {
	return fmt.Sprintf("An error occurred while processing %s.", skill)
}

// DispatchParallel sends text to the first agent of every skill concurrently
// and waits for all of them. Skills with no agent are skipped. Responses keep
// the order of skills. When sessionID is set each response is stored on it.
func (c *Coordinator) DispatchParallel(ctx context.Context, skills []string, agents map[string][]domain.AgentDescriptor, text, sessionID string) []domain.SkillResponse {
	ctx, span := tracer.StartSpan(ctx, "coordinator.parallel")
	defer span.End()
	span.SetAttributes(tracer.StringsAttr("skills", skills))

	results := make([]*domain.SkillResponse, len(skills))
	var g errgroup.Group
	for i, skill := range skills {
		candidates := agents[skill]
		if len(candidates) == 0 {
			c.logger.Warn("no agent for skill", "skill", skill, "session_id", sessionID)
			continue
		}
		agent := candidates[0]
		c.logger.Debug("parallel dispatch", "skill", skill, "agent_id", agent.ID)
		g.Go(func() error {
			r := c.CallAgent(ctx, agent, text, skill, sessionID)
			results[i] = &r
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.SkillResponse, 0, len(skills))
	for _, r := range results {
		if r == nil {
			continue
		}
		if sessionID != "" && c.sessions != nil {
			c.sessions.StoreResponse(sessionID, r.SkillID, r.Text)
		}
		out = append(out, *r)
	}
	span.SetAttributes(tracer.IntAttr("responses", len(out)))
	return out
}

// DispatchSequential runs order one skill at a time. The first skill gets
// text unchanged and its answer is distilled into context; later skills get
// text augmented with that context. A skill with no agent yields a
// placeholder and the chain continues.
func (c *Coordinator) DispatchSequential(ctx context.Context, order []string, agents map[string][]domain.AgentDescriptor, text, sessionID string) []domain.SkillResponse {
	ctx, span := tracer.StartSpan(ctx, "coordinator.sequential")
	defer span.End()
	span.SetAttributes(tracer.StringsAttr("order", order))

	out := make([]domain.SkillResponse, 0, len(order))
	for i, skill := range order {
		candidates := agents[skill]
		if len(candidates) == 0 {
			c.logger.Warn("no agent for skill in chain", "skill", skill, "step", i+1, "session_id", sessionID)
			out = append(out, domain.SkillResponse{SkillID: skill, Text: missingAgentText(skill), Failed: true})
			continue
		}
		if err := ctx.Err(); err != nil {
			c.logger.Info("chain interrupted", "skill", skill, "step", i+1, "session_id", sessionID, "error", err)
			out = append(out, domain.SkillResponse{SkillID: skill, AgentID: candidates[0].ID, Text: failureText(candidates[0].Name, err), Failed: true})
			continue
		}

		request := text
		if i > 0 {
			request = c.sessions.BuildContextualRequest(sessionID, text, skill)
		}
		c.logger.Debug("sequential dispatch", "skill", skill, "agent_id", candidates[0].ID, "step", i+1, "of", len(order))

		r := c.CallAgent(ctx, candidates[0], request, skill, sessionID)
		c.sessions.StoreResponse(sessionID, skill, r.Text)
		if i == 0 {
			c.sessions.ExtractContext(ctx, sessionID, r.Text, skill)
		}
		out = append(out, r)
	}
	return out
}
