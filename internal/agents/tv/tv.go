// Package tv is the TV downstream agent. It controls a simulated television
// and, when another agent ran first in a chain, lets the understanding
// capability pick the operation that fits the earlier result.
package tv

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/llmjson"
	"a2a-router/internal/usecase/prompt"
	"a2a-router/pkg/a2a"
	"a2a-router/pkg/agentsdk"
)

//go:embed prompts.yaml
var promptYAML []byte

const greeting = "Hello! I can help you control the TV."

// Agent answers TV control requests.
type Agent struct {
	understander domain.Understander
	prompts      *prompt.Library
	state        *State
	logger       *slog.Logger
}

// New creates the agent. u may be nil, in which case answers are templated
// and chained requests fall back to keyword analysis.
func New(u domain.Understander, logger *slog.Logger) (*Agent, error) {
	lib, err := prompt.Parse(promptYAML)
	if err != nil {
		return nil, fmt.Errorf("tv prompts: %w", err)
	}
	return &Agent{understander: u, prompts: lib, state: NewState(), logger: logger}, nil
}

// State returns the simulated TV.
func (a *Agent) State() *State { return a.state }

// Handle implements agentsdk.HandlerFunc.
func (a *Agent) Handle(ctx context.Context, req agentsdk.Request) (string, error) {
	c, chained := a2a.ParseContextual(req.Text)
	if c.Original == "" {
		return greeting, nil
	}
	if chained && a.understander != nil {
		reply, err := a.handleChained(ctx, c)
		if err == nil {
			return reply, nil
		}
		a.logger.Warn("contextual tv control failed, using keyword analysis", "error", err)
	}
	return a.handleSimple(ctx, c.Original, req.SessionID), nil
}

func (a *Agent) handleSimple(ctx context.Context, text, session string) string {
	act := Analyze(text)
	snap := a.state.Apply(act)
	a.logger.Info("tv command", "action", act.Type, "level", act.Level, "channel", act.Channel, "input", act.Input, "session_id", session)

	if a.understander == nil {
		return Describe(act)
	}
	reply, err := a.phrase(ctx, "tv_control", map[string]any{"Text": text, "Action": act, "State": snap})
	if err != nil {
		a.logger.Warn("tv phrasing failed, using template", "error", err)
		return Describe(act)
	}
	return reply.Response
}

type decision struct {
	Action
	Response string `json:"response"`
}

func (a *Agent) handleChained(ctx context.Context, c a2a.Contextual) (string, error) {
	d, err := a.phrase(ctx, "tv_with_context", map[string]any{
		"Text":      c.Original,
		"State":     a.state.Snapshot(),
		"HandledBy": c.HandledBy,
		"Info":      c.Info,
	})
	if err != nil {
		return "", err
	}
	if d.Type == "" || d.Type == ActionUnknown {
		// The model only phrased; derive the operation from the text.
		d.Action = Analyze(c.Original)
	}
	d.Level = min(max(d.Level, 0), 100)
	a.state.Apply(d.Action)
	a.logger.Info("tv command from chain", "action", d.Type, "handled_by", c.HandledBy)
	return d.Response, nil
}

func (a *Agent) phrase(ctx context.Context, name string, data any) (decision, error) {
	p, err := a.prompts.Render(name, data)
	if err != nil {
		return decision{}, err
	}
	raw, err := a.understander.Understand(ctx, p.System, p.User, p.Options)
	if err != nil {
		return decision{}, err
	}
	d, err := llmjson.Decode[decision](raw)
	if err != nil {
		return decision{}, err
	}
	if d.Response == "" {
		return decision{}, fmt.Errorf("%w: empty response field", domain.ErrMalformedOutput)
	}
	return d, nil
}
