// Package planner decides whether the skills of a composite request must run
// in a chain or can be dispatched together.
package planner

import (
	"context"
	"log/slog"
	"slices"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/tracer"
	"a2a-router/internal/usecase/llmjson"
	"a2a-router/internal/usecase/prompt"
)

// Entity types consulted by the plan prompt.
const (
	EntityCoordinationType = "coordination_type"
	EntityConnectionType   = "connection_type"
)

type planSkill struct {
	ID                 string
	AgentName          string
	Domain             string
	ConnectionPatterns []string
}

type planOutput struct {
	IsSequential   bool     `json:"is_sequential"`
	ExecutionOrder []string `json:"execution_order"`
	Reasoning      string   `json:"reasoning"`
}

// Planner builds ExecutionPlans.
type Planner struct {
	understander domain.Understander
	prompts      *prompt.Provider
	dir          domain.AgentDirectory
	logger       *slog.Logger
}

// New creates a Planner. dir resolves the agent that will serve each skill.
func New(u domain.Understander, prompts *prompt.Provider, dir domain.AgentDirectory, logger *slog.Logger) *Planner {
	return &Planner{understander: u, prompts: prompts, dir: dir, logger: logger}
}

// Plan orders skills for dispatch. It never fails: any understanding problem
// yields a parallel plan in input order.
func (p *Planner) Plan(ctx context.Context, text string, analysis domain.RequestAnalysis, skills []string) domain.ExecutionPlan {
	ctx, span := tracer.StartSpan(ctx, "planner.plan")
	defer span.End()

	fallback := domain.ExecutionPlan{Order: slices.Clone(skills), Rationale: "parallel by default"}
	if len(skills) < 2 {
		fallback.Rationale = "single skill"
		return fallback
	}

	plan, err := p.plan(ctx, text, analysis, skills)
	if err != nil {
		tracer.RecordError(span, err)
		p.logger.Warn("dependency analysis failed, running in parallel", "skills", skills, "error", err)
		return fallback
	}

	span.SetAttributes(
		tracer.BoolAttr("sequential", plan.Sequential),
		tracer.StringsAttr("order", plan.Order),
	)
	p.logger.Debug("execution planned", "sequential", plan.Sequential, "order", plan.Order, "rationale", plan.Rationale)
	return plan
}

func (p *Planner) plan(ctx context.Context, text string, analysis domain.RequestAnalysis, skills []string) (domain.ExecutionPlan, error) {
	vocab := p.prompts.Vocabulary()
	agents := p.dir.DiscoverMany(skills)

	data := make([]planSkill, 0, len(skills))
	for _, id := range skills {
		ps := planSkill{ID: id, AgentName: "unknown"}
		if entry, ok := vocab.Skill(id); ok {
			ps.Domain = entry.Domain
			ps.ConnectionPatterns = entry.ConnectionPatterns
		}
		if found := agents[id]; len(found) > 0 {
			ps.AgentName = found[0].Name
		}
		data = append(data, ps)
	}
	coordination, _ := analysis.EntityValue(EntityCoordinationType)
	connection, _ := analysis.EntityValue(EntityConnectionType)

	r, err := p.prompts.Render(prompt.Plan, map[string]any{
		"Skills":           data,
		"CoordinationType": coordination,
		"ConnectionType":   connection,
		"Text":             text,
	})
	if err != nil {
		return domain.ExecutionPlan{}, err
	}
	raw, err := p.understander.Understand(ctx, r.System, r.User, r.Options)
	if err != nil {
		return domain.ExecutionPlan{}, err
	}
	out, err := llmjson.Decode[planOutput](raw)
	if err != nil {
		return domain.ExecutionPlan{}, err
	}
	return domain.ExecutionPlan{
		Sequential: out.IsSequential,
		Order:      Sanitize(out.ExecutionOrder, skills),
		Rationale:  out.Reasoning,
	}, nil
}

// Sanitize restricts order to the candidate skills: unknown and repeated ids
// are dropped and candidates the order left out are appended in input order.
func Sanitize(order, candidates []string) []string {
	out := make([]string, 0, len(candidates))
	for _, id := range order {
		if slices.Contains(candidates, id) && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	for _, id := range candidates {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
