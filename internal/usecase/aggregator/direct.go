package aggregator

import (
	"context"
	"fmt"
	"strings"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/prompt"
)

// EntityChatType carries the small-talk sub-intent.
const EntityChatType = "chat_type"

// Canned replies.
const (
	Greeting       = "Hello! How can I help you?"
	greetingReply  = "Hello! I'm the orchestrator of a multi-agent system. How can I help you?"
	thanksReply    = "You're welcome! Glad I could help. Let me know whenever you need anything else."
	identityFloor  = "I'm the orchestrator of a multi-agent system. I work with a range of agents to handle your requests."
	checkingAgents = "I'm the orchestrator of a multi-agent system. I'm still checking which agents are registered."
)

type agentLine struct {
	Name    string
	Healthy bool
	Skills  []string
}

// HandleDirect answers a request the router keeps for itself. Small talk is
// answered by sub-intent; a business domain nobody serves gets an apology.
func (a *Aggregator) HandleDirect(ctx context.Context, text string, analysis domain.RequestAnalysis) string {
	primary := domain.UnknownDomain
	if len(analysis.Domains) > 0 {
		primary = analysis.Domains[0]
	}
	if !a.prompts.Vocabulary().IsConversationalDomain(primary) {
		a.logger.Info("no agent for domain", "domain", primary, "input", text)
		return fmt.Sprintf("Sorry, I couldn't find an agent that can handle '%s'.", text)
	}

	chatType, _ := analysis.EntityValue(EntityChatType)
	switch strings.ToLower(chatType) {
	case "greeting":
		return greetingReply
	case "thanks":
		return thanksReply
	case "help":
		return a.help(ctx)
	default:
		return a.introduce(ctx, text)
	}
}

func (a *Aggregator) agentLines(stats domain.RegistryStats) []agentLine {
	lines := make([]agentLine, 0, len(stats.Agents))
	for _, s := range stats.Agents {
		lines = append(lines, agentLine{Name: s.Name, Healthy: s.Healthy, Skills: s.Skills})
	}
	return lines
}

func (a *Aggregator) help(ctx context.Context) string {
	stats := a.dir.Stats()
	out, err := a.generate(ctx, prompt.Help, map[string]any{
		"Total":    stats.TotalAgents,
		"Healthy":  stats.HealthyAgents,
		"SkillIDs": stats.SkillIDs,
		"Agents":   a.agentLines(stats),
	})
	if err == nil {
		return out
	}
	a.logger.Warn("help generation failed, using registry summary", "error", err)
	return fallbackHelp(stats)
}

func (a *Aggregator) introduce(ctx context.Context, text string) string {
	stats := a.dir.Stats()
	out, err := a.generate(ctx, prompt.Introduce, map[string]any{
		"Text":    text,
		"Agents":  a.agentLines(stats),
		"Healthy": stats.HealthyAgents,
	})
	if err == nil {
		return out
	}
	a.logger.Warn("introduction generation failed, using static intro", "error", err)
	return fmt.Sprintf("Hello! I'm the orchestrator of a multi-agent system. %d agents are active right now. How can I help you?",
		stats.HealthyAgents)
}

func (a *Aggregator) generate(ctx context.Context, name string, data any) (string, error) {
	r, err := a.prompts.Render(name, data)
	if err != nil {
		return "", err
	}
	out, err := a.understander.Understand(ctx, r.System, r.User, r.Options)
	if err != nil {
		return "", err
	}
	if out = strings.TrimSpace(out); out == "" {
		return "", fmt.Errorf("%w: empty %s", domain.ErrMalformedOutput, name)
	}
	return out, nil
}

// fallbackHelp lists the healthy agents and their skills.
func fallbackHelp(stats domain.RegistryStats) string {
	var lines []string
	for _, s := range stats.Agents {
		if s.Healthy {
			lines = append(lines, fmt.Sprintf("• %s: %s", s.Name, strings.Join(s.Skills, ", ")))
		}
	}
	if len(lines) == 0 {
		if stats.TotalAgents == 0 {
			return checkingAgents
		}
		return identityFloor
	}
	return fmt.Sprintf("I'm an orchestrator working with a range of agents.\n\nAvailable right now:\n%s\n\n%d agents are ready to help.",
		strings.Join(lines, "\n"), stats.HealthyAgents)
}
