// Package aggregator produces the router's final reply: merged agent answers
// for dispatched requests and direct answers for small talk.
package aggregator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/tracer"
	"a2a-router/internal/usecase/prompt"
)

// TokenBudget measures and trims prompt text.
type TokenBudget interface {
	Count(text string) int
	Truncate(text string, max int) string
}

// minResponseTokens is the floor each agent answer keeps under budgeting.
const minResponseTokens = 32

const (
	fallbackHeader = "Here are the combined results from multiple agents:\n\n"
	fallbackFooter = "I've combined the information above to handle your request."
	noResponses    = "I couldn't get an answer from any agent for that request."
)

// Aggregator merges agent responses and answers direct requests.
type Aggregator struct {
	understander    domain.Understander
	prompts         *prompt.Provider
	dir             domain.AgentDirectory
	tokens          TokenBudget
	maxPromptTokens int
	logger          *slog.Logger
}

// New creates an Aggregator. With a nil tokens or a zero maxPromptTokens the
// merge prompt is not budgeted.
func New(u domain.Understander, prompts *prompt.Provider, dir domain.AgentDirectory, tokens TokenBudget, maxPromptTokens int, logger *slog.Logger) *Aggregator {
	return &Aggregator{
		understander:    u,
		prompts:         prompts,
		dir:             dir,
		tokens:          tokens,
		maxPromptTokens: maxPromptTokens,
		logger:          logger,
	}
}

type participant struct {
	Name        string
	Description string
}

type namedResponse struct {
	Name string
	Text string
}

// Aggregate merges responses into one reply. It tries the understanding
// capability first and falls back to a labeled concatenation; the result is
// never empty.
func (a *Aggregator) Aggregate(ctx context.Context, text string, analysis domain.RequestAnalysis, responses []domain.SkillResponse) string {
	ctx, span := tracer.StartSpan(ctx, "aggregator.aggregate")
	defer span.End()
	span.SetAttributes(tracer.IntAttr("responses", len(responses)))

	if len(responses) == 0 {
		return noResponses
	}

	merged, err := a.merge(ctx, text, analysis, responses)
	if err == nil {
		return merged
	}
	tracer.RecordError(span, err)
	a.logger.Warn("response merge failed, concatenating", "responses", len(responses), "error", err)
	return Fallback(responses)
}

func (a *Aggregator) merge(ctx context.Context, text string, analysis domain.RequestAnalysis, responses []domain.SkillResponse) (string, error) {
	vocab := a.prompts.Vocabulary()

	var participants []participant
	named := make([]namedResponse, 0, len(responses))
	for _, r := range responses {
		name := r.SkillID
		if entry, ok := vocab.Skill(r.SkillID); ok {
			name = entry.AgentName
			participants = append(participants, participant{Name: entry.AgentName, Description: entry.AgentDescription})
		}
		named = append(named, namedResponse{Name: name, Text: r.Text})
	}

	data := map[string]any{
		"Participants": participants,
		"Text":         text,
		"RequestType":  string(analysis.RequestType),
		"Domains":      analysis.Domains,
		"Entities":     analysis.Entities,
		"Responses":    named,
	}
	r, err := a.prompts.Render(prompt.Aggregate, data)
	if err != nil {
		return "", err
	}
	if a.overBudget(r) {
		data["Responses"] = a.trimResponses(data, named)
		if r, err = a.prompts.Render(prompt.Aggregate, data); err != nil {
			return "", err
		}
	}

	out, err := a.understander.Understand(ctx, r.System, r.User, r.Options)
	if err != nil {
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", fmt.Errorf("%w: empty merge", domain.ErrMalformedOutput)
	}
	return out, nil
}

func (a *Aggregator) overBudget(r prompt.Rendered) bool {
	if a.tokens == nil || a.maxPromptTokens <= 0 {
		return false
	}
	return a.tokens.Count(r.System)+a.tokens.Count(r.User) > a.maxPromptTokens
}

// trimResponses shares what the prompt frame leaves of the budget evenly
// between the agent answers.
func (a *Aggregator) trimResponses(data map[string]any, named []namedResponse) []namedResponse {
	data["Responses"] = []namedResponse{}
	frame, err := a.prompts.Render(prompt.Aggregate, data)
	overhead := 0
	if err == nil {
		overhead = a.tokens.Count(frame.System) + a.tokens.Count(frame.User)
	}
	share := max(minResponseTokens, (a.maxPromptTokens-overhead)/len(named))

	out := make([]namedResponse, len(named))
	for i, n := range named {
		out[i] = namedResponse{Name: n.Name, Text: a.tokens.Truncate(n.Text, share)}
	}
	a.logger.Debug("merge prompt trimmed to budget", "budget", a.maxPromptTokens, "per_response", share)
	return out
}

// Fallback is the deterministic merge, used when there is no time left for
// the model.
func (a *Aggregator) Fallback(responses []domain.SkillResponse) string {
	return Fallback(responses)
}

// Fallback concatenates responses in collection order under skill labels.
func Fallback(responses []domain.SkillResponse) string {
	if len(responses) == 0 {
		return noResponses
	}
	var b strings.Builder
	b.WriteString(fallbackHeader)
	for _, r := range responses {
		fmt.Fprintf(&b, "🔸 **%s**: %s\n\n", skillTitle(r.SkillID), r.Text)
	}
	b.WriteString(fallbackFooter)
	return strings.TrimSpace(b.String())
}

// skillTitle turns "weather_info" into "Weather Info".
func skillTitle(id string) string {
	words := strings.Fields(strings.ReplaceAll(id, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}
