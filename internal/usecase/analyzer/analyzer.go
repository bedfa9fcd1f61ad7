// Package analyzer turns user text into a RequestAnalysis: scope, domains,
// entities and the registered skills needed to answer.
package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/tracer"
	"a2a-router/internal/usecase/llmjson"
	"a2a-router/internal/usecase/prompt"
)

const (
	fallbackConfidence      = 0.5
	defaultEntityConfidence = 0.8
)

// Analyzer runs the three understanding passes of query analysis. Every pass
// has a deterministic fallback, so Analyze never fails.
type Analyzer struct {
	understander domain.Understander
	prompts      *prompt.Provider
	logger       *slog.Logger
}

// New creates an Analyzer.
func New(u domain.Understander, prompts *prompt.Provider, logger *slog.Logger) *Analyzer {
	return &Analyzer{understander: u, prompts: prompts, logger: logger}
}

type classifyOutput struct {
	RequestType string   `json:"request_type"`
	Domains     []string `json:"domains"`
	Confidence  *float64 `json:"confidence"`
}

type entitiesOutput struct {
	Entities   map[string]any `json:"entities"`
	Confidence *float64       `json:"confidence"`
}

type skillsOutput struct {
	RequiredSkills []string `json:"required_skills"`
	Reasoning      string   `json:"reasoning"`
}

// Analyze classifies text against the current registry vocabulary.
func (a *Analyzer) Analyze(ctx context.Context, text string) domain.RequestAnalysis {
	ctx, span := tracer.StartSpan(ctx, "analyzer.analyze")
	defer span.End()

	vocab := a.prompts.Vocabulary()

	var cls classifyOutput
	if len(vocab.Skills) == 0 {
		cls = classifyOutput{RequestType: string(domain.RequestSingleDomain), Domains: []string{domain.UnknownDomain}}
	} else {
		cls = a.classify(ctx, vocab, text)
	}

	analysis := domain.RequestAnalysis{
		RequestType: domain.RequestType(cls.RequestType),
		Domains:     cls.Domains,
		Confidence:  fallbackConfidence,
	}
	if cls.Confidence != nil {
		analysis.Confidence = clamp(*cls.Confidence)
	}

	analysis.Entities = a.extractEntities(ctx, vocab, text, analysis)
	analysis.RequiresMultipleAgents = analysis.RequestType == domain.RequestMultiDomain && len(analysis.Domains) > 1

	if len(vocab.Skills) == 0 {
		analysis.SkillsNeeded = []string{}
	} else {
		analysis.SkillsNeeded = a.selectSkills(ctx, vocab, text, analysis)
	}

	span.SetAttributes(
		tracer.StringAttr("request_type", string(analysis.RequestType)),
		tracer.StringsAttr("domains", analysis.Domains),
		tracer.StringsAttr("skills", analysis.SkillsNeeded),
	)
	a.logger.Debug("request analyzed",
		"request_type", analysis.RequestType,
		"domains", analysis.Domains,
		"entities", len(analysis.Entities),
		"skills", analysis.SkillsNeeded,
	)
	return analysis
}

func (a *Analyzer) understand(ctx context.Context, name string, data any) (string, error) {
	r, err := a.prompts.Render(name, data)
	if err != nil {
		return "", err
	}
	return a.understander.Understand(ctx, r.System, r.User, r.Options)
}

func (a *Analyzer) classify(ctx context.Context, vocab *prompt.Vocabulary, text string) classifyOutput {
	raw, err := a.understand(ctx, prompt.Classify, map[string]any{
		"Domains":            vocab.Domains,
		"ConnectionPatterns": vocab.ConnectionPatterns,
		"Text":               text,
	})
	if err == nil {
		var out classifyOutput
		out, err = llmjson.Decode[classifyOutput](raw)
		if err == nil {
			if out, err = sanitizeClassification(out, vocab); err == nil {
				return out
			}
		}
	}

	fallback := vocab.ConversationalDomains()
	if len(fallback) == 0 {
		fallback = []string{domain.UnknownDomain}
	}
	a.logger.Warn("classification failed, using conversational fallback",
		"text", text,
		"domains", fallback[:1],
		"error", err,
	)
	return classifyOutput{RequestType: string(domain.RequestSingleDomain), Domains: fallback[:1]}
}

// sanitizeClassification keeps only domains the registry knows about.
func sanitizeClassification(out classifyOutput, vocab *prompt.Vocabulary) (classifyOutput, error) {
	switch domain.RequestType(out.RequestType) {
	case domain.RequestSingleDomain, domain.RequestMultiDomain:
	default:
		return out, fmt.Errorf("%w: request_type %q", domain.ErrMalformedOutput, out.RequestType)
	}

	known := map[string]bool{domain.UnknownDomain: true}
	for _, d := range vocab.Domains {
		known[d.Category] = true
	}
	for _, s := range vocab.Skills {
		known[s.Domain] = true
	}

	var domains []string
	for _, d := range out.Domains {
		if known[d] && !slices.Contains(domains, d) {
			domains = append(domains, d)
		}
	}
	if len(domains) == 0 {
		return out, fmt.Errorf("%w: no registered domain in %v", domain.ErrMalformedOutput, out.Domains)
	}
	out.Domains = domains
	return out, nil
}

func (a *Analyzer) extractEntities(ctx context.Context, vocab *prompt.Vocabulary, text string, analysis domain.RequestAnalysis) []domain.Entity {
	raw, err := a.understand(ctx, prompt.ExtractEntities, map[string]any{
		"Rules":       vocab.EntityRules(analysis.RequestType, analysis.Domains),
		"Text":        text,
		"RequestType": string(analysis.RequestType),
		"Domains":     analysis.Domains,
	})
	if err != nil {
		a.logger.Warn("entity extraction failed", "text", text, "error", err)
		return []domain.Entity{}
	}
	out, err := llmjson.Decode[entitiesOutput](raw)
	if err != nil {
		a.logger.Warn("entity extraction output malformed", "text", text, "error", err)
		return []domain.Entity{}
	}

	confidence := defaultEntityConfidence
	if out.Confidence != nil {
		confidence = clamp(*out.Confidence)
	}
	types := make([]string, 0, len(out.Entities))
	for k := range out.Entities {
		types = append(types, k)
	}
	sort.Strings(types)

	entities := []domain.Entity{}
	for _, t := range types {
		value := entityValue(out.Entities[t])
		if value == "" {
			continue
		}
		entities = append(entities, domain.Entity{Type: t, Value: value, Confidence: confidence})
	}
	return entities
}

// entityValue renders a JSON scalar; empty values, lists and objects are
// dropped.
func entityValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		if !x {
			return ""
		}
		return "true"
	case float64:
		return fmt.Sprintf("%g", x)
	default:
		return ""
	}
}

func (a *Analyzer) selectSkills(ctx context.Context, vocab *prompt.Vocabulary, text string, analysis domain.RequestAnalysis) []string {
	raw, err := a.understand(ctx, prompt.SelectSkills, map[string]any{
		"Skills":      vocab.Skills,
		"Text":        text,
		"RequestType": string(analysis.RequestType),
		"Domains":     analysis.Domains,
		"MultiDomain": analysis.RequiresMultipleAgents,
		"Entities":    analysis.Entities,
	})
	if err == nil {
		var out skillsOutput
		if out, err = llmjson.Decode[skillsOutput](raw); err == nil {
			skills := []string{}
			for _, id := range out.RequiredSkills {
				if !vocab.HasSkill(id) {
					a.logger.Debug("dropping unregistered skill from selection", "skill", id)
					continue
				}
				if !slices.Contains(skills, id) {
					skills = append(skills, id)
				}
			}
			return skills
		}
	}

	fallback := vocab.ConversationalSkills()
	if len(fallback) > 1 {
		fallback = fallback[:1]
	}
	a.logger.Warn("skill selection failed, using conversational fallback", "text", text, "skills", fallback, "error", err)
	if fallback == nil {
		return []string{}
	}
	return fallback
}

func clamp(f float64) float64 {
	return max(0, min(1, f))
}
