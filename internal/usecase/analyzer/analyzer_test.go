package analyzer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/prompt"
)

type staticDirectory []domain.AgentDescriptor

func (d staticDirectory) Discover(string) []domain.AgentDescriptor                 { return nil }
func (d staticDirectory) DiscoverMany([]string) map[string][]domain.AgentDescriptor { return nil }
func (d staticDirectory) ListAll() []domain.AgentDescriptor                        { return d }
func (d staticDirectory) Stats() domain.RegistryStats                              { return domain.RegistryStats{} }

// scripted answers each understanding pass by matching its system prompt.
type scripted struct {
	classify string
	entities string
	skills   string
	err      error
	calls    []string
}

func (s *scripted) Understand(_ context.Context, system, _ string, opts domain.UnderstandOptions) (string, error) {
	var pass, out string
	switch {
	case strings.Contains(system, "You classify"):
		pass, out = "classify", s.classify
	case strings.Contains(system, "You extract entities"):
		pass, out = "entities", s.entities
	case strings.Contains(system, "You select the skills"):
		pass, out = "skills", s.skills
	}
	s.calls = append(s.calls, pass)
	if !opts.JSON {
		return "", errors.New("json mode expected")
	}
	if s.err != nil {
		return "", s.err
	}
	return out, nil
}

func agents() staticDirectory {
	return staticDirectory{
		{ID: "main-agent-18000", Name: "Main Agent", Skills: []domain.SkillDescriptor{
			{ID: "chit_chat", DomainCategory: "general_chat", Keywords: []string{"hello"},
				EntityTypes: []domain.EntityType{{Name: "chat_type"}}},
			{ID: "orchestration", DomainCategory: "orchestration", Keywords: []string{"then"}},
		}},
		{ID: "weather-agent-18001", Name: "Weather Agent", Skills: []domain.SkillDescriptor{
			{ID: "weather_info", DomainCategory: "weather", Keywords: []string{"weather"},
				ConnectionPatterns: []string{"depending on"},
				EntityTypes:        []domain.EntityType{{Name: "location"}}},
		}},
		{ID: "tv-agent-18002", Name: "TV Agent", Skills: []domain.SkillDescriptor{
			{ID: "tv_control", DomainCategory: "tv", Keywords: []string{"volume"},
				EntityTypes: []domain.EntityType{{Name: "volume_level"}}},
		}},
	}
}

func newAnalyzer(t *testing.T, u domain.Understander, dir staticDirectory) *Analyzer {
	t.Helper()
	lib, err := prompt.Default()
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(u, prompt.NewProvider(lib, dir, logger), logger)
}

func TestAnalyzeSingleDomain(t *testing.T) {
	u := &scripted{
		classify: `{"request_type":"single_domain","domains":["weather"],"confidence":0.9}`,
		entities: "```json\n{\"entities\":{\"location\":\"Seoul\",\"time\":\"\"},\"confidence\":0.7}\n```",
		skills:   `{"required_skills":["weather_info"],"reasoning":"forecast"}`,
	}
	a := newAnalyzer(t, u, agents())

	got := a.Analyze(context.Background(), "What's the weather in Seoul?")

	assert.Equal(t, domain.RequestSingleDomain, got.RequestType)
	assert.Equal(t, []string{"weather"}, got.Domains)
	assert.InDelta(t, 0.9, got.Confidence, 1e-9)
	assert.Equal(t, []domain.Entity{{Type: "location", Value: "Seoul", Confidence: 0.7}}, got.Entities)
	assert.False(t, got.RequiresMultipleAgents)
	assert.Equal(t, []string{"weather_info"}, got.SkillsNeeded)
	assert.Equal(t, []string{"classify", "entities", "skills"}, u.calls)
}

func TestAnalyzeMultiDomain(t *testing.T) {
	u := &scripted{
		classify: `{"request_type":"multi_domain","domains":["weather","tv"],"confidence":0.8}`,
		entities: `{"entities":{"connection_type":"depending on","location":"Seoul"}}`,
		skills:   `{"required_skills":["weather_info","tv_control","weather_info","orchestration"]}`,
	}
	a := newAnalyzer(t, u, agents())

	got := a.Analyze(context.Background(), "Set the TV volume depending on the weather in Seoul")

	assert.Equal(t, domain.RequestMultiDomain, got.RequestType)
	assert.True(t, got.RequiresMultipleAgents)
	assert.Equal(t, []string{"weather_info", "tv_control", "orchestration"}, got.SkillsNeeded)
	require.Len(t, got.Entities, 2)
	assert.Equal(t, "connection_type", got.Entities[0].Type)
	assert.InDelta(t, defaultEntityConfidence, got.Entities[0].Confidence, 1e-9)
}

func TestAnalyzeMultiDomainWithOneDomainIsNotComposite(t *testing.T) {
	u := &scripted{
		classify: `{"request_type":"multi_domain","domains":["weather","weather"]}`,
		entities: `{"entities":{}}`,
		skills:   `{"required_skills":["weather_info"]}`,
	}
	got := newAnalyzer(t, u, agents()).Analyze(context.Background(), "weather please")
	assert.Equal(t, []string{"weather"}, got.Domains)
	assert.False(t, got.RequiresMultipleAgents)
}

func TestAnalyzeDropsUnregisteredSkills(t *testing.T) {
	u := &scripted{
		classify: `{"request_type":"single_domain","domains":["weather"]}`,
		entities: `{"entities":{}}`,
		skills:   `{"required_skills":["weather","weather_info"]}`,
	}
	got := newAnalyzer(t, u, agents()).Analyze(context.Background(), "weather?")
	assert.Equal(t, []string{"weather_info"}, got.SkillsNeeded)
	assert.Empty(t, got.Entities)
	assert.NotNil(t, got.Entities)
}

func TestAnalyzeFallbacks(t *testing.T) {
	tests := []struct {
		name string
		u    *scripted
	}{
		{"understanding error", &scripted{err: errors.New("boom")}},
		{"prose output", &scripted{classify: "I think weather", entities: "none", skills: "weather"}},
		{"unregistered domain", &scripted{
			classify: `{"request_type":"single_domain","domains":["stocks"]}`,
			entities: "nope", skills: "nope",
		}},
		{"bad request type", &scripted{
			classify: `{"request_type":"both","domains":["weather"]}`,
			entities: "nope", skills: "nope",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := newAnalyzer(t, tt.u, agents()).Analyze(context.Background(), "hmm")
			assert.Equal(t, domain.RequestSingleDomain, got.RequestType)
			assert.Equal(t, []string{"general_chat"}, got.Domains)
			assert.InDelta(t, fallbackConfidence, got.Confidence, 1e-9)
			assert.Empty(t, got.Entities)
			assert.Equal(t, []string{"chit_chat"}, got.SkillsNeeded)
			assert.False(t, got.RequiresMultipleAgents)
		})
	}
}

func TestAnalyzeFallbackWithoutConversationalSkill(t *testing.T) {
	dir := agents()[1:]
	got := newAnalyzer(t, &scripted{err: errors.New("down")}, dir).Analyze(context.Background(), "hmm")
	assert.Equal(t, []string{domain.UnknownDomain}, got.Domains)
	assert.Equal(t, []string{}, got.SkillsNeeded)
}

func TestAnalyzeWithEmptyRegistry(t *testing.T) {
	u := &scripted{entities: `{"entities":{"chat_type":"greeting"},"confidence":0.95}`}
	got := newAnalyzer(t, u, nil).Analyze(context.Background(), "hello")

	assert.Equal(t, []string{domain.UnknownDomain}, got.Domains)
	assert.Equal(t, []string{}, got.SkillsNeeded)
	assert.Equal(t, []string{"entities"}, u.calls)
	v, ok := got.EntityValue("chat_type")
	assert.True(t, ok)
	assert.Equal(t, "greeting", v)
}

func TestEntityValue(t *testing.T) {
	assert.Equal(t, "20", entityValue(float64(20)))
	assert.Equal(t, "0.5", entityValue(0.5))
	assert.Equal(t, "true", entityValue(true))
	assert.Empty(t, entityValue(false))
	assert.Empty(t, entityValue(nil))
	assert.Empty(t, entityValue([]any{"a"}))
}
