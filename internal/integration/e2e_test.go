package integration

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/adapter/journal"
	"a2a-router/internal/agents/tv"
	"a2a-router/internal/agents/weather"
	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/aggregator"
)

const (
	classifyPrompt = "You classify user requests"
	entitiesPrompt = "You extract entities"
	skillsPrompt   = "You select the skills"
	planPrompt     = "You analyze execution dependencies"
	distillPrompt  = "You distill one agent's answer"
)

func startAgents(t *testing.T, routerURL string) *tv.Agent {
	t.Helper()
	log := discardLogger()
	w, err := weather.New(nil, log)
	require.NoError(t, err)
	tvAgent, err := tv.New(nil, log)
	require.NoError(t, err)

	StartAgent(t, routerURL, weather.Card, w.Handle)
	StartAgent(t, routerURL, tv.Card, tvAgent.Handle)
	return tvAgent
}

func TestE2E_SequentialWeatherThenTV(t *testing.T) {
	SkipIfShort(t)
	ctx := NewTestContext(t, 30*time.Second)

	script := NewScript(map[string]string{
		classifyPrompt: `{"request_type": "multi_domain", "domains": ["weather", "tv"], "confidence": 0.9}`,
		entitiesPrompt: `{"entities": {"location": "Seoul", "connection_type": "matching"}, "confidence": 0.9}`,
		skillsPrompt:   `{"required_skills": ["weather", "tv"], "reasoning": "weather feeds the tv"}`,
		planPrompt:     "```json\n{\"is_sequential\": true, \"execution_order\": [\"weather\", \"tv\"], \"reasoning\": \"provider first\"}\n```",
		distillPrompt:  `{"extracted_info": "Seoul clear 22C", "confidence": 0.9}`,
	})
	router := StartRouter(t, script)
	tvAgent := startAgents(t, router.URL)

	agents, err := router.Client.Agents(ctx)
	require.NoError(t, err)
	assert.Len(t, agents.Agents, 2)

	text := "Check the weather in Seoul and turn on the TV matching it"
	reply, err := router.Client.Send(ctx, text)
	require.NoError(t, err)

	weatherText := weather.Describe(weather.Lookup("Seoul"), weather.ExtractTime(text))
	tvText := tv.Describe(tv.Action{Type: tv.ActionPowerOn})
	// No merge answer is scripted, so the labeled concatenation comes back.
	assert.Equal(t, aggregator.Fallback([]domain.SkillResponse{
		{SkillID: weather.SkillID, Text: weatherText},
		{SkillID: tv.SkillID, Text: tvText},
	}), reply)
	assert.True(t, tvAgent.State().Snapshot().Power)
	assert.Contains(t, script.Calls(), distillPrompt, "weather answer should be distilled for the tv agent")

	require.Eventually(t, func() bool {
		events, err := journal.Read(router.Journal.Path(), domain.EventRequestResponded)
		return err == nil && len(events) == 1
	}, 2*time.Second, 10*time.Millisecond)
	calls, err := journal.Read(router.Journal.Path(), domain.EventAgentCallFinished)
	require.NoError(t, err)
	assert.Len(t, calls, 2)
}

func TestE2E_SingleDispatchReturnsAgentText(t *testing.T) {
	SkipIfShort(t)
	ctx := NewTestContext(t, 30*time.Second)

	router := StartRouter(t, NewScript(map[string]string{
		classifyPrompt: `{"request_type": "single_domain", "domains": ["weather"], "confidence": 0.95}`,
		entitiesPrompt: `{"entities": {"location": "Busan"}}`,
		skillsPrompt:   `{"required_skills": ["weather"]}`,
	}))
	tvAgent := startAgents(t, router.URL)

	text := "How's the weather in Busan tomorrow?"
	reply, err := router.Client.Send(ctx, text)
	require.NoError(t, err)
	assert.Equal(t, weather.Describe(weather.Lookup("Busan"), weather.ExtractTime(text)), reply)
	assert.False(t, tvAgent.State().Snapshot().Power, "tv agent must not be called")
}

func TestE2E_NoModelAnswersDirectly(t *testing.T) {
	SkipIfShort(t)
	ctx := NewTestContext(t, 30*time.Second)

	router := StartRouter(t, NewScript(nil))
	tvAgent := startAgents(t, router.URL)

	reply, err := router.Client.Send(ctx, "turn on the TV")
	require.NoError(t, err)
	assert.NotEmpty(t, reply)
	assert.False(t, tvAgent.State().Snapshot().Power, "without a model nothing is dispatched")

	status, err := router.Client.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, status.Registry.TotalAgents)
	assert.Equal(t, uint64(1), status.Requests.Requests)
	assert.Equal(t, uint64(1), status.Requests.Direct)
	assert.Zero(t, status.Requests.Dispatches)
}
