package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/aggregator"
	"a2a-router/internal/usecase/analyzer"
	"a2a-router/internal/usecase/contextprop"
	"a2a-router/internal/usecase/coordinator"
	"a2a-router/internal/usecase/eventbus"
	"a2a-router/internal/usecase/planner"
	"a2a-router/internal/usecase/prompt"
	"a2a-router/internal/usecase/registry"
)

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// script answers understanding calls by the system prompt's opening line.
type script map[string]string

func (s script) Understand(_ context.Context, system, _ string, _ domain.UnderstandOptions) (string, error) {
	for prefix, out := range s {
		if strings.Contains(system, prefix) {
			return out, nil
		}
	}
	return "", errors.New("unscripted prompt")
}

type sent struct {
	address string
	text    string
}

type agentStub struct {
	mu      sync.Mutex
	calls   []sent
	replies map[string]string
	errs    map[string]error
}

func (a *agentStub) Send(_ context.Context, address, text string, _ domain.CallMetadata) (string, error) {
	a.mu.Lock()
	a.calls = append(a.calls, sent{address, text})
	a.mu.Unlock()
	if err := a.errs[address]; err != nil {
		return "", err
	}
	return a.replies[address], nil
}

func (a *agentStub) textsFor(address string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []string
	for _, c := range a.calls {
		if c.address == address {
			out = append(out, c.text)
		}
	}
	return out
}

type pipeline struct {
	orch     *Orchestrator
	registry *registry.Registry
	sessions *contextprop.Propagator
	agents   *agentStub
	bus      *eventbus.Bus
}

func newPipeline(t *testing.T, u domain.Understander, descriptors ...domain.AgentDescriptor) *pipeline {
	t.Helper()
	logger := discardLogger()
	bus := eventbus.New(logger)
	reg := registry.New(bus, logger)

	lib, err := prompt.Default()
	require.NoError(t, err)
	prompts := prompt.NewProvider(lib, reg, logger)
	reg.OnRegister(prompts.Rebuild)
	for _, d := range descriptors {
		_, err := reg.Register(context.Background(), d)
		require.NoError(t, err)
	}

	stub := &agentStub{replies: map[string]string{}, errs: map[string]error{}}
	sessions := contextprop.New(u, prompts, bus, logger)
	orch := New(Deps{
		Directory:  reg,
		Analyzer:   analyzer.New(u, prompts, logger),
		Planner:    planner.New(u, prompts, reg, logger),
		Dispatcher: coordinator.New(stub, sessions, bus, "main-agent", logger),
		Sessions:   sessions,
		Responder:  aggregator.New(u, prompts, reg, nil, 0, logger),
		Bus:        bus,
		Logger:     logger,
	}, []string{"orchestration", "chit_chat", "agent_registry"}, 5*time.Second)
	return &pipeline{orch: orch, registry: reg, sessions: sessions, agents: stub, bus: bus}
}

var (
	weatherAgent = domain.AgentDescriptor{Name: "Weather Agent", Description: "weather", Address: "http://localhost:18001",
		Skills: []domain.SkillDescriptor{{ID: "weather", DomainCategory: "weather", Keywords: []string{"weather"}}}}
	tvAgent = domain.AgentDescriptor{Name: "TV Agent", Description: "tv", Address: "http://localhost:18002",
		Skills: []domain.SkillDescriptor{{ID: "tv", DomainCategory: "tv", Keywords: []string{"volume"}}}}
)

const composite = "Set the TV volume depending on today's weather"

func compositeScript(plan string) script {
	return script{
		"You classify":             `{"request_type":"multi_domain","domains":["weather","tv"],"confidence":0.9}`,
		"You extract entities":     `{"entities":{"connection_type":"depending on"}}`,
		"You select the skills":    `{"required_skills":["weather","tv","orchestration"]}`,
		"You analyze execution":    plan,
		"You distill":              `{"extracted_info":"rain, 18C","confidence":0.9}`,
		// The merge prompt is left unscripted so the deterministic fallback shows every entry.
	}
}

func TestGreetingWithEmptyRegistry(t *testing.T) {
	p := newPipeline(t, script{"You extract entities": `{"entities":{"chat_type":"greeting"}}`})

	reply := p.orch.Handle(context.Background(), "", "hello")

	require.NotNil(t, reply.Analysis)
	assert.Equal(t, []string{domain.UnknownDomain}, reply.Analysis.Domains)
	assert.Empty(t, reply.Analysis.SkillsNeeded)
	assert.Contains(t, reply.Text, "orchestrator")
	assert.Empty(t, p.agents.calls)
	assert.Equal(t, []domain.RequestState{
		domain.StateReceived, domain.StateAnalyzing, domain.StateDirectHandle, domain.StateResponded,
	}, reply.Path)
	assert.NotEmpty(t, reply.RequestID)
}

func TestEmptyTextGreets(t *testing.T) {
	p := newPipeline(t, script{})
	reply := p.orch.Handle(context.Background(), "r1", "")
	assert.Equal(t, greeting, reply.Text)
	assert.Nil(t, reply.Analysis)
	assert.Equal(t, []domain.RequestState{domain.StateReceived, domain.StateResponded}, reply.Path)
}

func TestSingleSkillCallsExactlyOneAgent(t *testing.T) {
	p := newPipeline(t, script{
		"You classify":          `{"request_type":"single_domain","domains":["weather"]}`,
		"You extract entities":  `{"entities":{"location":"Seoul"}}`,
		"You select the skills": `{"required_skills":["weather"]}`,
	}, weatherAgent, tvAgent)
	p.agents.replies[weatherAgent.Address] = "Sunny in Seoul."

	reply := p.orch.Handle(context.Background(), "r1", "weather in Seoul?")

	assert.Equal(t, "Sunny in Seoul.", reply.Text)
	assert.Len(t, p.agents.calls, 1)
	assert.Contains(t, reply.Path, domain.StateSingleDispatch)
	assert.NotContains(t, reply.Path, domain.StateAggregating)
}

func TestSingleSkillWithoutAgent(t *testing.T) {
	p := newPipeline(t, script{
		"You classify":          `{"request_type":"single_domain","domains":["weather"]}`,
		"You extract entities":  `{"entities":{}}`,
		"You select the skills": `{"required_skills":["weather"]}`,
	}, weatherAgent)
	require.NoError(t, p.registry.SetHealth(domain.AgentIdentity(weatherAgent.Name, weatherAgent.Address), false))

	reply := p.orch.Handle(context.Background(), "r1", "weather?")
	assert.Equal(t, "I couldn't find an agent with the 'weather' skill.", reply.Text)
	assert.Empty(t, p.agents.calls)
}

func TestCompositeParallel(t *testing.T) {
	p := newPipeline(t, compositeScript(`{"is_sequential":false,"execution_order":["weather","tv"]}`), weatherAgent, tvAgent)
	p.agents.replies[weatherAgent.Address] = "Rain today."
	p.agents.replies[tvAgent.Address] = "Volume is 20."

	reply := p.orch.Handle(context.Background(), "r1", composite)

	assert.Equal(t, []string{composite}, p.agents.textsFor(weatherAgent.Address))
	assert.Equal(t, []string{composite}, p.agents.textsFor(tvAgent.Address))
	require.Len(t, reply.Responses, 2)
	assert.Contains(t, reply.Path, domain.StateParallelDispatch)
	assert.Contains(t, reply.Path, domain.StateAggregating)
	assert.Contains(t, reply.Text, "🔸 **Weather**: Rain today.")
	assert.Contains(t, reply.Text, "🔸 **Tv**: Volume is 20.")
	assert.Zero(t, p.sessions.Active())
}

func TestCompositeSequentialCarriesContext(t *testing.T) {
	p := newPipeline(t, compositeScript(`{"is_sequential":true,"execution_order":["weather","tv"]}`), weatherAgent, tvAgent)
	p.agents.replies[weatherAgent.Address] = "Heavy rain today, 18 degrees."
	p.agents.replies[tvAgent.Address] = "Lowered the volume."

	reply := p.orch.Handle(context.Background(), "r1", composite)

	assert.Equal(t, []string{composite}, p.agents.textsFor(weatherAgent.Address))
	tvTexts := p.agents.textsFor(tvAgent.Address)
	require.Len(t, tvTexts, 1)
	assert.True(t, strings.HasPrefix(tvTexts[0], composite))
	assert.Greater(t, len(tvTexts[0]), len(composite))
	assert.Contains(t, tvTexts[0], "[Previous agent info]")
	assert.Contains(t, tvTexts[0], "Extracted info: rain, 18C")
	assert.Contains(t, reply.Path, domain.StateSequentialDispatch)
	assert.Zero(t, p.sessions.Active())
}

func TestCompositeSequentialTimeout(t *testing.T) {
	p := newPipeline(t, compositeScript(`{"is_sequential":true,"execution_order":["weather","tv"]}`), weatherAgent, tvAgent)
	p.agents.replies[weatherAgent.Address] = "Rain today."
	p.agents.errs[tvAgent.Address] = domain.NewSubSystemError("agentrpc", "Client.Send", domain.ErrTimeout, "deadline")

	reply := p.orch.Handle(context.Background(), "r1", composite)

	require.Len(t, reply.Responses, 2)
	assert.Equal(t, "Rain today.", reply.Responses[0].Text)
	assert.False(t, reply.Responses[0].Failed)
	assert.True(t, reply.Responses[1].Failed)
	assert.Equal(t, "TV Agent did not respond in time.", reply.Responses[1].Text)
	assert.Equal(t, domain.StateResponded, reply.Path[len(reply.Path)-1])
	assert.Contains(t, reply.Text, "TV Agent did not respond in time.")
	assert.Equal(t, uint64(1), p.orch.Counters().Failures)
}

func TestSelfSkillsOnlyAreHandledDirectly(t *testing.T) {
	p := newPipeline(t, script{
		"You classify":          `{"request_type":"multi_domain","domains":["weather","tv"]}`,
		"You extract entities":  `{"entities":{"chat_type":"thanks"}}`,
		"You select the skills": `{"required_skills":["orchestration"]}`,
	}, weatherAgent, tvAgent, domain.AgentDescriptor{
		Name: "Main Agent", Address: "http://localhost:18000",
		Skills: []domain.SkillDescriptor{
			{ID: "orchestration", DomainCategory: "orchestration"},
			{ID: "chit_chat", DomainCategory: "general_chat", Keywords: []string{"hi"}},
		},
	})

	reply := p.orch.Handle(context.Background(), "r1", "thanks, both of you")
	assert.Contains(t, reply.Path, domain.StateDirectHandle)
	assert.Empty(t, p.agents.calls)
}

type panicAnalyzer struct{}

func (panicAnalyzer) Analyze(context.Context, string) domain.RequestAnalysis { panic("boom") }

func TestPanicStillResponds(t *testing.T) {
	bus := eventbus.New(discardLogger())
	var mu sync.Mutex
	var responded []domain.Event
	bus.Subscribe(domain.EventRequestResponded, func(_ context.Context, e domain.Event) {
		mu.Lock()
		responded = append(responded, e)
		mu.Unlock()
	})
	o := New(Deps{Analyzer: panicAnalyzer{}, Bus: bus}, nil, 0)

	reply := o.Handle(context.Background(), "r1", "hi")
	bus.Close()

	assert.Equal(t, panicText, reply.Text)
	assert.Equal(t, domain.StateResponded, reply.Path[len(reply.Path)-1])
	assert.Equal(t, uint64(1), o.Counters().Panics)
	assert.Len(t, responded, 1)
	assert.Zero(t, o.InFlight())
}

// blockingDispatcher holds parallel dispatch until the request is cancelled.
type blockingDispatcher struct{ entered chan struct{} }

func (b blockingDispatcher) CallAgent(context.Context, domain.AgentDescriptor, string, string, string) domain.SkillResponse {
	return domain.SkillResponse{}
}

func (b blockingDispatcher) DispatchParallel(ctx context.Context, skills []string, _ map[string][]domain.AgentDescriptor, _, _ string) []domain.SkillResponse {
	close(b.entered)
	<-ctx.Done()
	out := make([]domain.SkillResponse, len(skills))
	for i, s := range skills {
		out[i] = domain.SkillResponse{SkillID: s, Text: "cancelled", Failed: true}
	}
	return out
}

func (b blockingDispatcher) DispatchSequential(ctx context.Context, order []string, agents map[string][]domain.AgentDescriptor, text, sessionID string) []domain.SkillResponse {
	return b.DispatchParallel(ctx, order, agents, text, sessionID)
}

type fixedAnalyzer domain.RequestAnalysis

func (f fixedAnalyzer) Analyze(context.Context, string) domain.RequestAnalysis { return domain.RequestAnalysis(f) }

type fixedPlanner struct{}

func (fixedPlanner) Plan(_ context.Context, _ string, _ domain.RequestAnalysis, skills []string) domain.ExecutionPlan {
	return domain.ExecutionPlan{Order: skills}
}

type noDirectory struct{}

func (noDirectory) Discover(string) []domain.AgentDescriptor { return nil }
func (noDirectory) DiscoverMany(s []string) map[string][]domain.AgentDescriptor {
	return map[string][]domain.AgentDescriptor{}
}
func (noDirectory) ListAll() []domain.AgentDescriptor { return nil }
func (noDirectory) Stats() domain.RegistryStats       { return domain.RegistryStats{} }

type noResponder struct{ t *testing.T }

func (r noResponder) Aggregate(context.Context, string, domain.RequestAnalysis, []domain.SkillResponse) string {
	r.t.Error("cancelled request must not aggregate")
	return ""
}
func (r noResponder) Fallback(responses []domain.SkillResponse) string {
	return aggregator.Fallback(responses)
}
func (r noResponder) HandleDirect(context.Context, string, domain.RequestAnalysis) string { return "" }

func TestCancelInterruptsDispatch(t *testing.T) {
	entered := make(chan struct{})
	sessions := contextprop.New(nil, nil, nil, discardLogger())
	o := New(Deps{
		Directory: noDirectory{},
		Analyzer: fixedAnalyzer{
			RequestType: domain.RequestMultiDomain, Domains: []string{"weather", "tv"},
			RequiresMultipleAgents: true, SkillsNeeded: []string{"weather", "tv"},
		},
		Planner:    fixedPlanner{},
		Dispatcher: blockingDispatcher{entered: entered},
		Sessions:   sessions,
		Responder:  noResponder{t},
	}, nil, 0)

	done := make(chan domain.Reply, 1)
	go func() { done <- o.Handle(context.Background(), "req-1", composite) }()

	<-entered
	assert.Equal(t, 1, o.InFlight())
	assert.False(t, o.Cancel("other"))
	assert.True(t, o.Cancel("req-1"))

	select {
	case reply := <-done:
		assert.Equal(t, cancelledText, reply.Text)
		assert.Equal(t, domain.StateResponded, reply.Path[len(reply.Path)-1])
	case <-time.After(2 * time.Second):
		t.Fatal("request did not finish after cancel")
	}
	assert.Zero(t, o.InFlight())
	assert.Zero(t, sessions.Active())
	assert.Equal(t, uint64(1), o.Counters().Cancelled)
}

func TestRequestTimeout(t *testing.T) {
	entered := make(chan struct{})
	o := New(Deps{
		Directory: noDirectory{},
		Analyzer: fixedAnalyzer{
			RequestType: domain.RequestMultiDomain, Domains: []string{"a", "b"},
			RequiresMultipleAgents: true, SkillsNeeded: []string{"a", "b"},
		},
		Planner:    fixedPlanner{},
		Dispatcher: blockingDispatcher{entered: entered},
		Sessions:   contextprop.New(nil, nil, nil, discardLogger()),
		Responder:  noResponder{t},
	}, nil, 50*time.Millisecond)

	reply := o.Handle(context.Background(), "r", "x")
	assert.Equal(t, timedOutText, reply.Text)
}

// halfDispatcher answers the first skill and then waits out the deadline
// on the second.
type halfDispatcher struct{ blockingDispatcher }

func (halfDispatcher) DispatchSequential(ctx context.Context, order []string, _ map[string][]domain.AgentDescriptor, _, _ string) []domain.SkillResponse {
	out := []domain.SkillResponse{{SkillID: order[0], AgentID: "weather-agent-18001", Text: "Rain today."}}
	<-ctx.Done()
	return append(out, domain.SkillResponse{SkillID: order[1], AgentID: "tv-agent-18002", Text: "TV Agent did not respond in time.", Failed: true})
}

type sequentialPlanner struct{}

func (sequentialPlanner) Plan(_ context.Context, _ string, _ domain.RequestAnalysis, skills []string) domain.ExecutionPlan {
	return domain.ExecutionPlan{Sequential: true, Order: skills}
}

func TestRequestTimeoutKeepsCompletedAnswers(t *testing.T) {
	o := New(Deps{
		Directory: noDirectory{},
		Analyzer: fixedAnalyzer{
			RequestType: domain.RequestMultiDomain, Domains: []string{"weather", "tv"},
			RequiresMultipleAgents: true, SkillsNeeded: []string{"weather", "tv"},
		},
		Planner:    sequentialPlanner{},
		Dispatcher: halfDispatcher{},
		Sessions:   contextprop.New(nil, nil, nil, discardLogger()),
		Responder:  noResponder{t},
	}, nil, 50*time.Millisecond)

	reply := o.Handle(context.Background(), "r", composite)
	require.Len(t, reply.Responses, 2)
	assert.Equal(t, aggregator.Fallback(reply.Responses), reply.Text)
	assert.Contains(t, reply.Text, "Rain today.")
	assert.NotEqual(t, timedOutText, reply.Text)
	assert.Contains(t, reply.Path, domain.StateAggregating)
	assert.False(t, reply.Cancelled)
}

func TestSharedRequestIDsTrackEachCall(t *testing.T) {
	o := New(Deps{}, nil, 0)
	var firstCancelled, secondCancelled bool
	first := o.track("dup", func() { firstCancelled = true })
	second := o.track("dup", func() { secondCancelled = true })
	assert.Equal(t, 2, o.InFlight())

	o.untrack("dup", first)
	assert.Equal(t, 1, o.InFlight())
	assert.True(t, o.Cancel("dup"))
	assert.False(t, firstCancelled)
	assert.True(t, secondCancelled)

	o.untrack("dup", second)
	assert.Zero(t, o.InFlight())
	assert.False(t, o.Cancel("dup"))
}
