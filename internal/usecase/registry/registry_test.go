package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/eventbus"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func agent(name, url string, skills ...string) domain.AgentDescriptor {
	d := domain.AgentDescriptor{Name: name, Address: url}
	for _, s := range skills {
		d.Skills = append(d.Skills, domain.SkillDescriptor{ID: s, Name: s})
	}
	return d
}

func TestRegisterAndDiscover(t *testing.T) {
	r := New(nil, newTestLogger())

	got, err := r.Register(context.Background(), agent("Weather Agent", "http://localhost:18001", "weather"))
	require.NoError(t, err)
	assert.Equal(t, "weather-agent-18001", got.ID)
	assert.True(t, got.Healthy)
	assert.False(t, got.RegisteredAt.IsZero())

	found := r.Discover("weather")
	require.Len(t, found, 1)
	assert.Equal(t, "http://localhost:18001", found[0].Address)
}

func TestDiscoverUnknownSkillIsEmpty(t *testing.T) {
	r := New(nil, newTestLogger())
	found := r.Discover("nonexistent_skill")
	assert.NotNil(t, found)
	assert.Empty(t, found)
}

func TestRoundTripSkills(t *testing.T) {
	r := New(nil, newTestLogger())
	_, err := r.Register(context.Background(), agent("Multi", "http://h:1", "a", "b", "c"))
	require.NoError(t, err)

	for _, s := range []string{"a", "b", "c"} {
		assert.Len(t, r.Discover(s), 1, s)
	}
	many := r.DiscoverMany([]string{"a", "b", "c", "d"})
	assert.Len(t, many["a"], 1)
	assert.Len(t, many["b"], 1)
	assert.Len(t, many["c"], 1)
	assert.Empty(t, many["d"])
}

func TestRegisterRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		desc domain.AgentDescriptor
	}{
		{"missing name", agent("", "http://h:1", "a")},
		{"missing url", agent("A", "", "a")},
		{"no skills", agent("A", "http://h:1")},
		{"blank skill id", agent("A", "http://h:1", " ")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := New(nil, newTestLogger())
			_, err := r.Register(context.Background(), agent("Seed", "http://h:9", "seed"))
			require.NoError(t, err)
			before := r.Stats()

			_, err = r.Register(context.Background(), tt.desc)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, domain.CodeInvalidDescriptor, domain.ErrorCodeOf(err))
			assert.Equal(t, before, r.Stats())
		})
	}
}

func TestReRegistrationReplacesSkills(t *testing.T) {
	r := New(nil, newTestLogger())
	ctx := context.Background()

	_, err := r.Register(ctx, agent("TV Agent", "http://localhost:18002", "tv_control", "legacy"))
	require.NoError(t, err)
	_, err = r.Register(ctx, agent("TV Agent", "http://localhost:18002", "tv_control"))
	require.NoError(t, err)

	assert.Equal(t, 1, r.Len())
	assert.Len(t, r.Discover("tv_control"), 1)
	assert.Empty(t, r.Discover("legacy"))
	assert.Equal(t, []string{"tv_control"}, r.Stats().SkillIDs)
}

func TestFirstRegisteredWins(t *testing.T) {
	r := New(nil, newTestLogger())
	ctx := context.Background()
	_, _ = r.Register(ctx, agent("First", "http://h:1", "weather"))
	_, _ = r.Register(ctx, agent("Second", "http://h:2", "weather"))
	// Re-registration keeps the original position.
	_, _ = r.Register(ctx, agent("First", "http://h:1", "weather"))

	found := r.Discover("weather")
	require.Len(t, found, 2)
	assert.Equal(t, "first-1", found[0].ID)
	assert.Equal(t, "second-2", found[1].ID)
}

func TestUnhealthyAgentsAreHidden(t *testing.T) {
	r := New(nil, newTestLogger())
	got, err := r.Register(context.Background(), agent("A", "http://h:1", "weather"))
	require.NoError(t, err)

	require.NoError(t, r.SetHealth(got.ID, false))
	assert.Empty(t, r.Discover("weather"))
	assert.Len(t, r.ListAll(), 1)
	assert.Equal(t, 0, r.Stats().HealthyAgents)

	err = r.SetHealth("missing", true)
	assert.Equal(t, domain.CodeAgentNotFound, domain.ErrorCodeOf(err))
}

func TestObserversRunAfterCommit(t *testing.T) {
	r := New(nil, newTestLogger())

	var seen []string
	r.OnRegister(func(_ context.Context, a domain.AgentDescriptor) error {
		// The registration is already visible.
		seen = append(seen, fmt.Sprintf("%s:%d", a.ID, len(r.Discover("weather"))))
		return nil
	})
	r.OnRegister(func(context.Context, domain.AgentDescriptor) error { return errors.New("prompt rebuild failed") })
	r.OnRegister(func(context.Context, domain.AgentDescriptor) error { panic("boom") })

	_, err := r.Register(context.Background(), agent("A", "http://h:1", "weather"))
	require.NoError(t, err)
	assert.Equal(t, []string{"a-1:1"}, seen)
}

func TestRegisterPublishesEvent(t *testing.T) {
	bus := eventbus.New(newTestLogger())
	r := New(bus, newTestLogger())

	got := make(chan domain.Event, 1)
	bus.Subscribe(domain.EventAgentRegistered, func(_ context.Context, e domain.Event) { got <- e })

	_, err := r.Register(context.Background(), agent("A", "http://h:1", "weather"))
	require.NoError(t, err)
	bus.Close()

	ev := <-got
	assert.Contains(t, string(ev.Payload), `"agent_id":"a-1"`)
}

func TestStats(t *testing.T) {
	r := New(nil, newTestLogger())
	ctx := context.Background()
	_, _ = r.Register(ctx, agent("Weather Agent", "http://h:18001", "weather"))
	_, _ = r.Register(ctx, agent("TV Agent", "http://h:18002", "tv_control", "weather"))

	s := r.Stats()
	assert.Equal(t, 2, s.TotalAgents)
	assert.Equal(t, 2, s.HealthyAgents)
	assert.Equal(t, 2, s.DistinctSkills)
	assert.Equal(t, []string{"tv_control", "weather"}, s.SkillIDs)
	require.Len(t, s.Agents, 2)
	assert.Equal(t, "weather-agent-18001", s.Agents[0].ID)
	assert.Equal(t, []string{"tv_control", "weather"}, s.Agents[1].Skills)
}

func TestConcurrentRegisterAndDiscover(t *testing.T) {
	r := New(nil, newTestLogger())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = r.Register(ctx, agent(fmt.Sprintf("Agent %d", i), fmt.Sprintf("http://h:%d", 20000+i), "a", "b"))
		}()
		go func() {
			defer wg.Done()
			// Both skills of an agent become visible together.
			many := r.DiscoverMany([]string{"a", "b"})
			assert.Equal(t, len(many["a"]), len(many["b"]))
		}()
	}
	wg.Wait()
	assert.Equal(t, 20, r.Len())
	assert.Len(t, r.Discover("a"), 20)
}

func TestValidateCard(t *testing.T) {
	valid := `{"name":"Weather Agent","description":"weather","url":"http://localhost:18001",
		"skills":[{"id":"weather","name":"Weather"}],
		"extended_skills":[{"id":"weather","keywords":["날씨"],"entity_types":[{"name":"location","examples":["서울"]}]}]}`
	require.NoError(t, ValidateCard([]byte(valid)))

	bad := map[string]string{
		"missing url":       `{"name":"A","description":"d","skills":[{"id":"a"}]}`,
		"skills not list":   `{"name":"A","description":"d","url":"http://h:1","skills":"weather"}`,
		"empty skills":      `{"name":"A","description":"d","url":"http://h:1","skills":[]}`,
		"keywords wrong":    `{"name":"A","description":"d","url":"http://h:1","skills":[{"id":"a"}],"extended_skills":[{"id":"a","keywords":"x"}]}`,
		"not json":          `{`,
		"skill without id":  `{"name":"A","description":"d","url":"http://h:1","skills":[{"name":"a"}]}`,
	}
	for name, doc := range bad {
		t.Run(name, func(t *testing.T) {
			err := ValidateCard([]byte(doc))
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}
