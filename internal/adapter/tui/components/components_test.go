package components

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/domain"
)

func TestParseCommand(t *testing.T) {
	name, args, ok := ParseCommand("  /Agents tv weather ")
	require.True(t, ok)
	assert.Equal(t, "/agents", name)
	assert.Equal(t, []string{"tv", "weather"}, args)

	_, _, ok = ParseCommand("what's the weather")
	assert.False(t, ok)
}

func TestRouteSummarySkipsBookends(t *testing.T) {
	got := RouteSummary([]domain.RequestState{
		domain.StateReceived, domain.StateAnalyzing, domain.StateDependencyCheck,
		domain.StateSequentialDispatch, domain.StateAggregating, domain.StateResponded,
	}, 1500*time.Millisecond)
	assert.NotContains(t, got, "received")
	assert.NotContains(t, got, "responded")
	assert.Contains(t, got, "dependency_check")
	assert.Less(t, strings.Index(got, "analyzing"), strings.Index(got, "aggregating"))
	assert.Contains(t, got, "1.5s")
}

func TestTranscriptTrimsOldest(t *testing.T) {
	tr := NewTranscript(2)
	tr.SetSize(80, 10)
	tr.Add(Entry{Role: RoleUser, Content: "one"})
	tr.Add(Entry{Role: RoleUser, Content: "two"})
	tr.Add(Entry{Role: RoleUser, Content: "three"})

	require.Len(t, tr.Entries(), 2)
	assert.Equal(t, "two", tr.Entries()[0].Content)
	assert.Contains(t, tr.Render(), "1 older messages trimmed")

	tr.UpdateLast("three!")
	assert.Equal(t, "three!", tr.Entries()[1].Content)

	tr.Clear()
	assert.Empty(t, tr.Entries())
}

func TestTranscriptListsContributingSkills(t *testing.T) {
	tr := NewTranscript(0)
	tr.SetSize(100, 20)
	tr.Add(Entry{
		Role:    RoleRouter,
		Content: "Both done.",
		Responses: []domain.SkillResponse{
			{SkillID: "weather", AgentID: "weather-agent"},
			{SkillID: "tv", AgentID: "tv-agent", Failed: true},
		},
	})
	out := tr.Render()
	assert.Contains(t, out, "weather @ weather-agent")
	assert.Contains(t, out, "tv @ tv-agent")
}

func TestWrapTextKeepsRunesWhole(t *testing.T) {
	in := strings.Repeat("날씨 ", 30)
	out := wrapText(in, 20)
	for _, line := range strings.Split(out, "\n") {
		assert.LessOrEqual(t, len([]rune(line)), 22)
	}
	assert.Equal(t, strings.Fields(in), strings.Fields(out))
}

func TestInputCompletion(t *testing.T) {
	in := NewInput([]Command{
		{Name: "/agents", Description: "List agents"},
		{Name: "/cancel", Description: "Cancel"},
		{Name: "/clear", Description: "Clear"},
	})
	in.SetWidth(80)

	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("/c")})
	require.True(t, in.Completing())
	assert.Contains(t, in.View(), "/cancel")
	assert.NotContains(t, in.View(), "/agents")

	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyDown})
	in, cmd := in.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd, "enter accepts the completion without submitting")
	assert.Equal(t, "/clear ", in.Value())
	assert.False(t, in.Completing())

	in, cmd = in.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, SubmitMsg{Value: "/clear"}, cmd())
	assert.Empty(t, in.Value())
}

func TestInputIgnoresKeysWhenDisabled(t *testing.T) {
	in := NewInput(nil)
	in.SetEnabled(false)
	in, _ = in.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("hi")})
	assert.Empty(t, in.Value())
}

func TestEventSummary(t *testing.T) {
	ev := domain.NewEvent(domain.EventAgentCallFinished, "sess-1", map[string]any{
		"skill": "weather", "agent_id": "weather-agent", "failed": false, "duration_ms": 42,
	})
	got := EventSummary(ev)
	assert.Contains(t, got, "skill=weather")
	assert.Contains(t, got, "42ms")
	assert.Contains(t, got, "session=sess-1")

	received := domain.NewEvent(domain.EventRequestReceived, "", map[string]string{"request_id": "r1", "text": "turn the tv on"})
	assert.Contains(t, EventSummary(received), `"turn the tv on"`)
}

func TestEventStreamFilterAndCap(t *testing.T) {
	es := NewEventStream()
	es.SetSize(80, 10)
	for i := 0; i < maxEventEntries+10; i++ {
		es.Add(domain.NewEvent(domain.EventRequestState, "", nil))
	}
	es.Add(domain.NewEvent(domain.EventAgentRegistered, "", nil))
	assert.Equal(t, maxEventEntries, es.Count())

	es.SetFilter("agent.")
	assert.Len(t, es.Visible(), 1)
}

func TestTabBar(t *testing.T) {
	tb := NewTabBar([]Tab{{ID: "a", Label: "A"}, {ID: "b", Label: "B"}, {ID: "c", Label: "C"}})
	tb.SetWidth(100)
	tb.Prev()
	assert.Equal(t, "c", tb.ActiveID())
	tb.Next()
	assert.Equal(t, "a", tb.ActiveID())
	tb.SetActive(9)
	assert.Equal(t, "a", tb.ActiveID())

	tb.SetBadge("b", 3)
	assert.Contains(t, tb.View(), "B 3")

	tb.SetWidth(30)
	assert.Contains(t, tb.View(), "[1/3]")
}
