package weather

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
	"a2a-router/pkg/a2a"
	"a2a-router/pkg/agentsdk"
)

func newAgent(t *testing.T, u domain.Understander) *Agent {
	t.Helper()
	a, err := New(u, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return a
}

func TestExtractCity(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"what's the weather in Busan?", "Busan"},
		{"제주 날씨 알려줘", "Jeju"},
		{"is it raining?", "Seoul"},
		{"DAEJEON forecast", "Daejeon"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCity(tt.text))
		})
	}
}

func TestExtractTime(t *testing.T) {
	assert.Equal(t, "tomorrow", ExtractTime("weather tomorrow in Ulsan"))
	assert.Equal(t, "the day after tomorrow", ExtractTime("the day after tomorrow?"))
	assert.Equal(t, "next week", ExtractTime("다음주 날씨"))
	assert.Equal(t, "today", ExtractTime("weather please"))
}

func TestLookupFallsBackToSeoul(t *testing.T) {
	assert.Equal(t, "Incheon", Lookup("incheon").City)
	assert.Equal(t, "Seoul", Lookup("Atlantis").City)
	assert.Len(t, Cities(), 8)
}

func TestHandleWithoutModel(t *testing.T) {
	a := newAgent(t, nil)

	reply, err := a.Handle(context.Background(), agentsdk.Request{Text: "weather in Busan tomorrow"})
	require.NoError(t, err)
	assert.Equal(t, "🌤️ The weather in Busan tomorrow is partly cloudy, 25°C with 65% humidity.", reply)
}

func TestHandleEmptyText(t *testing.T) {
	reply, err := newAgent(t, nil).Handle(context.Background(), agentsdk.Request{Text: "  "})
	require.NoError(t, err)
	assert.Equal(t, greeting, reply)
}

func TestHandlePhrasedByModel(t *testing.T) {
	var user string
	u := domain.UnderstanderFunc(func(_ context.Context, system, userPrompt string, opts domain.UnderstandOptions) (string, error) {
		assert.True(t, opts.JSON)
		assert.Contains(t, system, "weather assistant")
		user = userPrompt
		return "```json\n{\"response\": \"Jeju is sunny and 28°C today.\"}\n```", nil
	})

	reply, err := newAgent(t, u).Handle(context.Background(), agentsdk.Request{Text: "Jeju weather"})
	require.NoError(t, err)
	assert.Equal(t, "Jeju is sunny and 28°C today.", reply)
	assert.Contains(t, user, "City: Jeju")
	assert.Contains(t, user, "Temperature: 28°C")
}

func TestHandleModelFailureFallsBack(t *testing.T) {
	u := domain.UnderstanderFunc(func(context.Context, string, string, domain.UnderstandOptions) (string, error) {
		return "", errors.New("provider down")
	})

	reply, err := newAgent(t, u).Handle(context.Background(), agentsdk.Request{Text: "weather in Gwangju"})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(reply, "🌤️ The weather in Gwangju today"))
}

func TestHandleChainedUsesPreviousCity(t *testing.T) {
	text := a2a.FormatContextual("what should I wear there?", "travel", "Trip booked to Daegu")

	reply, err := newAgent(t, nil).Handle(context.Background(), agentsdk.Request{Text: text})
	require.NoError(t, err)
	assert.Contains(t, reply, "Daegu")
}

func TestHandleChainedPrompt(t *testing.T) {
	var system string
	u := domain.UnderstanderFunc(func(_ context.Context, s, _ string, _ domain.UnderstandOptions) (string, error) {
		system = s
		return `{"response":"ok"}`, nil
	})
	text := a2a.FormatContextual("weather in Seoul", "tv", "TV is on")

	reply, err := newAgent(t, u).Handle(context.Background(), agentsdk.Request{Text: text})
	require.NoError(t, err)
	assert.Equal(t, "ok", reply)
	assert.Contains(t, system, "The previous agent (tv) reported: TV is on")
}

func TestCard(t *testing.T) {
	card := Card("", "http://localhost:18001")
	assert.Equal(t, "Weather Agent", card.Name)
	require.Len(t, card.ExtendedSkills, 1)
	s := card.ExtendedSkills[0]
	assert.Equal(t, SkillID, s.ID)
	assert.Equal(t, "weather", s.DomainCategory)
	assert.NotEmpty(t, s.ConnectionPatterns)
	assert.Equal(t, "location", s.EntityTypes[0].Name)
}
