package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/domain"
	"a2a-router/pkg/a2a"
)

func TestDescriptorFromCard(t *testing.T) {
	card := a2a.NewCard("Weather Agent", "weather info", "1.0.0", "http://localhost:18001",
		a2a.ExtendedSkill{
			AgentSkill:         a2a.AgentSkill{ID: "weather_info", Name: "Weather", Description: "forecasts", Tags: []string{"weather"}},
			DomainCategory:     "weather",
			Keywords:           []string{"rain"},
			EntityTypes:        []a2a.EntityType{{Name: "location", Description: "city", Examples: []string{"Seoul"}}},
			ConnectionPatterns: []string{"depending on"},
		})

	desc := DescriptorFromCard(card)

	assert.Equal(t, "Weather Agent", desc.Name)
	assert.Equal(t, "http://localhost:18001", desc.Address)
	require.Len(t, desc.Skills, 1)
	s := desc.Skills[0]
	assert.Equal(t, "weather_info", s.ID)
	assert.Equal(t, "weather", s.DomainCategory)
	assert.Equal(t, []domain.EntityType{{Name: "location", Description: "city", Examples: []string{"Seoul"}}}, s.EntityTypes)
	assert.Equal(t, []string{"depending on"}, s.ConnectionPatterns)
}

func TestDescriptorFromBasicCard(t *testing.T) {
	desc := DescriptorFromCard(a2a.AgentCard{
		Name: "Plain", URL: "http://h:1",
		Skills: []a2a.AgentSkill{{ID: "echo", Name: "Echo"}},
	})
	require.Len(t, desc.Skills, 1)
	assert.Equal(t, "echo", desc.Skills[0].ID)
	assert.Equal(t, "echo", desc.Skills[0].Domain())
}

func TestDecodeCard(t *testing.T) {
	raw, err := json.Marshal(a2a.NewCard("TV Agent", "tv", "1", "http://localhost:18002",
		a2a.ExtendedSkill{AgentSkill: a2a.AgentSkill{ID: "tv_control", Name: "TV"}}))
	require.NoError(t, err)

	card, err := DecodeCard(raw)
	require.NoError(t, err)
	assert.Equal(t, "TV Agent", card.Name)

	_, err = DecodeCard([]byte(`{"name":"x"}`))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
