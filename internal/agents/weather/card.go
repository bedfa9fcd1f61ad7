package weather

import "a2a-router/pkg/a2a"

// SkillID is the weather agent's only skill.
const SkillID = "weather"

// Card describes the weather agent served at url.
func Card(name, url string) a2a.AgentCard {
	if name == "" {
		name = "Weather Agent"
	}
	return a2a.NewCard(name, "Current weather and forecasts for Korean cities", "1.0.0", url,
		a2a.ExtendedSkill{
			AgentSkill: a2a.AgentSkill{
				ID:          SkillID,
				Name:        "Weather Service",
				Description: "Weather conditions and forecasts by city",
				Tags:        []string{"weather", "info", "forecast", "temperature", "condition"},
			},
			DomainCategory: "weather",
			Keywords: []string{
				"weather", "temperature", "rain", "snow", "sunny", "cloudy", "wind", "humidity", "forecast",
				"날씨", "기온", "온도", "비", "눈", "맑음", "흐림", "바람", "습도", "예보",
			},
			EntityTypes: []a2a.EntityType{
				{Name: "location", Description: "City to report on", Examples: Cities()},
				{Name: "time", Description: "Time frame", Examples: []string{"today", "tomorrow", "this week", "next week", "now", "weekend"}},
			},
			IntentPatterns:     []string{"weather inquiry", "weather forecast", "날씨 문의", "날씨 예보"},
			ConnectionPatterns: []string{"suited to", "matching", "appropriate", "based on", "depending on", "어울리는", "맞는", "적절한", "따라", "기반으로", "맞춰서"},
		},
	)
}
