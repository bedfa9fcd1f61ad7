package tv

import "a2a-router/pkg/a2a"

// SkillID is the TV agent's only skill.
const SkillID = "tv"

// Card describes the TV agent served at url.
func Card(name, url string) a2a.AgentCard {
	if name == "" {
		name = "TV Agent"
	}
	return a2a.NewCard(name, "TV power, volume, channel and input control", "1.0.0", url,
		a2a.ExtendedSkill{
			AgentSkill: a2a.AgentSkill{
				ID:          SkillID,
				Name:        "TV Control Service",
				Description: "TV control and settings",
				Tags:        []string{"tv", "control", "settings", "power", "volume", "channel", "remote"},
			},
			DomainCategory: "tv",
			Keywords: []string{
				"tv", "television", "volume", "channel", "mute", "hdmi", "remote", "broadcast",
				"티비", "텔레비전", "볼륨", "채널", "켜기", "끄기", "음량", "소리", "방송", "리모컨", "설정", "세팅",
			},
			EntityTypes: []a2a.EntityType{
				{Name: "action", Description: "TV operation", Examples: []string{ActionVolumeUp, ActionVolumeDown, ActionChannel, ActionPowerOn, ActionPowerOff}},
				{Name: "channel", Description: "Channel number or network", Examples: []string{"1", "7", "9", "11", "MBC", "SBS", "KBS", "tvN"}},
				{Name: "volume_level", Description: "Volume level", Examples: []string{"5", "10", "20", "max", "min", "최대", "최소"}},
				{Name: "setting_type", Description: "Picture or sound setting", Examples: []string{"picture", "sound", "brightness", "contrast", "화질", "음질", "밝기"}},
				{Name: "setting_value", Description: "Setting value", Examples: []string{"high", "medium", "low", "auto", "높음", "중간", "낮음", "자동"}},
			},
			IntentPatterns:     []string{"tv control", "tv settings", "TV 제어", "리모컨 조작", "TV 설정", "설정 변경"},
			ConnectionPatterns: []string{"suited to", "matching", "appropriate", "based on", "adjust", "어울리는", "맞는", "적절한", "조절", "기반으로", "맞춰서"},
		},
	)
}
