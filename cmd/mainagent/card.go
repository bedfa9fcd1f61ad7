package main

import (
	"a2a-router/internal/infra/config"
	"a2a-router/pkg/a2a"
)

// routerCard is the card the Main Agent serves and registers for itself. It
// carries only the skills listed in cfg.SelfSkills.
func routerCard(cfg config.RouterConfig, url string) a2a.AgentCard {
	description := cfg.Description
	if description == "" {
		description = "Routes requests to the agents that can answer them and merges their replies"
	}
	return a2a.NewCard(cfg.Name, description, cfg.Version, url, selfSkills(cfg.SelfSkills)...)
}

var routerSkills = []a2a.ExtendedSkill{
	{
		AgentSkill: a2a.AgentSkill{
			ID:          "orchestration",
			Name:        "Request Orchestration",
			Description: "Analyzes requests and coordinates the agents that serve them",
			Tags:        []string{"orchestration", "routing", "coordination"},
		},
		DomainCategory: "orchestration",
	},
	{
		AgentSkill: a2a.AgentSkill{
			ID:          "chit_chat",
			Name:        "General Conversation",
			Description: "Greetings, thanks and questions about what the system can do",
			Tags:        []string{"chit_chat", "greeting", "help"},
		},
		DomainCategory: "chit_chat",
		Keywords:       []string{"안녕", "고마워", "도움", "인사", "기능", "문의", "hello", "help"},
		EntityTypes: []a2a.EntityType{
			{Name: "chat_type", Description: "kind of small talk", Examples: []string{"greeting", "thanks", "help", "question"}},
			{Name: "topic", Description: "subject of the question", Examples: []string{"features", "usage", "help", "explanation"}},
		},
	},
	{
		AgentSkill: a2a.AgentSkill{
			ID:          "agent_registry",
			Name:        "Agent Registry",
			Description: "Accepts agent registrations and lists registered agents",
			Tags:        []string{"registry", "discovery"},
		},
		DomainCategory: "agent_registry",
	},
}

func selfSkills(ids []string) []a2a.ExtendedSkill {
	keep := make(map[string]bool, len(ids))
	for _, id := range ids {
		keep[id] = true
	}
	var out []a2a.ExtendedSkill
	for _, s := range routerSkills {
		if keep[s.ID] {
			out = append(out, s)
		}
	}
	return out
}
