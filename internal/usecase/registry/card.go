package registry

import (
	"encoding/json"

	"a2a-router/internal/domain"
	"a2a-router/pkg/a2a"
)

// DecodeCard validates raw against the card schema and decodes it.
func DecodeCard(raw []byte) (a2a.AgentCard, error) {
	var card a2a.AgentCard
	if err := ValidateCard(raw); err != nil {
		return card, err
	}
	if err := json.Unmarshal(raw, &card); err != nil {
		return card, domain.NewSubSystemError("registry", "DecodeCard", domain.ErrInvalidInput, err.Error())
	}
	return card, nil
}

// DescriptorFromCard maps an agent card onto a registry descriptor. Routing
// metadata comes from the extended skills when the card has them.
func DescriptorFromCard(card a2a.AgentCard) domain.AgentDescriptor {
	skills := card.RoutingSkills()
	desc := domain.AgentDescriptor{
		Name:        card.Name,
		Description: card.Description,
		Version:     card.Version,
		Address:     card.URL,
		Skills:      make([]domain.SkillDescriptor, len(skills)),
	}
	for i, s := range skills {
		entities := make([]domain.EntityType, len(s.EntityTypes))
		for j, et := range s.EntityTypes {
			entities[j] = domain.EntityType{Name: et.Name, Description: et.Description, Examples: et.Examples}
		}
		desc.Skills[i] = domain.SkillDescriptor{
			ID:                 s.ID,
			Name:               s.Name,
			Description:        s.Description,
			Tags:               s.Tags,
			DomainCategory:     s.DomainCategory,
			Keywords:           s.Keywords,
			EntityTypes:        entities,
			IntentPatterns:     s.IntentPatterns,
			ConnectionPatterns: s.ConnectionPatterns,
		}
	}
	return desc
}
