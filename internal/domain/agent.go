package domain

import (
	"net/url"
	"strings"
	"time"
)

// EntityType names one extractable slot a skill understands, with example values.
type EntityType struct {
	Name        string   `json:"name"                  yaml:"name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Examples    []string `json:"examples,omitempty"    yaml:"examples,omitempty"`
}

// SkillDescriptor is one declared capability of an agent.
type SkillDescriptor struct {
	ID                 string       `json:"id"                            yaml:"id"`
	Name               string       `json:"name"                          yaml:"name"`
	Description        string       `json:"description,omitempty"         yaml:"description,omitempty"`
	Tags               []string     `json:"tags,omitempty"                yaml:"tags,omitempty"`
	DomainCategory     string       `json:"domain_category,omitempty"     yaml:"domain_category,omitempty"`
	Keywords           []string     `json:"keywords,omitempty"            yaml:"keywords,omitempty"`
	EntityTypes        []EntityType `json:"entity_types,omitempty"        yaml:"entity_types,omitempty"`
	IntentPatterns     []string     `json:"intent_patterns,omitempty"     yaml:"intent_patterns,omitempty"`
	ConnectionPatterns []string     `json:"connection_patterns,omitempty" yaml:"connection_patterns,omitempty"`
}

// Domain returns the skill's domain category, falling back to its id.
func (s SkillDescriptor) Domain() string {
	if s.DomainCategory != "" {
		return s.DomainCategory
	}
	return s.ID
}

var conversationalMarkers = map[string]bool{
	"general_chat": true,
	"chit_chat":    true,
	"chat":         true,
	"conversation": true,
}

// IsConversational reports whether the skill serves small talk rather than a business domain.
func (s SkillDescriptor) IsConversational() bool {
	if conversationalMarkers[strings.ToLower(s.DomainCategory)] || conversationalMarkers[strings.ToLower(s.ID)] {
		return true
	}
	for _, tag := range s.Tags {
		if conversationalMarkers[strings.ToLower(tag)] {
			return true
		}
	}
	return false
}

// AgentDescriptor represents one capability provider known to the registry.
type AgentDescriptor struct {
	ID           string            `json:"agent_id"`
	Name         string            `json:"name"`
	Description  string            `json:"description,omitempty"`
	Version      string            `json:"version,omitempty"`
	Address      string            `json:"url"`
	Skills       []SkillDescriptor `json:"skills"`
	Healthy      bool              `json:"is_healthy"`
	RegisteredAt time.Time         `json:"registered_at"`
}

// HasSkill reports whether the agent declares skillID.
func (a AgentDescriptor) HasSkill(skillID string) bool {
	for _, s := range a.Skills {
		if s.ID == skillID {
			return true
		}
	}
	return false
}

// Skill returns the descriptor for skillID.
func (a AgentDescriptor) Skill(skillID string) (SkillDescriptor, bool) {
	for _, s := range a.Skills {
		if s.ID == skillID {
			return s, true
		}
	}
	return SkillDescriptor{}, false
}

// SkillIDs returns the declared skill ids in declaration order.
func (a AgentDescriptor) SkillIDs() []string {
	ids := make([]string, len(a.Skills))
	for i, s := range a.Skills {
		ids[i] = s.ID
	}
	return ids
}

// AgentIdentity derives the registry key for an agent: the lower-cased,
// dash-joined name followed by the address port. Re-registration of the same
// process therefore lands on the same key.
func AgentIdentity(name, address string) string {
	id := strings.ToLower(strings.Join(strings.Fields(name), "-"))
	port := ""
	if u, err := url.Parse(address); err == nil && u.Host != "" {
		port = u.Port()
		if port == "" {
			port = u.Hostname()
		}
	}
	if port == "" {
		port = "unknown"
	}
	return id + "-" + port
}

// AgentSummary is a compact view of one agent for introspection.
type AgentSummary struct {
	ID      string   `json:"agent_id"`
	Name    string   `json:"name"`
	Address string   `json:"url"`
	Healthy bool     `json:"is_healthy"`
	Skills  []string `json:"skills"`
}

// RegistryStats aggregates the registry inventory.
type RegistryStats struct {
	TotalAgents    int            `json:"total_agents"`
	HealthyAgents  int            `json:"healthy_agents"`
	DistinctSkills int            `json:"distinct_skills"`
	SkillIDs       []string       `json:"skill_ids"`
	Agents         []AgentSummary `json:"agents"`
}
