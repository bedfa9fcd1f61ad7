// Package a2a holds the wire types shared by the router and downstream
// agents: agent cards, the JSON-RPC 2.0 envelope and the message/task shapes
// carried by message/send.
package a2a

// WellKnownCardPath is where every agent serves its card.
const WellKnownCardPath = "/.well-known/agent.json"

// Capabilities advertises optional protocol features.
type Capabilities struct {
	Streaming              bool `json:"streaming"`
	PushNotifications      bool `json:"pushNotifications"`
	StateTransitionHistory bool `json:"stateTransitionHistory"`
}

// AgentSkill is the basic skill entry of a card.
type AgentSkill struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
}

// EntityType describes one slot a skill can fill from user text.
type EntityType struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Examples    []string `json:"examples,omitempty"`
}

// ExtendedSkill adds the routing metadata the router's analyzer relies on.
type ExtendedSkill struct {
	AgentSkill
	DomainCategory     string       `json:"domain_category,omitempty"`
	Keywords           []string     `json:"keywords,omitempty"`
	EntityTypes        []EntityType `json:"entity_types,omitempty"`
	IntentPatterns     []string     `json:"intent_patterns,omitempty"`
	ConnectionPatterns []string     `json:"connection_patterns,omitempty"`
}

// AgentCard is the self-description an agent serves and registers with.
// ExtendedSkills, when present, supersede Skills for routing.
type AgentCard struct {
	Name               string          `json:"name"`
	Description        string          `json:"description"`
	Version            string          `json:"version,omitempty"`
	URL                string          `json:"url"`
	Capabilities       Capabilities    `json:"capabilities"`
	DefaultInputModes  []string        `json:"defaultInputModes,omitempty"`
	DefaultOutputModes []string        `json:"defaultOutputModes,omitempty"`
	Skills             []AgentSkill    `json:"skills"`
	ExtendedSkills     []ExtendedSkill `json:"extended_skills,omitempty"`
}

// NewCard builds a text-in/text-out card whose basic skill list mirrors the
// extended skills.
func NewCard(name, description, version, url string, skills ...ExtendedSkill) AgentCard {
	basic := make([]AgentSkill, len(skills))
	for i, s := range skills {
		basic[i] = s.AgentSkill
	}
	return AgentCard{
		Name:               name,
		Description:        description,
		Version:            version,
		URL:                url,
		Capabilities:       Capabilities{StateTransitionHistory: true},
		DefaultInputModes:  []string{"text"},
		DefaultOutputModes: []string{"text"},
		Skills:             basic,
		ExtendedSkills:     skills,
	}
}

// RoutingSkills returns the extended skills, or the basic skills lifted to
// extended form when the card carries none.
func (c AgentCard) RoutingSkills() []ExtendedSkill {
	if len(c.ExtendedSkills) > 0 {
		return c.ExtendedSkills
	}
	out := make([]ExtendedSkill, len(c.Skills))
	for i, s := range c.Skills {
		out[i] = ExtendedSkill{AgentSkill: s}
	}
	return out
}

// RegisterResponse is the reply of the router's registration endpoint.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	AgentID string `json:"agent_id,omitempty"`
}
