package domain

// RequestType is the analyzer's scope classification.
type RequestType string

const (
	RequestSingleDomain RequestType = "single_domain"
	RequestMultiDomain  RequestType = "multi_domain"
)

// UnknownDomain marks an utterance no registered domain claims.
const UnknownDomain = "unknown"

// Entity is one typed value extracted from user text.
type Entity struct {
	Type       string  `json:"type"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

// RequestAnalysis is the analyzer's output for one utterance.
type RequestAnalysis struct {
	RequestType            RequestType `json:"request_type"`
	Domains                []string    `json:"domains"`
	Confidence             float64     `json:"confidence"`
	Entities               []Entity    `json:"entities"`
	RequiresMultipleAgents bool        `json:"requires_multiple_agents"`
	SkillsNeeded           []string    `json:"skills_needed"`
}

// EntityValue returns the first entity value of the given type.
func (a RequestAnalysis) EntityValue(entityType string) (string, bool) {
	for _, e := range a.Entities {
		if e.Type == entityType {
			return e.Value, true
		}
	}
	return "", false
}

// ExecutionPlan is the dependency analyzer's decision.
type ExecutionPlan struct {
	Sequential bool     `json:"is_sequential"`
	Order      []string `json:"execution_order"`
	Rationale  string   `json:"rationale,omitempty"`
}

// SkillResponse pairs a skill with the text its agent returned, in collection order.
type SkillResponse struct {
	SkillID string `json:"skill_id"`
	AgentID string `json:"agent_id,omitempty"`
	Text    string `json:"text"`
	Failed  bool   `json:"failed,omitempty"`
}
