package domain

// RequestState is a step of the per-request state machine.
type RequestState string

const (
	StateReceived           RequestState = "received"
	StateAnalyzing          RequestState = "analyzing"
	StateDirectHandle       RequestState = "direct_handle"
	StateSingleDispatch     RequestState = "single_dispatch"
	StateDependencyCheck    RequestState = "dependency_check"
	StateParallelDispatch   RequestState = "parallel_dispatch"
	StateSequentialDispatch RequestState = "sequential_dispatch"
	StateAggregating        RequestState = "aggregating"
	StateResponded          RequestState = "responded"
)

// Reply is the terminal outcome of one routed request.
type Reply struct {
	RequestID string           `json:"request_id"`
	Text      string           `json:"text"`
	Path      []RequestState   `json:"path"`
	Analysis  *RequestAnalysis `json:"analysis,omitempty"`
	Plan      *ExecutionPlan   `json:"plan,omitempty"`
	Responses []SkillResponse  `json:"responses,omitempty"`
	Cancelled bool             `json:"cancelled,omitempty"`
}
