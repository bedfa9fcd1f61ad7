package gateway

import (
	"net/http"
	"sync/atomic"
	"time"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/orchestrator"
)

// StatusResponse is the JSON body returned by GET /api/v1/status.
type StatusResponse struct {
	Router   RouterStatus          `json:"router"`
	Registry RegistryStatus        `json:"registry"`
	Requests orchestrator.Counters `json:"requests"`
	Sessions SessionStats          `json:"sessions"`
	Calls    CallStatus            `json:"agent_calls"`
	Breakers map[string]string     `json:"breakers,omitempty"`
}

// RouterStatus holds router overview info.
type RouterStatus struct {
	Name          string `json:"name"`
	Version       string `json:"version"`
	URL           string `json:"url"`
	UptimeSeconds int64  `json:"uptime_seconds"`
}

// RegistryStatus holds registry counts.
type RegistryStatus struct {
	TotalAgents    int   `json:"total_agents"`
	HealthyAgents  int   `json:"healthy_agents"`
	DistinctSkills int   `json:"distinct_skills"`
	Registrations  int64 `json:"registrations_total"`
}

// CallStatus holds downstream call counters.
type CallStatus struct {
	Total    int64 `json:"total"`
	Failures int64 `json:"failures"`
}

// Metrics tracks bus-fed counters for the status API and Prometheus metrics.
type Metrics struct {
	Registrations     atomic.Int64
	AgentCalls        atomic.Int64
	AgentCallFailures atomic.Int64
	SessionsSwept     atomic.Int64
}

func registryStatus(stats domain.RegistryStats, metrics *Metrics) RegistryStatus {
	return RegistryStatus{
		TotalAgents:    stats.TotalAgents,
		HealthyAgents:  stats.HealthyAgents,
		DistinctSkills: stats.DistinctSkills,
		Registrations:  metrics.Registrations.Load(),
	}
}

// statusHandler returns an HTTP handler for GET /api/v1/status.
func statusHandler(deps HandlerDeps, startTime time.Time, metrics *Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := StatusResponse{
			Router: RouterStatus{
				Name:          deps.Card.Name,
				Version:       deps.Card.Version,
				URL:           deps.Card.URL,
				UptimeSeconds: int64(time.Since(startTime).Seconds()),
			},
			Registry: registryStatus(deps.Registry.Stats(), metrics),
			Requests: deps.Router.Counters(),
			Sessions: sessionStats(deps),
			Calls: CallStatus{
				Total:    metrics.AgentCalls.Load(),
				Failures: metrics.AgentCallFailures.Load(),
			},
		}
		if deps.Breakers != nil {
			resp.Breakers = deps.Breakers()
		}
		writeJSON(w, http.StatusOK, resp)
	}
}
