package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/orchestrator"
	"a2a-router/internal/usecase/registry"
	"a2a-router/pkg/a2a"
)

// Router is the request pipeline the gateway fronts.
type Router interface {
	Handle(ctx context.Context, requestID, text string) domain.Reply
	Cancel(requestID string) bool
	InFlight() int
	Counters() orchestrator.Counters
}

// Registry is the capability registry as seen by the gateway.
type Registry interface {
	Register(ctx context.Context, desc domain.AgentDescriptor) (domain.AgentDescriptor, error)
	ListAll() []domain.AgentDescriptor
	Stats() domain.RegistryStats
}

// SessionCounter reports how many propagation sessions are open.
type SessionCounter interface {
	Active() int
}

// HandlerDeps holds dependencies needed by RPC and HTTP handlers.
type HandlerDeps struct {
	Router   Router
	Registry Registry
	Sessions SessionCounter // can be nil
	Bus      domain.EventBus
	Card     a2a.AgentCard
	// Breakers reports per-agent circuit breaker states; can be nil.
	Breakers func() map[string]string
	Logger   *slog.Logger
}

// RegisterRESTHandlers mounts the HTTP routes: registration, introspection,
// the agent card, JSON-RPC at the root, status and metrics.
func RegisterRESTHandlers(s *Server, deps HandlerDeps) *Metrics {
	startTime := time.Now()
	metrics := &Metrics{}

	if deps.Bus != nil {
		deps.Bus.Subscribe(domain.EventAgentRegistered, func(_ context.Context, _ domain.Event) {
			metrics.Registrations.Add(1)
		})
		deps.Bus.Subscribe(domain.EventAgentCallFinished, func(_ context.Context, e domain.Event) {
			metrics.AgentCalls.Add(1)
			var p struct {
				Failed bool `json:"failed"`
			}
			if json.Unmarshal(e.Payload, &p) == nil && p.Failed {
				metrics.AgentCallFailures.Add(1)
			}
		})
		deps.Bus.Subscribe(domain.EventSessionSwept, func(_ context.Context, _ domain.Event) {
			metrics.SessionsSwept.Add(1)
		})
	}

	rpc := a2a.NewServer(deps.Logger)
	rpc.Handle(a2a.MethodMessageSend, messageSendHandler(deps))
	rpc.Handle(a2a.MethodTasksCancel, tasksCancelHandler(deps))

	s.RegisterHTTPRoute("POST /{$}", rpc)
	s.RegisterHTTPRoute("GET "+a2a.WellKnownCardPath, a2a.CardHandler(deps.Card))
	s.RegisterHTTPRoute("POST /api/registry/register", registerHandler(deps))
	s.RegisterHTTPRoute("GET /api/registry/agents", agentsHandler(deps))
	s.RegisterHTTPRoute("GET /api/v1/status", statusHandler(deps, startTime, metrics))
	s.RegisterHTTPRoute("GET /metrics", metricsHandler(deps, startTime, metrics))
	s.RegisterHTTPRoute("GET /healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	}))

	return metrics
}

// RegisterDefaultHandlers registers the WebSocket RPC methods.
func RegisterDefaultHandlers(s *Server, deps HandlerDeps) {
	s.RegisterHandler(MethodChatSend, chatSendHandler(deps))
	s.RegisterHandler(MethodChatCancel, chatCancelHandler(deps))
	s.RegisterHandler(MethodRegistryList, registryListHandler(deps))
	s.RegisterHandler(MethodRegistryStats, registryStatsHandler(deps))
	s.RegisterHandler(MethodSessionStats, sessionStatsHandler(deps))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// --- registration ---

func registerHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			status := http.StatusBadRequest
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				status = http.StatusRequestEntityTooLarge
			}
			writeJSON(w, status, a2a.RegisterResponse{Message: "Registration error: " + err.Error()})
			return
		}

		card, err := registry.DecodeCard(raw)
		if err != nil {
			deps.Logger.Warn("agent card rejected", "remote", r.RemoteAddr, "error", err)
			writeJSON(w, http.StatusBadRequest, a2a.RegisterResponse{Message: "Agent registration failed: " + err.Error()})
			return
		}

		stored, err := deps.Registry.Register(r.Context(), registry.DescriptorFromCard(card))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, a2a.RegisterResponse{Message: "Agent registration failed: " + err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, a2a.RegisterResponse{
			Success: true,
			Message: "Agent registered successfully",
			AgentID: stored.ID,
		})
	}
}

// AgentsResponse is the body of GET /api/registry/agents.
type AgentsResponse struct {
	Agents []domain.AgentDescriptor `json:"agents"`
	Count  int                      `json:"count"`
	Stats  domain.RegistryStats     `json:"stats"`
}

func agentsHandler(deps HandlerDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		agents := deps.Registry.ListAll()
		if agents == nil {
			agents = []domain.AgentDescriptor{}
		}
		writeJSON(w, http.StatusOK, AgentsResponse{
			Agents: agents,
			Count:  len(agents),
			Stats:  deps.Registry.Stats(),
		})
	}
}

// --- JSON-RPC ---

// requestID picks the id a client can later pass to tasks/cancel.
func requestID(m a2a.Message) string {
	switch {
	case m.TaskID != "":
		return m.TaskID
	case m.MessageID != "":
		return m.MessageID
	default:
		return uuid.NewString()
	}
}

func messageSendHandler(deps HandlerDeps) a2a.Handler {
	return func(ctx context.Context, params json.RawMessage) (any, error) {
		var p a2a.MessageSendParams
		if err := a2a.DecodeParams(params, &p); err != nil {
			return nil, err
		}
		reply := deps.Router.Handle(ctx, requestID(p.Message), p.Message.Text())

		state := a2a.TaskCompleted
		if reply.Cancelled {
			state = a2a.TaskCanceled
		}
		return a2a.Task{
			Kind:      "task",
			ID:        reply.RequestID,
			ContextID: p.Message.ContextID,
			Status:    a2a.TaskStatus{State: state},
			Artifacts: []a2a.Artifact{{
				ArtifactID: uuid.NewString(),
				Name:       "response",
				Parts:      []a2a.Part{a2a.TextPart(reply.Text)},
			}},
		}, nil
	}
}

func tasksCancelHandler(deps HandlerDeps) a2a.Handler {
	return func(_ context.Context, params json.RawMessage) (any, error) {
		var p a2a.TaskIDParams
		if err := a2a.DecodeParams(params, &p); err != nil {
			return nil, err
		}
		if p.ID == "" || !deps.Router.Cancel(p.ID) {
			return nil, a2a.NewError(a2a.CodeTaskNotFound, "task not found")
		}
		return a2a.Task{Kind: "task", ID: p.ID, Status: a2a.TaskStatus{State: a2a.TaskCanceled}}, nil
	}
}

// --- chat ---

// ChatSendRequest is the payload of chat.send. The result is a domain.Reply.
type ChatSendRequest struct {
	RequestID string `json:"request_id"`
	Text      string `json:"text"`
}

func chatSendHandler(deps HandlerDeps) RPCHandler {
	return func(ctx context.Context, client *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req ChatSendRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return nil, domain.ErrRPCInvalidPayload
		}
		deps.Logger.Debug("chat.send", "conn_id", client.ConnID, "request_id", req.RequestID)
		return json.Marshal(deps.Router.Handle(ctx, req.RequestID, req.Text))
	}
}

// ChatCancelRequest is the payload of chat.cancel.
type ChatCancelRequest struct {
	RequestID string `json:"request_id"`
}

// ChatCancelResult is the result of chat.cancel.
type ChatCancelResult struct {
	Cancelled bool `json:"cancelled"`
}

func chatCancelHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, payload json.RawMessage) (json.RawMessage, error) {
		var req ChatCancelRequest
		if err := json.Unmarshal(payload, &req); err != nil || req.RequestID == "" {
			return nil, domain.ErrRPCInvalidPayload
		}
		return json.Marshal(ChatCancelResult{Cancelled: deps.Router.Cancel(req.RequestID)})
	}
}

// --- registry ---

func registryListHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		agents := deps.Registry.ListAll()
		if agents == nil {
			agents = []domain.AgentDescriptor{}
		}
		return json.Marshal(agents)
	}
}

func registryStatsHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(deps.Registry.Stats())
	}
}

// SessionStats is the result of session.stats.
type SessionStats struct {
	Active   int `json:"active"`
	InFlight int `json:"in_flight"`
}

func sessionStatsHandler(deps HandlerDeps) RPCHandler {
	return func(_ context.Context, _ *ClientInfo, _ json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(sessionStats(deps))
	}
}

func sessionStats(deps HandlerDeps) SessionStats {
	st := SessionStats{InFlight: deps.Router.InFlight()}
	if deps.Sessions != nil {
		st.Active = deps.Sessions.Active()
	}
	return st
}
