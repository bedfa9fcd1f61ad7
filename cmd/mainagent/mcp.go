package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"a2a-router/internal/adapter/agentrpc"
	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/adapter/routerclient"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/infra/logger"
)

// routerAPI is the slice of a running router the MCP tools need.
type routerAPI interface {
	Send(ctx context.Context, text string) (string, error)
	Agents(ctx context.Context) (gateway.AgentsResponse, error)
	Status(ctx context.Context) (gateway.StatusResponse, error)
}

// runMCP serves router tools over stdio, proxying to the router at --router
// or gateway.public_url.
func runMCP() error {
	cfg, err := config.Load(configPath())
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	// stdout carries the protocol.
	cfg.Logger.Output = "stderr"
	log, logCloser, err := logger.New(cfg.Logger)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logCloser()

	base := flagValue("--router")
	if base == "" {
		base = cfg.Gateway.PublicURL
	}

	// A routed request may wait on several agents.
	rpcCfg := cfg.AgentRPC
	rpcCfg.Timeout = cfg.Router.RequestTimeout + rpcCfg.Timeout
	client := routerclient.New(base, nil, agentrpc.New(rpcCfg, log))

	log.Info("mcp server starting", "router", base)
	return server.ServeStdio(newMCPServer(client, cfg.Router.Version, log))
}

func newMCPServer(api routerAPI, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("a2a-router", version)

	s.AddTool(mcp.NewTool("route_request",
		mcp.WithDescription("Sends a natural-language request to the router, which dispatches it to the matching agents and returns the combined answer."),
		mcp.WithString("text", mcp.Required(), mcp.Description("The request, e.g. 'What's the weather in Busan tomorrow?'")),
	), routeRequestTool(api, log))

	s.AddTool(mcp.NewTool("list_agents",
		mcp.WithDescription("Lists the agents registered with the router and the skills they serve."),
		mcp.WithString("skill", mcp.Description("Only list agents that serve this skill id.")),
	), listAgentsTool(api))

	s.AddTool(mcp.NewTool("router_status",
		mcp.WithDescription("Reports router uptime, request counters, registry size and circuit breaker states."),
	), routerStatusTool(api))

	return s
}

func routeRequestTool(api routerAPI, log *slog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		if strings.TrimSpace(text) == "" {
			return mcp.NewToolResultError("text must not be empty"), nil
		}
		reply, err := api.Send(ctx, text)
		if err != nil {
			log.Warn("mcp route_request failed", "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("router: %v", err)), nil
		}
		return mcp.NewToolResultText(reply), nil
	}
}

func listAgentsTool(api routerAPI) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		skill := req.GetString("skill", "")
		resp, err := api.Agents(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("router: %v", err)), nil
		}

		var b strings.Builder
		n := 0
		for _, a := range resp.Agents {
			ids := a.SkillIDs()
			if skill != "" && !slices.Contains(ids, skill) {
				continue
			}
			n++
			health := "healthy"
			if !a.Healthy {
				health = "unhealthy"
			}
			fmt.Fprintf(&b, "- %s (%s) at %s [%s]: %s\n", a.Name, a.ID, a.Address, health, strings.Join(ids, ", "))
		}
		if n == 0 {
			if skill != "" {
				return mcp.NewToolResultText(fmt.Sprintf("No agent serves skill %q.", skill)), nil
			}
			return mcp.NewToolResultText("No agents registered."), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("%d agent(s):\n%s", n, b.String())), nil
	}
}

func routerStatusTool(api routerAPI) server.ToolHandlerFunc {
	return func(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		st, err := api.Status(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("router: %v", err)), nil
		}

		var b strings.Builder
		fmt.Fprintf(&b, "%s %s at %s, up %ds\n", st.Router.Name, st.Router.Version, st.Router.URL, st.Router.UptimeSeconds)
		fmt.Fprintf(&b, "agents: %d healthy of %d, %d skills\n", st.Registry.HealthyAgents, st.Registry.TotalAgents, st.Registry.DistinctSkills)
		fmt.Fprintf(&b, "requests: %d total, %d direct, %d failed, %d cancelled\n", st.Requests.Requests, st.Requests.Direct, st.Requests.Failures, st.Requests.Cancelled)
		fmt.Fprintf(&b, "sessions: %d active, %d in flight\n", st.Sessions.Active, st.Sessions.InFlight)

		if len(st.Breakers) > 0 {
			addrs := make([]string, 0, len(st.Breakers))
			for addr := range st.Breakers {
				addrs = append(addrs, addr)
			}
			sort.Strings(addrs)
			b.WriteString("breakers:\n")
			for _, addr := range addrs {
				fmt.Fprintf(&b, "  %s: %s\n", addr, st.Breakers[addr])
			}
		}

		raw, err := json.Marshal(st)
		if err != nil {
			return mcp.NewToolResultText(b.String()), nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				mcp.NewTextContent(b.String()),
				mcp.NewTextContent(string(raw)),
			},
		}, nil
	}
}
