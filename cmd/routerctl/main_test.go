package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/orchestrator"
	"a2a-router/pkg/a2a"
)

func TestPositional(t *testing.T) {
	tests := []struct {
		args []string
		want []string
	}{
		{nil, nil},
		{[]string{"send", "hello", "world"}, []string{"send", "hello", "world"}},
		{[]string{"--router", "http://x:1", "cards"}, []string{"cards"}},
		{[]string{"--router=http://x:1", "--json", "status"}, []string{"status"}},
		{[]string{"chat", "--speed", "slow", "--log", "/tmp/c.log"}, []string{"chat"}},
		{[]string{"-h"}, []string{"-h"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, positional(tt.args), "args %v", tt.args)
	}
}

func TestRouterURL_Env(t *testing.T) {
	t.Setenv("A2AROUTER_ROUTER_URL", "http://router.lan:18000/")
	assert.Equal(t, "http://router.lan:18000", routerURL())
}

func TestUptime(t *testing.T) {
	assert.Equal(t, "42s", uptime(42))
	assert.Equal(t, "2m05s", uptime(125))
	assert.Equal(t, "1h01m", uptime(3661))
}

func TestFirstN(t *testing.T) {
	kws := []string{"a", "b", "c"}
	assert.Equal(t, kws, firstN(kws, 3))
	got := firstN(kws, 2)
	assert.Len(t, got, 3)
	assert.Equal(t, "a", got[0])
	assert.Equal(t, []string{"a", "b", "c"}, kws, "input must not be modified")
}

func TestRenderCards(t *testing.T) {
	router := a2a.NewCard("Main Agent", "routes requests", "1.0.0", "http://localhost:18000")
	agents := []domain.AgentDescriptor{
		{
			ID: "weather-agent-18001", Name: "Weather Agent", Address: "http://localhost:18001", Healthy: true,
			Skills: []domain.SkillDescriptor{{ID: "weather", Name: "Weather Information", Keywords: []string{"날씨", "weather"}}},
		},
		{ID: "tv-agent-18002", Name: "TV Agent", Address: "http://localhost:18002", Skills: []domain.SkillDescriptor{{ID: "tv"}}},
	}

	var buf bytes.Buffer
	renderCards(&buf, router, agents)
	out := buf.String()
	assert.Contains(t, out, "Main Agent")
	assert.Contains(t, out, "Registered agents (2)")
	assert.Contains(t, out, "url: http://localhost:18001")
	assert.Contains(t, out, "weather Weather Information")
	assert.Contains(t, out, "[날씨, weather]")
	assert.Contains(t, out, "tv-agent-18002")
}

func TestRenderCards_Empty(t *testing.T) {
	var buf bytes.Buffer
	renderCards(&buf, a2a.AgentCard{Name: "Main Agent"}, nil)
	assert.Contains(t, buf.String(), "No agents registered.")
}

func TestRenderStatus(t *testing.T) {
	var buf bytes.Buffer
	renderStatus(&buf, gateway.StatusResponse{
		Router:   gateway.RouterStatus{Name: "Main Agent", Version: "1.0.0", URL: "http://localhost:18000", UptimeSeconds: 65},
		Registry: gateway.RegistryStatus{TotalAgents: 3, HealthyAgents: 2, DistinctSkills: 5, Registrations: 4},
		Requests: orchestrator.Counters{Requests: 10, Direct: 3, Dispatches: 9, Failures: 1, Cancelled: 1},
		Calls:    gateway.CallStatus{Total: 9, Failures: 2},
		Breakers: map[string]string{"http://b": "open", "http://a": "closed"},
	})
	out := buf.String()
	assert.Contains(t, out, "up 1m05s")
	assert.Contains(t, out, "2 healthy / 3 total, 5 skills, 4 registrations")
	assert.Contains(t, out, "10 total, 3 direct, 9 dispatches, 1 failed, 1 cancelled")
	assert.Contains(t, out, "9 total, 2 failed")
	assert.Less(t, strings.Index(out, "http://a"), strings.Index(out, "http://b"))
}

func TestRunCards(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+a2a.WellKnownCardPath, func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(a2a.NewCard("Main Agent", "", "1.0.0", "http://localhost:18000"))
	})
	mux.HandleFunc("GET /api/registry/agents", func(w http.ResponseWriter, _ *http.Request) {
		json.NewEncoder(w).Encode(gateway.AgentsResponse{
			Agents: []domain.AgentDescriptor{{ID: "tv-agent-18002", Name: "TV Agent", Address: "http://localhost:18002", Healthy: true}},
			Count:  1,
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	t.Setenv("A2AROUTER_ROUTER_URL", srv.URL)

	var buf bytes.Buffer
	require.NoError(t, runCards(&buf))
	assert.Contains(t, buf.String(), "TV Agent")
}

func TestRunStatus_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	t.Setenv("A2AROUTER_ROUTER_URL", url)

	err := runStatus(&bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Router Unreachable")
}
