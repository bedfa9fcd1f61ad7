package host

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"a2a-router/internal/agents/weather"
	"a2a-router/internal/infra/config"
	"a2a-router/pkg/a2a"
	"a2a-router/pkg/agentsdk"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func echoSpec() Spec {
	return Spec{
		DefaultName: "Weather Agent",
		DefaultAddr: "127.0.0.1:0",
		Card:        weather.Card,
		Handler: func(_ context.Context, req agentsdk.Request) (string, error) {
			return "echo: " + req.Text, nil
		},
	}
}

func TestPublicURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.AgentConfig
		addr string
		want string
	}{
		{"explicit", config.AgentConfig{URL: "http://weather.lan:18001/"}, ":18001", "http://weather.lan:18001"},
		{"port only", config.AgentConfig{}, ":18001", "http://localhost:18001"},
		{"wildcard", config.AgentConfig{}, "0.0.0.0:18002", "http://localhost:18002"},
		{"host", config.AgentConfig{}, "10.0.0.7:18002", "http://10.0.0.7:18002"},
		{"ipv6", config.AgentConfig{}, "[::1]:18002", "http://[::1]:18002"},
		{"garbage", config.AgentConfig{}, "nope", "http://localhost"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PublicURL(tt.cfg, tt.addr))
		})
	}
}

func TestAddr(t *testing.T) {
	assert.Equal(t, ":18001", Addr(config.AgentConfig{}, ":18001"))
	assert.Equal(t, ":9000", Addr(config.AgentConfig{Addr: ":9000"}, ":18001"))
}

func TestBuild_CardIdentity(t *testing.T) {
	cfg := config.Defaults()
	cfg.Agent.Register = false
	cfg.Agent.Addr = ":18011"

	agent := Build(cfg, echoSpec(), testLogger())
	card := agent.Card()
	assert.Equal(t, "Weather Agent", card.Name)
	assert.Equal(t, "http://localhost:18011", card.URL)

	cfg.Agent.Name = "Busan Weather"
	assert.Equal(t, "Busan Weather", Build(cfg, echoSpec(), testLogger()).Card().Name)
}

func TestServe_RegistersWithRouter(t *testing.T) {
	registered := make(chan a2a.AgentCard, 1)
	router := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/registry/register" {
			http.NotFound(w, r)
			return
		}
		var card a2a.AgentCard
		if err := json.NewDecoder(r.Body).Decode(&card); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		registered <- card
		json.NewEncoder(w).Encode(a2a.RegisterResponse{Success: true, AgentID: "weather-agent-0"})
	}))
	defer router.Close()

	cfg := config.Defaults()
	cfg.Agent.RouterURL = router.URL
	cfg.Agent.RegisterBackoff = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, cfg, echoSpec(), testLogger()) }()

	select {
	case card := <-registered:
		assert.Equal(t, "Weather Agent", card.Name)
		require.NotEmpty(t, card.ExtendedSkills)
		assert.Equal(t, weather.SkillID, card.ExtendedSkills[0].ID)
	case <-time.After(5 * time.Second):
		t.Fatal("agent never registered")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not stop")
	}
}

func TestUnderstander_NoProviders(t *testing.T) {
	cfg := config.Defaults()
	u, err := Understander(context.Background(), cfg, testLogger())
	require.NoError(t, err)
	assert.Nil(t, u)
}
