package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validationErrors(t *testing.T, cfg *Config) []string {
	t.Helper()
	err := Validate(cfg)
	if err == nil {
		return nil
	}
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "want *ValidationError, got %T", err)
	return ve.Errors
}

func containsError(errs []string, substr string) bool {
	for _, e := range errs {
		if strings.Contains(e, substr) {
			return true
		}
	}
	return false
}

func TestValidateDefaultsPass(t *testing.T) {
	assert.Empty(t, validationErrors(t, Defaults()))
}

func TestValidateLLM(t *testing.T) {
	tests := []struct {
		name      string
		providers []ProviderConfig
		def       string
		want      string
	}{
		{"missing key", []ProviderConfig{{Name: "openai", Model: "m"}}, "openai", "api_key is empty"},
		{"bad type", []ProviderConfig{{Name: "x", Type: "gemini", APIKey: "k", Model: "m"}}, "x", "type \"gemini\" is invalid"},
		{"bedrock region", []ProviderConfig{{Name: "b", Type: "bedrock", Model: "m"}}, "b", "region is required"},
		{"azure version", []ProviderConfig{{Name: "az", Type: "azure", APIKey: "k", Model: "m", BaseURL: "https://x"}}, "az", "api_version is required"},
		{"unknown default", []ProviderConfig{{Name: "openai", APIKey: "k", Model: "m"}}, "other", "does not match any configured provider"},
		{"duplicate", []ProviderConfig{{Name: "a", APIKey: "k", Model: "m"}, {Name: "a", APIKey: "k", Model: "m"}}, "a", "duplicate provider name"},
		{"missing model", []ProviderConfig{{Name: "a", APIKey: "k"}}, "a", "model must not be empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			cfg.LLM.Providers = tt.providers
			cfg.LLM.DefaultProvider = tt.def
			errs := validationErrors(t, cfg)
			assert.True(t, containsError(errs, tt.want), "errors %v should mention %q", errs, tt.want)
		})
	}
}

func TestValidateFailoverFallbacks(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{{Name: "openai", APIKey: "k", Model: "m"}}
	cfg.LLM.Failover = FailoverConfig{Enabled: true, Fallbacks: []string{"ghost"}}
	assert.True(t, containsError(validationErrors(t, cfg), "failover.fallbacks"))
}

func TestValidateAggregatesAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Logger.Level = "loud"
	cfg.Gateway.Addr = "nope"
	cfg.Router.RequestTimeout = 0
	cfg.Sessions.SweepSchedule = "every tuesday"
	cfg.AgentRPC.Timeout = 0

	errs := validationErrors(t, cfg)
	assert.True(t, containsError(errs, "logger.level"))
	assert.True(t, containsError(errs, "gateway.addr"))
	assert.True(t, containsError(errs, "router.request_timeout"))
	assert.True(t, containsError(errs, "sessions.sweep_schedule"))
	assert.True(t, containsError(errs, "agent_rpc.timeout"))
}

func TestValidateDiscoveryOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Discovery.ScanSchedule = ""
	assert.Empty(t, validationErrors(t, cfg))

	cfg.Discovery.Enabled = true
	assert.True(t, containsError(validationErrors(t, cfg), "discovery.scan_schedule"))
}

func TestValidateAgent(t *testing.T) {
	cfg := Defaults()
	cfg.Agent.URL = "localhost:18001"
	cfg.Agent.RouterURL = "ftp://router"
	errs := validationErrors(t, cfg)
	assert.True(t, containsError(errs, "agent.url"))
	assert.True(t, containsError(errs, "agent.router_url"))

	cfg = Defaults()
	cfg.Agent.Register = false
	cfg.Agent.RouterURL = ""
	assert.Empty(t, validationErrors(t, cfg))
}

func TestValidationErrorFormat(t *testing.T) {
	ve := &ValidationError{}
	assert.False(t, ve.HasErrors())
	ve.Add("a %d", 1)
	ve.Add("b")
	assert.True(t, ve.HasErrors())
	assert.Equal(t, "config validation failed:\n  - a 1\n  - b", ve.Error())
}

func TestValidateJournalOnlyWhenEnabled(t *testing.T) {
	cfg := Defaults()
	cfg.Journal.MaxSize = "lots"
	assert.Empty(t, validationErrors(t, cfg))

	cfg.Journal.Enabled = true
	cfg.Journal.Path = ""
	cfg.Journal.RetentionSchedule = "sometimes"
	errs := validationErrors(t, cfg)
	assert.True(t, containsError(errs, "journal.path"))
	assert.True(t, containsError(errs, "journal.max_size"))
	assert.True(t, containsError(errs, "journal.retention_schedule"))
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"", 0},
		{"512", 512},
		{"100B", 100},
		{"4kb", 4 << 10},
		{" 50MB ", 50 << 20},
		{"1GB", 1 << 30},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	for _, bad := range []string{"MB", "ten", "-5KB"} {
		_, err := ParseSize(bad)
		assert.Error(t, err, bad)
	}
}
