package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()
	if cfg.LLM.DefaultProvider != "openai" {
		t.Errorf("DefaultProvider = %q, want %q", cfg.LLM.DefaultProvider, "openai")
	}
	if cfg.Logger.Level != "info" {
		t.Errorf("Logger.Level = %q, want %q", cfg.Logger.Level, "info")
	}
	assert.Equal(t, ":18000", cfg.Gateway.Addr)
	assert.Equal(t, 10*time.Second, cfg.AgentRPC.Timeout)
	assert.Equal(t, []string{"orchestration", "chit_chat", "agent_registry"}, cfg.Router.SelfSkills)
	assert.NoError(t, Validate(cfg))
}

func TestLoadNonExistentReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "Main Agent", cfg.Router.Name)
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  default_provider: "groq"
  providers:
    - name: "groq"
      type: "openai"
      base_url: "https://api.groq.com/openai/v1"
      api_key: "test-key"
      model: "llama3-8b"
logger:
  level: "debug"
router:
  understand_timeout: 5s
agent:
  name: "Weather Agent"
  addr: ":18001"
  url: "http://localhost:18001"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "groq", cfg.LLM.DefaultProvider)
	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "test-key", cfg.LLM.Providers[0].APIKey)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, 5*time.Second, cfg.Router.UnderstandTimeout)
	assert.Equal(t, "Weather Agent", cfg.Agent.Name)
	// Untouched sections keep their defaults.
	assert.Equal(t, 10*time.Minute, cfg.Sessions.MaxAge)
}

func TestLoadRejectsWorldWritable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger:\n  level: info\n"), 0600))
	require.NoError(t, os.Chmod(path, 0666))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure permissions")
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("logger: [unterminated"), 0600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("A2AROUTER_LLM_DEFAULT_PROVIDER", "local")
	t.Setenv("A2AROUTER_LOGGER_LEVEL", "debug")
	t.Setenv("A2AROUTER_GATEWAY_ADDR", ":9000")
	t.Setenv("A2AROUTER_AGENT_RPC_TIMEOUT", "3s")
	t.Setenv("A2AROUTER_DISCOVERY_ENABLED", "true")
	t.Setenv("A2AROUTER_GATEWAY_TRUSTED_PROXIES", "10.0.0.1, 10.0.0.2,")
	t.Setenv("A2AROUTER_AGENT_REGISTER_ATTEMPTS", "9")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "local", cfg.LLM.DefaultProvider)
	assert.Equal(t, "debug", cfg.Logger.Level)
	assert.Equal(t, ":9000", cfg.Gateway.Addr)
	assert.Equal(t, 3*time.Second, cfg.AgentRPC.Timeout)
	assert.True(t, cfg.Discovery.Enabled)
	assert.Equal(t, []string{"10.0.0.1", "10.0.0.2"}, cfg.Gateway.RateLimit.TrustedProxies)
	assert.Equal(t, 9, cfg.Agent.RegisterAttempts)
}

func TestEnvOverridesIgnoreInvalidValues(t *testing.T) {
	t.Setenv("A2AROUTER_AGENT_RPC_TIMEOUT", "soon")
	t.Setenv("A2AROUTER_TRACER_ENABLED", "maybe")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	assert.Equal(t, 10*time.Second, cfg.AgentRPC.Timeout)
	assert.False(t, cfg.Tracer.Enabled)
}

func TestEnvOverridesProviderAPIKey(t *testing.T) {
	t.Setenv("A2AROUTER_LLM_PROVIDER_OPENAI_API_KEY", "sk-env")

	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{{Name: "openai", Model: "gpt-4o-mini"}}
	ApplyEnvOverrides(cfg)

	assert.Equal(t, "sk-env", cfg.LLM.Providers[0].APIKey)
}

func TestEnvOverridesAzureProvider(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com/")
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "gpt-4o")
	t.Setenv("AZURE_OPENAI_API_VERSION", "2024-10-21")

	cfg := Defaults()
	ApplyEnvOverrides(cfg)

	require.Len(t, cfg.LLM.Providers, 1)
	p := cfg.LLM.Providers[0]
	assert.Equal(t, "azure", p.Name)
	assert.Equal(t, "https://example.openai.azure.com", p.BaseURL)
	assert.Equal(t, "gpt-4o", p.Model)
	assert.Equal(t, "2024-10-21", p.APIVersion)
	assert.Equal(t, "azure", cfg.LLM.DefaultProvider)
	assert.NoError(t, Validate(cfg))
}

func TestEnvOverridesAzureSkippedWhenProvidersConfigured(t *testing.T) {
	t.Setenv("AZURE_OPENAI_ENDPOINT", "https://example.openai.azure.com")
	t.Setenv("AZURE_OPENAI_API_KEY", "az-key")
	t.Setenv("AZURE_OPENAI_DEPLOYMENT_NAME", "gpt-4o")

	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{{Name: "openai", APIKey: "k", Model: "m"}}
	ApplyEnvOverrides(cfg)

	require.Len(t, cfg.LLM.Providers, 1)
	assert.Equal(t, "openai", cfg.LLM.Providers[0].Name)
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	encrypted, err := EncryptValue("sk-abcdef123456", "test-passphrase-123")
	require.NoError(t, err)

	decrypted, err := DecryptValue(encrypted, "test-passphrase-123")
	require.NoError(t, err)
	assert.Equal(t, "sk-abcdef123456", decrypted)
}

func TestDecryptWrongPassphrase(t *testing.T) {
	encrypted, err := EncryptValue("secret", "correct-pass")
	require.NoError(t, err)

	_, err = DecryptValue(encrypted, "wrong-pass")
	assert.Error(t, err)
}

func TestDecryptMalformed(t *testing.T) {
	for _, in := range []string{"nocolon", "zz:00", "00:zz", "00:00"} {
		_, err := DecryptValue(in, "pass")
		assert.Error(t, err, in)
	}
}

func TestLoadDecryptsSecrets(t *testing.T) {
	encrypted, err := EncryptValue("sk-secret", "config-key")
	require.NoError(t, err)
	t.Setenv("A2AROUTER_CONFIG_KEY", "config-key")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
llm:
  default_provider: "openai"
  providers:
    - name: "openai"
      api_key: "enc:` + encrypted + `"
      model: "gpt-4o-mini"
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sk-secret", cfg.LLM.Providers[0].APIKey)
}

func TestDecryptSecretsInvalidCiphertext(t *testing.T) {
	cfg := Defaults()
	cfg.LLM.Providers = []ProviderConfig{{Name: "openai", APIKey: "enc:notvalidhex"}}
	assert.Error(t, decryptSecrets(cfg, "passphrase"))
}
