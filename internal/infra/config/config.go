package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/argon2"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "A2AROUTER_"

// Config is the top-level application configuration shared by the router and
// the downstream agent daemons.
type Config struct {
	LLM       LLMConfig       `yaml:"llm"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Router    RouterConfig    `yaml:"router"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	AgentRPC  AgentRPCConfig  `yaml:"agent_rpc"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Journal   JournalConfig   `yaml:"journal"`
	Agent     AgentConfig     `yaml:"agent"`
	Includes  []string        `yaml:"includes,omitempty"`
}

// FailoverConfig holds model failover settings.
type FailoverConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Fallbacks []string `yaml:"fallbacks"`
}

// LLMConfig holds settings for the text-understanding backends.
type LLMConfig struct {
	DefaultProvider string               `yaml:"default_provider"`
	Providers       []ProviderConfig     `yaml:"providers"`
	Failover        FailoverConfig       `yaml:"failover"`
	CircuitBreaker  CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// PoolConfig holds HTTP connection pool settings.
type PoolConfig struct {
	MaxIdleConns        int           `yaml:"max_idle_conns"`
	MaxIdleConnsPerHost int           `yaml:"max_idle_conns_per_host"`
	MaxConnsPerHost     int           `yaml:"max_conns_per_host"`
	IdleConnTimeout     time.Duration `yaml:"idle_conn_timeout"`
}

// ProviderConfig holds settings for a single LLM provider.
type ProviderConfig struct {
	Name        string        `yaml:"name"`
	Type        string        `yaml:"type"` // openai, azure, bedrock
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	APIVersion  string        `yaml:"api_version,omitempty"` // azure only
	Region      string        `yaml:"region,omitempty"`      // bedrock only
	ConnTimeout time.Duration `yaml:"conn_timeout"`
	RespTimeout time.Duration `yaml:"resp_timeout"`
	Pool        PoolConfig    `yaml:"pool"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// RateLimitConfig controls per-IP ingress throttling.
type RateLimitConfig struct {
	Enabled        bool     `yaml:"enabled"`
	RequestsPerMin int      `yaml:"requests_per_min"`
	Burst          int      `yaml:"burst"`
	TrustedProxies []string `yaml:"trusted_proxies,omitempty"`
}

// GatewayConfig holds the HTTP/WebSocket listener settings.
type GatewayConfig struct {
	Addr         string          `yaml:"addr"`
	PublicURL    string          `yaml:"public_url"`
	MaxBodyBytes int64           `yaml:"max_body_bytes"`
	RateLimit    RateLimitConfig `yaml:"rate_limit"`
}

// RouterConfig tunes the orchestration engine of the main agent.
type RouterConfig struct {
	Name              string        `yaml:"name"`
	Description       string        `yaml:"description"`
	Version           string        `yaml:"version"`
	SelfSkills        []string      `yaml:"self_skills"`
	SelfRegister      bool          `yaml:"self_register"`
	UnderstandTimeout time.Duration `yaml:"understand_timeout"`
	RequestTimeout    time.Duration `yaml:"request_timeout"`
	MaxPromptTokens   int           `yaml:"max_prompt_tokens"`
	TokenEncoding     string        `yaml:"token_encoding"`
}

// SessionsConfig controls the context propagator's session store.
type SessionsConfig struct {
	MaxAge        time.Duration `yaml:"max_age"`
	SweepSchedule string        `yaml:"sweep_schedule"`
}

// AgentRPCConfig controls outbound calls to downstream agents.
type AgentRPCConfig struct {
	Timeout        time.Duration        `yaml:"timeout"`
	Pool           PoolConfig           `yaml:"pool"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// DiscoveryConfig controls LAN agent discovery over mDNS.
type DiscoveryConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Service      string        `yaml:"service"`
	Domain       string        `yaml:"domain"`
	ScanTimeout  time.Duration `yaml:"scan_timeout"`
	ScanSchedule string        `yaml:"scan_schedule"`
}

// JournalConfig controls the append-only event journal. MaxSize accepts
// human-readable sizes such as "50MB".
type JournalConfig struct {
	Enabled           bool          `yaml:"enabled"`
	Path              string        `yaml:"path"`
	MaxAge            time.Duration `yaml:"max_age"`
	MaxSize           string        `yaml:"max_size"`
	RetentionSchedule string        `yaml:"retention_schedule"`
}

// AgentConfig describes a downstream agent process: where it listens, how it
// presents itself and how it registers with the router.
type AgentConfig struct {
	Name             string        `yaml:"name"`
	Description      string        `yaml:"description"`
	Addr             string        `yaml:"addr"`
	URL              string        `yaml:"url"`
	RouterURL        string        `yaml:"router_url"`
	Register         bool          `yaml:"register"`
	RegisterAttempts int           `yaml:"register_attempts"`
	RegisterBackoff  time.Duration `yaml:"register_backoff"`
	Advertise        bool          `yaml:"advertise"`
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		LLM: LLMConfig{
			DefaultProvider: "openai",
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     60 * time.Second,
				Interval:    30 * time.Second,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "json",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
		Gateway: GatewayConfig{
			Addr:         ":18000",
			PublicURL:    "http://localhost:18000",
			MaxBodyBytes: 1 << 20,
			RateLimit: RateLimitConfig{
				Enabled:        true,
				RequestsPerMin: 600,
				Burst:          60,
			},
		},
		Router: RouterConfig{
			Name:              "Main Agent",
			Description:       "Routes requests to registered agents and combines their answers",
			Version:           "1.0.0",
			SelfSkills:        []string{"orchestration", "chit_chat", "agent_registry"},
			SelfRegister:      true,
			UnderstandTimeout: 30 * time.Second,
			RequestTimeout:    120 * time.Second,
			MaxPromptTokens:   6000,
			TokenEncoding:     "cl100k_base",
		},
		Sessions: SessionsConfig{
			MaxAge:        10 * time.Minute,
			SweepSchedule: "@every 1m",
		},
		AgentRPC: AgentRPCConfig{
			Timeout: 10 * time.Second,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 3,
				Timeout:     30 * time.Second,
				Interval:    60 * time.Second,
			},
		},
		Discovery: DiscoveryConfig{
			Enabled:      false,
			Service:      "_a2aagent._tcp",
			Domain:       "local.",
			ScanTimeout:  5 * time.Second,
			ScanSchedule: "@every 1m",
		},
		Journal: JournalConfig{
			Path:              "events.jsonl",
			MaxAge:            7 * 24 * time.Hour,
			MaxSize:           "50MB",
			RetentionSchedule: "@hourly",
		},
		Agent: AgentConfig{
			RouterURL:        "http://localhost:18000",
			Register:         true,
			RegisterAttempts: 5,
			RegisterBackoff:  2 * time.Second,
		},
	}
}

// Load reads a YAML config file, applies env var overrides, and decrypts secrets.
// A missing file yields defaults plus env overrides.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	// First pass collects the includes list.
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if len(cfg.Includes) > 0 {
		visited := map[string]bool{absPath: true}
		if err := processIncludes(cfg, filepath.Dir(absPath), visited, 0); err != nil {
			return nil, err
		}

		// Second pass: the main file wins over its includes.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config (second pass): %w", err)
		}
		cfg.Includes = nil
	}

	ApplyEnvOverrides(cfg)

	if passphrase := os.Getenv(EnvPrefix + "CONFIG_KEY"); passphrase != "" {
		if err := decryptSecrets(cfg, passphrase); err != nil {
			return nil, fmt.Errorf("decrypt secrets: %w", err)
		}
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func env(name string) string { return os.Getenv(EnvPrefix + name) }

func envDuration(name string, dst *time.Duration) {
	if v := env(name); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			*dst = d
		}
	}
}

func envBool(name string, dst *bool) {
	if v := env(name); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// ApplyEnvOverrides maps A2AROUTER_* env vars to config fields. When no LLM
// provider is configured and the AZURE_OPENAI_* variables are present, an
// "azure" provider is synthesized from them.
func ApplyEnvOverrides(cfg *Config) {
	if v := env("LLM_DEFAULT_PROVIDER"); v != "" {
		cfg.LLM.DefaultProvider = v
	}
	if v := env("LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := env("LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := env("LOGGER_OUTPUT"); v != "" {
		cfg.Logger.Output = v
	}
	envBool("TRACER_ENABLED", &cfg.Tracer.Enabled)
	if v := env("TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
	if v := env("GATEWAY_ADDR"); v != "" {
		cfg.Gateway.Addr = v
	}
	if v := env("GATEWAY_PUBLIC_URL"); v != "" {
		cfg.Gateway.PublicURL = v
	}
	envBool("GATEWAY_RATE_LIMIT_ENABLED", &cfg.Gateway.RateLimit.Enabled)
	if v := env("GATEWAY_TRUSTED_PROXIES"); v != "" {
		cfg.Gateway.RateLimit.TrustedProxies = splitAndTrim(v, ",")
	}
	envDuration("ROUTER_UNDERSTAND_TIMEOUT", &cfg.Router.UnderstandTimeout)
	envDuration("ROUTER_REQUEST_TIMEOUT", &cfg.Router.RequestTimeout)
	envDuration("SESSIONS_MAX_AGE", &cfg.Sessions.MaxAge)
	envDuration("AGENT_RPC_TIMEOUT", &cfg.AgentRPC.Timeout)
	envBool("DISCOVERY_ENABLED", &cfg.Discovery.Enabled)
	envBool("JOURNAL_ENABLED", &cfg.Journal.Enabled)
	if v := env("JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := env("AGENT_NAME"); v != "" {
		cfg.Agent.Name = v
	}
	if v := env("AGENT_ADDR"); v != "" {
		cfg.Agent.Addr = v
	}
	if v := env("AGENT_URL"); v != "" {
		cfg.Agent.URL = v
	}
	if v := env("AGENT_ROUTER_URL"); v != "" {
		cfg.Agent.RouterURL = v
	}
	envBool("AGENT_REGISTER", &cfg.Agent.Register)
	envBool("AGENT_ADVERTISE", &cfg.Agent.Advertise)
	if v := env("AGENT_REGISTER_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Agent.RegisterAttempts = n
		}
	}

	if len(cfg.LLM.Providers) == 0 {
		if p, ok := azureFromEnv(); ok {
			cfg.LLM.Providers = append(cfg.LLM.Providers, p)
			if env("LLM_DEFAULT_PROVIDER") == "" {
				cfg.LLM.DefaultProvider = p.Name
			}
		}
	}

	// Per-provider API key overrides: A2AROUTER_LLM_PROVIDER_<NAME>_API_KEY
	for i := range cfg.LLM.Providers {
		envKey := fmt.Sprintf("LLM_PROVIDER_%s_API_KEY", strings.ToUpper(cfg.LLM.Providers[i].Name))
		if v := env(envKey); v != "" {
			cfg.LLM.Providers[i].APIKey = v
		}
	}
}

// azureFromEnv builds a provider from the conventional Azure OpenAI variables.
func azureFromEnv() (ProviderConfig, bool) {
	endpoint := os.Getenv("AZURE_OPENAI_ENDPOINT")
	key := os.Getenv("AZURE_OPENAI_API_KEY")
	deployment := os.Getenv("AZURE_OPENAI_DEPLOYMENT_NAME")
	if endpoint == "" || key == "" || deployment == "" {
		return ProviderConfig{}, false
	}
	version := os.Getenv("AZURE_OPENAI_API_VERSION")
	if version == "" {
		version = "2024-06-01"
	}
	return ProviderConfig{
		Name:       "azure",
		Type:       "azure",
		BaseURL:    strings.TrimRight(endpoint, "/"),
		APIKey:     key,
		Model:      deployment,
		APIVersion: version,
	}, true
}

// splitAndTrim splits s by sep, trims each element and drops empty ones.
func splitAndTrim(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// decryptSecrets finds "enc:..." values in provider API keys and decrypts them.
func decryptSecrets(cfg *Config, passphrase string) error {
	for i := range cfg.LLM.Providers {
		key := cfg.LLM.Providers[i].APIKey
		if strings.HasPrefix(key, "enc:") {
			decrypted, err := DecryptValue(strings.TrimPrefix(key, "enc:"), passphrase)
			if err != nil {
				return fmt.Errorf("provider %s api_key: %w", cfg.LLM.Providers[i].Name, err)
			}
			cfg.LLM.Providers[i].APIKey = decrypted
		}
	}
	return nil
}

// EncryptValue encrypts a plaintext value with AES-256-GCM using a passphrase.
// The result is hex(salt) + ":" + hex(nonce+ciphertext).
func EncryptValue(plaintext, passphrase string) (string, error) {
	salt := make([]byte, 16)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(salt) + ":" + hex.EncodeToString(ciphertext), nil
}

// DecryptValue decrypts a value produced by EncryptValue.
func DecryptValue(encrypted, passphrase string) (string, error) {
	saltHex, dataHex, ok := strings.Cut(encrypted, ":")
	if !ok {
		return "", fmt.Errorf("invalid encrypted format")
	}

	salt, err := hex.DecodeString(saltHex)
	if err != nil {
		return "", fmt.Errorf("decode salt: %w", err)
	}
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}

	gcm, err := newGCM(passphrase, salt)
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt: %w", err)
	}
	return string(plaintext), nil
}

func newGCM(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create gcm: %w", err)
	}
	return gcm, nil
}

// deriveKey uses Argon2id to derive a 32-byte key from passphrase + salt.
func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// validatePermissions rejects config files writable by group or others.
func validatePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	mode := info.Mode().Perm()
	if mode&0o077 > 0o044 {
		return fmt.Errorf("config file %s has insecure permissions %o (want 0600 or 0644)", path, mode)
	}
	return nil
}
