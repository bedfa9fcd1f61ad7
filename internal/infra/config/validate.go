package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a *ValidationError
// when one or more problems are found, allowing callers to inspect all issues.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateLLM(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	validateGateway(cfg, ve)
	validateRouter(cfg, ve)
	validateSessions(cfg, ve)
	validateAgentRPC(cfg, ve)
	validateDiscovery(cfg, ve)
	validateJournal(cfg, ve)
	validateAgent(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

var validProviderTypes = map[string]bool{
	"openai":  true,
	"azure":   true,
	"bedrock": true,
}

func validateLLM(cfg *Config, ve *ValidationError) {
	if cfg.LLM.DefaultProvider == "" {
		ve.Add("llm.default_provider must not be empty")
	}

	if cfg.LLM.CircuitBreaker.Enabled && cfg.LLM.CircuitBreaker.MaxFailures == 0 {
		ve.Add("llm.circuit_breaker.max_failures must be > 0 when enabled")
	}

	// Downstream agents may run without a model; the router enforces one at startup.
	if len(cfg.LLM.Providers) == 0 {
		return
	}

	seen := make(map[string]bool)
	foundDefault := false
	for i, p := range cfg.LLM.Providers {
		if p.Name == "" {
			ve.Add("llm.providers[%d].name must not be empty", i)
			continue
		}
		if seen[p.Name] {
			ve.Add("llm.providers[%d]: duplicate provider name %q", i, p.Name)
		}
		seen[p.Name] = true

		if p.Type != "" && !validProviderTypes[p.Type] {
			ve.Add("llm.providers[%d].type %q is invalid (want: openai, azure, bedrock)", i, p.Type)
		}
		if p.APIKey == "" && p.Type != "bedrock" {
			ve.Add("llm.providers[%d] (%s): api_key is empty (set via %sLLM_PROVIDER_%s_API_KEY)",
				i, p.Name, EnvPrefix, strings.ToUpper(p.Name))
		}
		switch p.Type {
		case "bedrock":
			if p.Region == "" {
				ve.Add("llm.providers[%d] (%s): region is required for bedrock provider", i, p.Name)
			}
		case "azure":
			if p.BaseURL == "" {
				ve.Add("llm.providers[%d] (%s): base_url is required for azure provider", i, p.Name)
			}
			if p.APIVersion == "" {
				ve.Add("llm.providers[%d] (%s): api_version is required for azure provider", i, p.Name)
			}
		}
		if p.Model == "" {
			ve.Add("llm.providers[%d] (%s): model must not be empty", i, p.Name)
		}
		if p.Name == cfg.LLM.DefaultProvider {
			foundDefault = true
		}
	}

	if !foundDefault && cfg.LLM.DefaultProvider != "" {
		ve.Add("llm.default_provider %q does not match any configured provider", cfg.LLM.DefaultProvider)
	}

	if cfg.LLM.Failover.Enabled {
		for _, fb := range cfg.LLM.Failover.Fallbacks {
			if !seen[fb] {
				ve.Add("llm.failover.fallbacks: %q does not match any configured provider", fb)
			}
		}
	}
}

var (
	validLogLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"json": true, "text": true}
	validExporters  = map[string]bool{"noop": true, "stdout": true}
)

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is invalid (want: debug, info, warn, error)", cfg.Logger.Level)
	}
	if !validLogFormats[cfg.Logger.Format] {
		ve.Add("logger.format %q is invalid (want: json, text)", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	if cfg.Tracer.Enabled && !validExporters[cfg.Tracer.Exporter] {
		ve.Add("tracer.exporter %q is invalid (want: noop, stdout)", cfg.Tracer.Exporter)
	}
}

func validateGateway(cfg *Config, ve *ValidationError) {
	if cfg.Gateway.Addr == "" {
		ve.Add("gateway.addr is required")
	} else if _, _, err := net.SplitHostPort(cfg.Gateway.Addr); err != nil {
		ve.Add("gateway.addr %q is not a valid host:port", cfg.Gateway.Addr)
	}
	if cfg.Gateway.PublicURL != "" {
		validateURL("gateway.public_url", cfg.Gateway.PublicURL, ve)
	}
	if cfg.Gateway.MaxBodyBytes <= 0 {
		ve.Add("gateway.max_body_bytes must be > 0")
	}
	if rl := cfg.Gateway.RateLimit; rl.Enabled {
		if rl.RequestsPerMin <= 0 {
			ve.Add("gateway.rate_limit.requests_per_min must be > 0 when enabled")
		}
		if rl.Burst <= 0 {
			ve.Add("gateway.rate_limit.burst must be > 0 when enabled")
		}
	}
}

func validateRouter(cfg *Config, ve *ValidationError) {
	r := cfg.Router
	if r.Name == "" {
		ve.Add("router.name must not be empty")
	}
	if r.UnderstandTimeout <= 0 {
		ve.Add("router.understand_timeout must be > 0")
	}
	if r.RequestTimeout <= 0 {
		ve.Add("router.request_timeout must be > 0")
	}
	if r.MaxPromptTokens < 0 {
		ve.Add("router.max_prompt_tokens must be >= 0")
	}
}

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

func validateSchedule(field, spec string, ve *ValidationError) {
	if spec == "" {
		ve.Add("%s must not be empty", field)
		return
	}
	if _, err := scheduleParser.Parse(spec); err == nil {
		return
	}
	if d, err := time.ParseDuration(spec); err != nil || d <= 0 {
		ve.Add("%s %q is neither a cron expression nor a positive duration", field, spec)
	}
}

func validateSessions(cfg *Config, ve *ValidationError) {
	if cfg.Sessions.MaxAge <= 0 {
		ve.Add("sessions.max_age must be > 0")
	}
	validateSchedule("sessions.sweep_schedule", cfg.Sessions.SweepSchedule, ve)
}

func validateAgentRPC(cfg *Config, ve *ValidationError) {
	if cfg.AgentRPC.Timeout <= 0 {
		ve.Add("agent_rpc.timeout must be > 0")
	}
	if cb := cfg.AgentRPC.CircuitBreaker; cb.Enabled && cb.MaxFailures == 0 {
		ve.Add("agent_rpc.circuit_breaker.max_failures must be > 0 when enabled")
	}
}

func validateDiscovery(cfg *Config, ve *ValidationError) {
	if !cfg.Discovery.Enabled {
		return
	}
	if cfg.Discovery.Service == "" {
		ve.Add("discovery.service is required when discovery is enabled")
	}
	if cfg.Discovery.ScanTimeout <= 0 {
		ve.Add("discovery.scan_timeout must be > 0 when discovery is enabled")
	}
	validateSchedule("discovery.scan_schedule", cfg.Discovery.ScanSchedule, ve)
}

func validateJournal(cfg *Config, ve *ValidationError) {
	j := cfg.Journal
	if !j.Enabled {
		return
	}
	if j.Path == "" {
		ve.Add("journal.path is required when the journal is enabled")
	}
	if j.MaxAge < 0 {
		ve.Add("journal.max_age must be >= 0")
	}
	if _, err := ParseSize(j.MaxSize); err != nil {
		ve.Add("journal.max_size %q is invalid (want e.g. 512KB, 50MB, 1GB)", j.MaxSize)
	}
	validateSchedule("journal.retention_schedule", j.RetentionSchedule, ve)
}

// ParseSize parses a human-readable byte size ("100MB", "1GB"). An empty
// string means no limit.
func ParseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, nil
	}

	multiplier := int64(1)
	for _, unit := range []struct {
		suffix string
		n      int64
	}{{"GB", 1 << 30}, {"MB", 1 << 20}, {"KB", 1 << 10}, {"B", 1}} {
		if strings.HasSuffix(s, unit.suffix) {
			multiplier = unit.n
			s = strings.TrimSuffix(s, unit.suffix)
			break
		}
	}

	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("size %q is negative", s)
	}
	return n * multiplier, nil
}

func validateAgent(cfg *Config, ve *ValidationError) {
	a := cfg.Agent
	if a.Addr != "" {
		if _, _, err := net.SplitHostPort(a.Addr); err != nil {
			ve.Add("agent.addr %q is not a valid host:port", a.Addr)
		}
	}
	if a.URL != "" {
		validateURL("agent.url", a.URL, ve)
	}
	if a.Register {
		validateURL("agent.router_url", a.RouterURL, ve)
		if a.RegisterAttempts <= 0 {
			ve.Add("agent.register_attempts must be > 0 when register is enabled")
		}
	}
}

func validateURL(field, raw string, ve *ValidationError) {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		ve.Add("%s %q must be an absolute http(s) URL", field, raw)
	}
}
