package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"sort"
	"strings"
	"time"

	"a2a-router/internal/adapter/routerclient"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/usecase/scheduling"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// doctorHTTP is shared by the network checks.
var doctorHTTP = &http.Client{Timeout: 5 * time.Second}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Some checks work without a config.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "LLM API key", Fn: checkLLMAPIKey},
		{Name: "LLM connectivity", Fn: checkLLMConnectivity},
		{Name: "Gateway port", Fn: checkGatewayPort},
		{Name: "Running router", Fn: checkRunningRouter},
		{Name: "Agent RPC", Fn: checkAgentRPC},
		{Name: "Schedules", Fn: checkSchedules},
		{Name: "Discovery", Fn: checkDiscovery},
		{Name: "Event journal", Fn: checkJournal},
	}

	fmt.Println("mainagent doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above before starting the router.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\nThe router should start, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! The router is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

func notLoaded() CheckResult {
	return CheckResult{Status: StatusFail, Message: "cannot check, config not loaded"}
}

// checkConfigFile reports on the config file. A missing file is allowed:
// the router runs on defaults plus A2AROUTER_* overrides.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			var ve *config.ValidationError
			if errors.As(cfgErr, &ve) {
				return CheckResult{
					Status:  StatusFail,
					Message: fmt.Sprintf("config is invalid: %v", cfgErr),
					Fix:     "Correct the listed fields in config.yaml or the matching A2AROUTER_* variables",
				}
			}
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config file error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and permissions (no group/other write)",
			}
		}

		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
				Fix:     "Create config.yaml or set A2AROUTER_CONFIG to customise the router",
			}
		}

		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

// checkLLMAPIKey verifies the configured providers carry credentials.
func checkLLMAPIKey(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}

	if len(cfg.LLM.Providers) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no LLM providers configured, routing falls back to keyword matching",
			Fix:     "Add a provider under llm.providers or set the Azure OpenAI variables",
		}
	}

	var withKey, withoutKey []string
	for _, p := range cfg.LLM.Providers {
		// Bedrock authenticates through the AWS credential chain.
		if p.APIKey != "" || p.Type == "bedrock" {
			withKey = append(withKey, p.Name)
		} else {
			withoutKey = append(withoutKey, p.Name)
		}
	}

	if len(withKey) == 0 {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("no API keys found for providers: %s", strings.Join(withoutKey, ", ")),
			Fix:     "Set api_key in config.yaml or A2AROUTER_LLM_PROVIDER_<NAME>_API_KEY",
		}
	}

	if len(withoutKey) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("keys configured for [%s]; missing for [%s]", strings.Join(withKey, ", "), strings.Join(withoutKey, ", ")),
		}
	}

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("credentials configured for: %s", strings.Join(withKey, ", ")),
	}
}

// checkLLMConnectivity tests if the default provider's endpoint answers.
func checkLLMConnectivity(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if len(cfg.LLM.Providers) == 0 {
		return CheckResult{Status: StatusWarn, Message: "skipped, no provider configured"}
	}

	var provider *config.ProviderConfig
	for i := range cfg.LLM.Providers {
		if cfg.LLM.Providers[i].Name == cfg.LLM.DefaultProvider {
			provider = &cfg.LLM.Providers[i]
			break
		}
	}
	if provider == nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("default provider %q not found in config", cfg.LLM.DefaultProvider),
		}
	}

	endpoint := providerEndpoint(provider)
	if endpoint == "" {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("no known endpoint for provider type %q, skipping connectivity test", provider.Type),
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return CheckResult{Status: StatusFail, Message: fmt.Sprintf("failed to create request: %v", err)}
	}
	resp, err := doctorHTTP.Do(req)
	latency := time.Since(start)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot reach %s: %v", endpoint, err),
			Fix:     "Check network access to the provider and llm.providers[].base_url",
		}
	}
	resp.Body.Close()

	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s reachable (latency: %dms)", provider.Name, latency.Milliseconds()),
	}
}

// providerEndpoint returns a URL that answers without side effects for the
// given provider.
func providerEndpoint(p *config.ProviderConfig) string {
	base := strings.TrimRight(p.BaseURL, "/")
	switch p.Type {
	case "openai", "":
		if base != "" {
			return base
		}
		return "https://api.openai.com/v1/models"
	case "azure":
		return base
	case "bedrock":
		region := p.Region
		if region == "" {
			region = "us-east-1"
		}
		return "https://bedrock-runtime." + region + ".amazonaws.com/"
	default:
		return base
	}
}

// checkGatewayPort verifies the gateway address can be bound.
func checkGatewayPort(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	ln, err := net.Listen("tcp", cfg.Gateway.Addr)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("%s is in use: %v", cfg.Gateway.Addr, err),
			Fix:     "Stop the process holding the port or change gateway.addr (A2AROUTER_GATEWAY_ADDR)",
		}
	}
	ln.Close()
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("%s is free", cfg.Gateway.Addr)}
}

// checkRunningRouter asks a router at gateway.public_url for its agents.
func checkRunningRouter(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	client := routerclient.New(cfg.Gateway.PublicURL, doctorHTTP, nil)
	if err := client.Healthy(ctx); err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("no router answering at %s", cfg.Gateway.PublicURL),
			Fix:     "Start the router with 'mainagent' or set gateway.public_url",
		}
	}
	agents, err := client.Agents(ctx)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("router at %s is up but listing agents failed: %v", cfg.Gateway.PublicURL, err),
		}
	}

	var names []string
	for _, a := range agents.Agents {
		names = append(names, a.Name)
	}
	sort.Strings(names)
	if len(names) <= 1 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("router up, %d agent(s) registered: %s", len(names), strings.Join(names, ", ")),
			Fix:     "Start weatheragent or tvagent so requests have somewhere to go",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("router up, %d agents registered: %s", len(names), strings.Join(names, ", ")),
	}
}

// checkAgentRPC sanity-checks outbound call settings.
func checkAgentRPC(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	rpc := cfg.AgentRPC
	if rpc.Timeout > cfg.Router.RequestTimeout && cfg.Router.RequestTimeout > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("agent call timeout %s exceeds request timeout %s", rpc.Timeout, cfg.Router.RequestTimeout),
			Fix:     "Lower agent_rpc.timeout below router.request_timeout",
		}
	}
	breaker := "disabled"
	if rpc.CircuitBreaker.Enabled {
		breaker = fmt.Sprintf("opens after %d failures for %s", rpc.CircuitBreaker.MaxFailures, rpc.CircuitBreaker.Timeout)
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("timeout %s, breaker %s", rpc.Timeout, breaker),
	}
}

// checkSchedules parses the cron expressions the scheduler will run.
func checkSchedules(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	specs := map[string]string{"sessions.sweep_schedule": cfg.Sessions.SweepSchedule}
	if cfg.Discovery.Enabled {
		specs["discovery.scan_schedule"] = cfg.Discovery.ScanSchedule
	}
	if cfg.Journal.Enabled {
		specs["journal.retention_schedule"] = cfg.Journal.RetentionSchedule
	}
	for field, spec := range specs {
		if _, err := scheduling.ParseSchedule(spec); err != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("%s %q: %v", field, spec, err),
				Fix:     "Use a cron expression or @every <duration>",
			}
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("session sweep %s, stale after %s", cfg.Sessions.SweepSchedule, cfg.Sessions.MaxAge),
	}
}

// checkDiscovery reports the mDNS browse settings.
func checkDiscovery(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if !cfg.Discovery.Enabled {
		return CheckResult{
			Status:  StatusPass,
			Message: "disabled, agents register over HTTP",
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("browsing %s.%s every scan (%s)", strings.TrimSuffix(cfg.Discovery.Service, "."), cfg.Discovery.Domain, cfg.Discovery.ScanSchedule),
	}
}

// checkJournal verifies the journal file can be appended to.
func checkJournal(cfg *config.Config) CheckResult {
	if cfg == nil {
		return notLoaded()
	}
	if !cfg.Journal.Enabled {
		return CheckResult{Status: StatusPass, Message: "disabled"}
	}
	f, err := os.OpenFile(cfg.Journal.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot write %s: %v", cfg.Journal.Path, err),
			Fix:     "Point journal.path (A2AROUTER_JOURNAL_PATH) at a writable location",
		}
	}
	f.Close()
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s (keep %s, max %s)", cfg.Journal.Path, cfg.Journal.MaxAge, cfg.Journal.MaxSize),
	}
}
