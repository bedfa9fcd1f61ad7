// Package integration wires a complete router and real agents over loopback
// HTTP for end-to-end tests.
package integration

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"a2a-router/internal/adapter/agentrpc"
	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/adapter/journal"
	"a2a-router/internal/adapter/routerclient"
	"a2a-router/internal/domain"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/usecase/aggregator"
	"a2a-router/internal/usecase/analyzer"
	"a2a-router/internal/usecase/contextprop"
	"a2a-router/internal/usecase/coordinator"
	"a2a-router/internal/usecase/eventbus"
	"a2a-router/internal/usecase/orchestrator"
	"a2a-router/internal/usecase/planner"
	"a2a-router/internal/usecase/prompt"
	"a2a-router/internal/usecase/registry"
	"a2a-router/pkg/a2a"
	"a2a-router/pkg/agentsdk"
)

// Config holds live-model test settings read from the environment.
type Config struct {
	OpenAIKey   string
	OpenAIModel string
	TestTimeout time.Duration
}

// LoadConfig reads A2AROUTER_E2E_* variables, falling back to OPENAI_API_KEY.
func LoadConfig() *Config {
	cfg := &Config{
		OpenAIKey:   os.Getenv("A2AROUTER_E2E_OPENAI_KEY"),
		OpenAIModel: os.Getenv("A2AROUTER_E2E_OPENAI_MODEL"),
		TestTimeout: 2 * time.Minute,
	}
	if cfg.OpenAIKey == "" {
		cfg.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.OpenAIModel == "" {
		cfg.OpenAIModel = "gpt-4o-mini"
	}
	return cfg
}

// SkipIfNoAPIKey skips the test if the required API key is not set.
func SkipIfNoAPIKey(t *testing.T, key, name string) {
	t.Helper()
	if key == "" {
		t.Skipf("skipping %s integration test: no API key set", name)
	}
}

// SkipIfShort skips integration tests in short mode.
func SkipIfShort(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
}

// NewTestContext creates a context with timeout for integration tests.
func NewTestContext(t *testing.T, timeout time.Duration) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	t.Cleanup(cancel)
	return ctx
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Script answers understanding calls by matching the start of the system
// prompt. Unmatched prompts fail, which drives the caller to its fallback.
type Script struct {
	mu      sync.Mutex
	answers map[string]string
	calls   []string
}

// NewScript maps system prompt prefixes to canned answers.
func NewScript(answers map[string]string) *Script {
	return &Script{answers: answers}
}

// Understand implements domain.Understander.
func (s *Script) Understand(_ context.Context, system, _ string, _ domain.UnderstandOptions) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for prefix, answer := range s.answers {
		if strings.HasPrefix(system, prefix) {
			s.calls = append(s.calls, prefix)
			return answer, nil
		}
	}
	first, _, _ := strings.Cut(system, "\n")
	s.calls = append(s.calls, first)
	return "", fmt.Errorf("%w: no scripted answer for %q", domain.ErrProviderError, first)
}

// Calls lists the prompts seen so far, in order.
func (s *Script) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Router is an in-process router behind a loopback HTTP server.
type Router struct {
	URL          string
	Registry     *registry.Registry
	Orchestrator *orchestrator.Orchestrator
	Journal      *journal.Journal
	Client       *routerclient.Client
}

// StartRouter wires the router around u the same way the mainagent binary
// does, minus the scheduler, and records every event to a journal.
func StartRouter(t *testing.T, u domain.Understander) *Router {
	t.Helper()
	cfg := config.Defaults()
	log := discardLogger()

	bus := eventbus.New(log)
	t.Cleanup(bus.Close)

	reg := registry.New(bus, log)
	lib, err := prompt.Default()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	prompts := prompt.NewProvider(lib, reg, log)
	reg.OnRegister(prompts.Rebuild)

	caller := agentrpc.New(cfg.AgentRPC, log)
	prop := contextprop.New(u, prompts, bus, log)
	orch := orchestrator.New(orchestrator.Deps{
		Directory:  reg,
		Analyzer:   analyzer.New(u, prompts, log),
		Planner:    planner.New(u, prompts, reg, log),
		Dispatcher: coordinator.New(caller, prop, bus, cfg.Router.Name, log),
		Sessions:   prop,
		Responder:  aggregator.New(u, prompts, reg, nil, 0, log),
		Bus:        bus,
		Logger:     log,
	}, cfg.Router.SelfSkills, cfg.Router.RequestTimeout)

	jr, err := journal.Open(filepath.Join(t.TempDir(), "events.jsonl"), journal.Retention{}, log)
	if err != nil {
		t.Fatalf("journal: %v", err)
	}
	jr.Attach(bus)
	t.Cleanup(func() { jr.Close() })

	srv := gateway.NewServer(bus, "127.0.0.1:0", log)
	late := &lateHandler{}
	ts := httptest.NewServer(late)
	deps := gateway.HandlerDeps{
		Router:   orch,
		Registry: reg,
		Sessions: prop,
		Bus:      bus,
		Card:     a2a.NewCard(cfg.Router.Name, cfg.Router.Description, cfg.Router.Version, ts.URL),
		Breakers: caller.BreakerStates,
		Logger:   log,
	}
	gateway.RegisterRESTHandlers(srv, deps)
	gateway.RegisterDefaultHandlers(srv, deps)
	late.set(srv.Handler())
	t.Cleanup(ts.Close)

	return &Router{
		URL:          ts.URL,
		Registry:     reg,
		Orchestrator: orch,
		Journal:      jr,
		Client:       routerclient.New(ts.URL, nil, agentrpc.New(config.AgentRPCConfig{Timeout: cfg.Router.RequestTimeout}, log)),
	}
}

// StartAgent serves handler on a loopback server under the card built by
// cardFn and registers it with the router.
func StartAgent(t *testing.T, routerURL string, cardFn func(name, url string) a2a.AgentCard, handler agentsdk.HandlerFunc) a2a.AgentCard {
	t.Helper()
	late := &lateHandler{}
	ts := httptest.NewServer(late)
	t.Cleanup(ts.Close)

	agent := agentsdk.New(cardFn("", ts.URL), handler,
		agentsdk.WithRouter(routerURL),
		agentsdk.WithRegistration(3, 10*time.Millisecond),
		agentsdk.WithLogger(discardLogger()),
	)
	late.set(agent.Handler())

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := agent.Register(ctx); err != nil {
		t.Fatalf("register %s: %v", agent.Card().Name, err)
	}
	return agent.Card()
}

// lateHandler lets a server start before the handler that needs its URL
// exists.
type lateHandler struct {
	h atomic.Pointer[http.Handler]
}

func (l *lateHandler) set(h http.Handler) { l.h.Store(&h) }

func (l *lateHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h := l.h.Load()
	if h == nil {
		http.Error(w, "starting", http.StatusServiceUnavailable)
		return
	}
	(*h).ServeHTTP(w, r)
}
