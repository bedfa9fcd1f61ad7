// Package host runs a downstream agent process from the shared config: it
// picks the listen address and public URL, wires registration with the
// router and optional mDNS advertisement, and serves until ctx ends.
package host

import (
	"context"
	"log/slog"
	"net"
	"strings"

	"a2a-router/internal/adapter/llm"
	"a2a-router/internal/domain"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/infra/httpclient"
	"a2a-router/internal/infra/middleware"
	"a2a-router/internal/usecase/discovery"
	"a2a-router/pkg/a2a"
	"a2a-router/pkg/agentsdk"
)

// Spec describes one kind of agent.
type Spec struct {
	DefaultName string
	DefaultAddr string
	Card        func(name, url string) a2a.AgentCard
	Handler     agentsdk.HandlerFunc
}

// Addr returns the configured listen address or the agent's default.
func Addr(cfg config.AgentConfig, fallback string) string {
	if cfg.Addr != "" {
		return cfg.Addr
	}
	return fallback
}

// PublicURL returns agent.url, or http://localhost:<port> derived from addr.
func PublicURL(cfg config.AgentConfig, addr string) string {
	if cfg.URL != "" {
		return strings.TrimRight(cfg.URL, "/")
	}
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://localhost"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, port)
}

// Build assembles the agent described by spec.
func Build(cfg *config.Config, spec Spec, logger *slog.Logger) *agentsdk.Agent {
	name := cfg.Agent.Name
	if name == "" {
		name = spec.DefaultName
	}
	addr := Addr(cfg.Agent, spec.DefaultAddr)
	card := spec.Card(name, PublicURL(cfg.Agent, addr))

	opts := []agentsdk.Option{
		agentsdk.WithAddr(addr),
		agentsdk.WithLogger(logger),
		agentsdk.WithMiddleware(
			middleware.RequestLog(logger),
			middleware.SecurityHeaders,
			middleware.MaxBody(cfg.Gateway.MaxBodyBytes),
		),
	}
	if cfg.Agent.Register {
		opts = append(opts,
			agentsdk.WithRouter(cfg.Agent.RouterURL),
			agentsdk.WithRegistration(cfg.Agent.RegisterAttempts, cfg.Agent.RegisterBackoff),
			agentsdk.WithHTTPClient(httpclient.New(0, cfg.AgentRPC.Timeout, cfg.AgentRPC.Timeout, cfg.AgentRPC.Pool)),
		)
	}
	if cfg.Agent.Advertise {
		mdns := discovery.NewMDNS(cfg.Discovery.Service, cfg.Discovery.Domain, cfg.Discovery.ScanTimeout, logger)
		opts = append(opts, agentsdk.WithAdvertiser(mdns, instanceName(name)))
	}
	return agentsdk.New(card, spec.Handler, opts...)
}

// Serve builds the agent and runs it until ctx ends.
func Serve(ctx context.Context, cfg *config.Config, spec Spec, logger *slog.Logger) error {
	return Build(cfg, spec, logger).Run(ctx)
}

// Understander returns the configured model stack, or nil when none is
// configured; agents then answer with their deterministic templates.
func Understander(ctx context.Context, cfg *config.Config, logger *slog.Logger) (domain.Understander, error) {
	components, err := llm.Build(ctx, cfg.LLM, logger)
	if err != nil {
		return nil, err
	}
	if components == nil {
		return nil, nil
	}
	return llm.NewUnderstander(components.Default, cfg.Router.UnderstandTimeout), nil
}

func instanceName(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}
