package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"a2a-router/internal/adapter/agentrpc"
	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/adapter/journal"
	"a2a-router/internal/adapter/llm"
	"a2a-router/internal/domain"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/infra/httpclient"
	"a2a-router/internal/infra/middleware"
	"a2a-router/internal/usecase/aggregator"
	"a2a-router/internal/usecase/analyzer"
	"a2a-router/internal/usecase/contextprop"
	"a2a-router/internal/usecase/coordinator"
	"a2a-router/internal/usecase/discovery"
	"a2a-router/internal/usecase/orchestrator"
	"a2a-router/internal/usecase/planner"
	"a2a-router/internal/usecase/prompt"
	"a2a-router/internal/usecase/registry"
	"a2a-router/internal/usecase/scheduling"
	"a2a-router/pkg/a2a"
)

// RuntimeComponents holds the wired router: registry, request pipeline,
// background scheduler and the gateway in front of them.
type RuntimeComponents struct {
	Card         a2a.AgentCard
	Registry     *registry.Registry
	Propagator   *contextprop.Propagator
	Orchestrator *orchestrator.Orchestrator
	Caller       *agentrpc.Client
	Scheduler    *scheduling.Scheduler
	Gateway      *gateway.Server
	Metrics      *gateway.Metrics
	Journal      *journal.Journal
}

func initRuntime(ctx context.Context, cfg *config.Config, u domain.Understander, bus domain.EventBus, log *slog.Logger) (*RuntimeComponents, func(context.Context) error, error) {
	card := routerCard(cfg.Router, cfg.Gateway.PublicURL)

	// Registry and the prompt vocabulary it feeds.
	reg := registry.New(bus, log)
	lib, err := prompt.Default()
	if err != nil {
		return nil, nil, fmt.Errorf("prompts: %w", err)
	}
	prompts := prompt.NewProvider(lib, reg, log)
	reg.OnRegister(prompts.Rebuild)

	// Request pipeline.
	caller := agentrpc.New(cfg.AgentRPC, log)
	prop := contextprop.New(u, prompts, bus, log)
	coord := coordinator.New(caller, prop, bus, cfg.Router.Name, log)
	tokens := llm.NewTokenCounter(cfg.Router.TokenEncoding, log)

	orch := orchestrator.New(orchestrator.Deps{
		Directory:  reg,
		Analyzer:   analyzer.New(u, prompts, log),
		Planner:    planner.New(u, prompts, reg, log),
		Dispatcher: coord,
		Sessions:   prop,
		Responder:  aggregator.New(u, prompts, reg, tokens, cfg.Router.MaxPromptTokens, log),
		Bus:        bus,
		Logger:     log,
	}, cfg.Router.SelfSkills, cfg.Router.RequestTimeout)

	// Background work.
	sched := scheduling.NewScheduler(log)
	if err := prop.ScheduleSweep(sched, cfg.Sessions.SweepSchedule, cfg.Sessions.MaxAge); err != nil {
		return nil, nil, fmt.Errorf("session sweep: %w", err)
	}
	if cfg.Discovery.Enabled {
		if err := initDiscovery(cfg.Discovery, reg, sched, log); err != nil {
			return nil, nil, fmt.Errorf("discovery: %w", err)
		}
	}
	var jr *journal.Journal
	if cfg.Journal.Enabled {
		if jr, err = initJournal(cfg.Journal, bus, sched, log); err != nil {
			return nil, nil, fmt.Errorf("journal: %w", err)
		}
	}

	// Gateway.
	srv := gateway.NewServer(bus, cfg.Gateway.Addr, log,
		middleware.RequestLog(log),
		middleware.SecurityHeaders,
		middleware.MaxBody(cfg.Gateway.MaxBodyBytes),
		middleware.RateLimit(ctx, cfg.Gateway.RateLimit),
	)
	deps := gateway.HandlerDeps{
		Router:   orch,
		Registry: reg,
		Sessions: prop,
		Bus:      bus,
		Card:     card,
		Breakers: caller.BreakerStates,
		Logger:   log,
	}
	metrics := gateway.RegisterRESTHandlers(srv, deps)
	gateway.RegisterDefaultHandlers(srv, deps)

	rt := &RuntimeComponents{
		Card:         card,
		Registry:     reg,
		Propagator:   prop,
		Orchestrator: orch,
		Caller:       caller,
		Scheduler:    sched,
		Gateway:      srv,
		Metrics:      metrics,
		Journal:      jr,
	}

	cleanup := func(ctx context.Context) error {
		var errs []error
		if err := srv.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("gateway: %w", err))
		}
		if err := sched.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
		if jr != nil {
			if err := jr.Close(); err != nil {
				errs = append(errs, fmt.Errorf("journal: %w", err))
			}
		}
		return errors.Join(errs...)
	}
	return rt, cleanup, nil
}

// initDiscovery browses the LAN for agents on schedule and registers the
// ones whose cards validate.
func initDiscovery(cfg config.DiscoveryConfig, reg *registry.Registry, sched *scheduling.Scheduler, log *slog.Logger) error {
	browser := discovery.NewMDNS(cfg.Service, cfg.Domain, cfg.ScanTimeout, log)
	hc := httpclient.New(2*time.Second, cfg.ScanTimeout, cfg.ScanTimeout, config.PoolConfig{})
	scanner := discovery.NewScanner(browser, reg, hc, log)
	return scanner.Schedule(sched, cfg.ScanSchedule)
}

// initJournal records every bus event to disk and trims the file on schedule.
func initJournal(cfg config.JournalConfig, bus domain.EventBus, sched *scheduling.Scheduler, log *slog.Logger) (*journal.Journal, error) {
	maxSize, err := config.ParseSize(cfg.MaxSize)
	if err != nil {
		return nil, err
	}
	jr, err := journal.Open(cfg.Path, journal.Retention{MaxAge: cfg.MaxAge, MaxSize: maxSize}, log)
	if err != nil {
		return nil, err
	}
	if err := jr.Schedule(sched, cfg.RetentionSchedule); err != nil {
		jr.Close()
		return nil, err
	}
	jr.Attach(bus)
	log.Info("event journal enabled", "path", cfg.Path)
	return jr, nil
}

// registerSelf puts the router's own skills into the registry.
func (rt *RuntimeComponents) registerSelf(ctx context.Context) error {
	if len(rt.Card.ExtendedSkills) == 0 {
		return nil
	}
	_, err := rt.Registry.Register(ctx, registry.DescriptorFromCard(rt.Card))
	return err
}
