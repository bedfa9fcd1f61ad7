package main

import (
	"context"
	"log/slog"

	"a2a-router/internal/adapter/llm"
	"a2a-router/internal/domain"
	"a2a-router/internal/infra/config"
)

// noModel answers every understanding call with ErrProviderNotFound, which
// sends each pipeline stage down its deterministic fallback.
type noModel struct{}

func (noModel) Understand(context.Context, string, string, domain.UnderstandOptions) (string, error) {
	return "", domain.ErrProviderNotFound
}

func isNoModel(u domain.Understander) bool {
	_, ok := u.(noModel)
	return ok
}

// initUnderstander wires the configured providers behind one understander.
// With no provider configured the router still runs on conversational fallbacks.
func initUnderstander(ctx context.Context, cfg *config.Config, log *slog.Logger) (domain.Understander, error) {
	components, err := llm.Build(ctx, cfg.LLM, log)
	if err != nil {
		return nil, err
	}
	if components == nil {
		log.Warn("no llm provider configured, routing with conversational fallbacks")
		return noModel{}, nil
	}
	log.Info("llm providers ready", "default", components.Default.Name(), "registered", components.Registry.List())
	return llm.NewUnderstander(components.Default, cfg.Router.UnderstandTimeout), nil
}
