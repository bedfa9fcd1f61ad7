package llm

import (
	"context"
	"fmt"
	"log/slog"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/config"
)

// Components is the wired model stack of one process.
type Components struct {
	Registry *Registry
	Default  domain.LLMProvider
}

// NewProvider builds the backend named by pc.Type.
func NewProvider(ctx context.Context, pc config.ProviderConfig, logger *slog.Logger) (domain.LLMProvider, error) {
	switch pc.Type {
	case "", "openai", "azure":
		return NewOpenAIProvider(pc, logger), nil
	case "bedrock":
		return NewBedrockProvider(ctx, pc, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider type %q", domain.ErrInvalidInput, pc.Type)
	}
}

// Build registers every configured provider behind its circuit breaker and
// resolves the default, wrapped with failover when enabled. It returns nil
// components when no provider is configured.
func Build(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (*Components, error) {
	if len(cfg.Providers) == 0 {
		return nil, nil
	}

	registry := NewRegistry()
	for _, pc := range cfg.Providers {
		provider, err := NewProvider(ctx, pc, logger)
		if err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
		if cfg.CircuitBreaker.Enabled {
			provider = NewCircuitBreakerProvider(provider, cfg.CircuitBreaker, logger)
		}
		if err := registry.Register(provider); err != nil {
			return nil, fmt.Errorf("llm provider %s: %w", pc.Name, err)
		}
	}

	def, err := registry.Get(cfg.DefaultProvider)
	if err != nil {
		return nil, fmt.Errorf("default llm provider: %w", err)
	}

	if cfg.Failover.Enabled && len(cfg.Failover.Fallbacks) > 0 {
		var fallbacks []domain.LLMProvider
		for _, name := range cfg.Failover.Fallbacks {
			fb, err := registry.Get(name)
			if err != nil {
				return nil, fmt.Errorf("failover provider %s: %w", name, err)
			}
			fallbacks = append(fallbacks, fb)
		}
		def = NewFailoverProvider(def, fallbacks, logger)
		logger.Info("model failover enabled", "fallbacks", cfg.Failover.Fallbacks)
	}

	return &Components{Registry: registry, Default: def}, nil
}
