// Package weather is the weather downstream agent: it finds the city and
// time frame in a request and reports mock conditions, phrased by the
// understanding capability when one is configured.
package weather

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/llmjson"
	"a2a-router/internal/usecase/prompt"
	"a2a-router/pkg/a2a"
	"a2a-router/pkg/agentsdk"
)

//go:embed prompts.yaml
var promptYAML []byte

const greeting = "Hello! I can help with weather information."

// Agent answers weather requests.
type Agent struct {
	understander domain.Understander
	prompts      *prompt.Library
	logger       *slog.Logger
}

// New creates the agent. u may be nil, in which case answers are templated.
func New(u domain.Understander, logger *slog.Logger) (*Agent, error) {
	lib, err := prompt.Parse(promptYAML)
	if err != nil {
		return nil, fmt.Errorf("weather prompts: %w", err)
	}
	return &Agent{understander: u, prompts: lib, logger: logger}, nil
}

// Handle implements agentsdk.HandlerFunc.
func (a *Agent) Handle(ctx context.Context, req agentsdk.Request) (string, error) {
	c, chained := a2a.ParseContextual(req.Text)
	if c.Original == "" {
		return greeting, nil
	}

	city, named := findCity(c.Original)
	if !named && chained {
		// The previous hop may have settled the city.
		city, named = findCity(c.Info)
	}
	if !named {
		city = DefaultCity
	}
	now := Lookup(city)
	when := ExtractTime(c.Original)
	a.logger.Info("weather request", "city", now.City, "when", when, "chained", chained, "session_id", req.SessionID)

	if a.understander == nil {
		return Describe(now, when), nil
	}

	name, data := "weather_response", map[string]any{"Text": c.Original, "When": when, "Now": now}
	if chained {
		name = "weather_with_context"
		data["HandledBy"] = c.HandledBy
		data["Info"] = c.Info
	}
	reply, err := a.phrase(ctx, name, data)
	if err != nil {
		a.logger.Warn("weather phrasing failed, using template", "error", err)
		return Describe(now, when), nil
	}
	return reply, nil
}

type phrased struct {
	Response string `json:"response"`
}

func (a *Agent) phrase(ctx context.Context, name string, data any) (string, error) {
	p, err := a.prompts.Render(name, data)
	if err != nil {
		return "", err
	}
	raw, err := a.understander.Understand(ctx, p.System, p.User, p.Options)
	if err != nil {
		return "", err
	}
	out, err := llmjson.Decode[phrased](raw)
	if err != nil {
		return "", err
	}
	if out.Response == "" {
		return "", fmt.Errorf("%w: empty response field", domain.ErrMalformedOutput)
	}
	return out.Response, nil
}

// Describe is the templated answer.
func Describe(c Conditions, when string) string {
	return fmt.Sprintf("🌤️ The weather in %s %s is %s, %d°C with %d%% humidity.",
		c.City, when, c.Condition, c.TempC, c.Humidity)
}
