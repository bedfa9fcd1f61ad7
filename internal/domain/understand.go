package domain

import "context"

// UnderstandOptions tunes a single understanding call.
type UnderstandOptions struct {
	MaxTokens   int
	Temperature float64
	// JSON asks the backend for a JSON object response when it supports one.
	JSON bool
}

// Understander is the text-understanding capability: given a system and user
// prompt it returns free text (often JSON) produced by a language model.
type Understander interface {
	Understand(ctx context.Context, systemPrompt, userPrompt string, opts UnderstandOptions) (string, error)
}

// UnderstanderFunc adapts a plain function to Understander.
type UnderstanderFunc func(ctx context.Context, systemPrompt, userPrompt string, opts UnderstandOptions) (string, error)

// Understand calls f.
func (f UnderstanderFunc) Understand(ctx context.Context, systemPrompt, userPrompt string, opts UnderstandOptions) (string, error) {
	return f(ctx, systemPrompt, userPrompt, opts)
}
