package llm

import (
	"context"
	"fmt"
	"time"

	"a2a-router/internal/domain"
)

// Understander adapts an LLMProvider to domain.Understander. Each call is
// bounded by timeout when it is positive.
type Understander struct {
	provider domain.LLMProvider
	timeout  time.Duration
}

// NewUnderstander wraps provider.
func NewUnderstander(provider domain.LLMProvider, timeout time.Duration) *Understander {
	return &Understander{provider: provider, timeout: timeout}
}

// Understand implements domain.Understander.
func (u *Understander) Understand(ctx context.Context, systemPrompt, userPrompt string, opts domain.UnderstandOptions) (string, error) {
	if u.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.timeout)
		defer cancel()
	}

	msgs := make([]domain.Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, domain.Message{Role: domain.RoleSystem, Content: systemPrompt})
	}
	msgs = append(msgs, domain.Message{Role: domain.RoleUser, Content: userPrompt})

	resp, err := u.provider.Chat(ctx, domain.ChatRequest{
		Messages:    msgs,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
		JSONMode:    opts.JSON,
	})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", domain.NewSubSystemError("llm", "Understander.Understand", domain.ErrTimeout, err.Error())
		}
		return "", fmt.Errorf("understand via %s: %w", u.provider.Name(), err)
	}
	return resp.Message.Content, nil
}

var _ domain.Understander = (*Understander)(nil)
