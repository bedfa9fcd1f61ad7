package llm

import (
	"log/slog"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// bytesPerToken is the estimate used when no BPE encoding is available.
const bytesPerToken = 4

// TokenCounter measures prompt text in model tokens. Without a loadable
// encoding it estimates one token per four bytes.
type TokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTokenCounter loads the named BPE encoding (e.g. "cl100k_base"). Loading
// can fail offline; the counter then estimates.
func NewTokenCounter(encoding string, logger *slog.Logger) *TokenCounter {
	if encoding == "" {
		return &TokenCounter{}
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		logger.Warn("token encoding unavailable, estimating", "encoding", encoding, "error", err)
		return &TokenCounter{}
	}
	return &TokenCounter{enc: enc}
}

// Count returns the token length of text.
func (c *TokenCounter) Count(text string) int {
	if c == nil || c.enc == nil {
		return (len(text) + bytesPerToken - 1) / bytesPerToken
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Truncate returns the longest prefix of text that fits in max tokens.
func (c *TokenCounter) Truncate(text string, max int) string {
	if max <= 0 {
		return ""
	}
	if c.Count(text) <= max {
		return text
	}
	if c != nil && c.enc != nil {
		tokens := c.enc.Encode(text, nil, nil)
		return c.enc.Decode(tokens[:max])
	}
	cut := max * bytesPerToken
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}
