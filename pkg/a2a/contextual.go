package a2a

import (
	"fmt"
	"strings"
)

// PreviousInfoHeader opens the block the router appends to a request when an
// earlier agent in a sequential chain already answered.
const PreviousInfoHeader = "[Previous agent info]"

const (
	handledByPrefix     = "Handled by: "
	extractedInfoPrefix = "Extracted info: "
	contextualClosing   = "Please use the information above to handle the request."
)

// Contextual is a request split into the user's text and the previous hop.
type Contextual struct {
	Original  string
	HandledBy string
	Info      string
}

// FormatContextual renders original followed by the previous-hop block.
func FormatContextual(original, handledBy, info string) string {
	return fmt.Sprintf("%s\n\n%s\n%s%s\n%s%s\n\n%s",
		original, PreviousInfoHeader, handledByPrefix, handledBy, extractedInfoPrefix, info, contextualClosing)
}

// ParseContextual splits text produced by FormatContextual. ok is false when
// text carries no previous-hop block.
func ParseContextual(text string) (c Contextual, ok bool) {
	idx := strings.Index(text, PreviousInfoHeader)
	if idx < 0 {
		return Contextual{Original: strings.TrimSpace(text)}, false
	}
	c.Original = strings.TrimSpace(text[:idx])
	for _, line := range strings.Split(text[idx+len(PreviousInfoHeader):], "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, handledByPrefix):
			c.HandledBy = strings.TrimPrefix(line, handledByPrefix)
		case strings.HasPrefix(line, extractedInfoPrefix):
			c.Info = strings.TrimPrefix(line, extractedInfoPrefix)
		}
	}
	return c, true
}
