// Package contextprop keeps per-request sessions for sequential dispatch and
// distills one agent's answer into context for the next.
package contextprop

import (
	"context"
	"log/slog"
	"math/rand"
	"slices"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"a2a-router/internal/domain"
	"a2a-router/internal/usecase/llmjson"
	"a2a-router/internal/usecase/prompt"
	"a2a-router/pkg/a2a"
)

// fallbackContextRunes is how much of a raw response stands in for a
// distillation the model could not produce.
const fallbackContextRunes = 100

// Session is the state of one execute() call.
type Session struct {
	ID        string
	Request   string
	Responses map[string]string
	Extracted map[string]string
	Order     []string
	CreatedAt time.Time
}

// Propagator owns the live sessions.
type Propagator struct {
	mu       sync.Mutex
	sessions map[string]*Session
	entropy  *ulid.MonotonicEntropy

	understander domain.Understander
	prompts      *prompt.Provider
	bus          domain.EventBus
	logger       *slog.Logger
	now          func() time.Time
}

// New creates a Propagator. bus may be nil.
func New(u domain.Understander, prompts *prompt.Provider, bus domain.EventBus, logger *slog.Logger) *Propagator {
	now := time.Now()
	return &Propagator{
		sessions:     make(map[string]*Session),
		entropy:      ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
		understander: u,
		prompts:      prompts,
		bus:          bus,
		logger:       logger,
		now:          time.Now,
	}
}

// CreateSession starts a session for text and returns its id.
func (p *Propagator) CreateSession(text string) string {
	p.mu.Lock()
	defer p.mu.Unlock()

	t := p.now()
	id := ulid.MustNew(ulid.Timestamp(t), p.entropy).String()
	p.sessions[id] = &Session{
		ID:        id,
		Request:   text,
		Responses: make(map[string]string),
		Extracted: make(map[string]string),
		CreatedAt: t,
	}
	p.logger.Debug("session created", "session_id", id)
	return id
}

// BuildContextualRequest returns the text to send to targetSkill. The first
// hop of a chain gets original unchanged; later hops get original followed
// by the distilled context of the most recent skill.
func (p *Propagator) BuildContextualRequest(sessionID, original, targetSkill string) string {
	p.mu.Lock()
	s, ok := p.sessions[sessionID]
	if !ok || len(s.Order) == 0 {
		p.mu.Unlock()
		return original
	}
	last := s.Order[len(s.Order)-1]
	info, ok := s.Extracted[last]
	if !ok {
		info = llmjson.Truncate(s.Responses[last], fallbackContextRunes)
	}
	p.mu.Unlock()

	p.logger.Debug("contextual request built", "session_id", sessionID, "from", last, "to", targetSkill)
	return a2a.FormatContextual(original, last, info)
}

// StoreResponse records skill's raw response. The order record gets the
// skill once, at its first store.
func (p *Propagator) StoreResponse(sessionID, skill, text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		p.logger.Warn("store on unknown session", "session_id", sessionID, "skill", skill)
		return
	}
	s.Responses[skill] = text
	if !slices.Contains(s.Order, skill) {
		s.Order = append(s.Order, skill)
	}
}

type extractOutput struct {
	ExtractedInfo string   `json:"extracted_info"`
	Confidence    *float64 `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
}

// ExtractContext distills response into the short fact the next agent in the
// chain needs and caches it on the session. It never fails: without a usable
// distillation the head of response is used.
func (p *Propagator) ExtractContext(ctx context.Context, sessionID, response, skill string) string {
	info, err := p.extract(ctx, response, skill)
	if err != nil {
		p.logger.Warn("context extraction failed, using response head", "session_id", sessionID, "skill", skill, "error", err)
		info = llmjson.Truncate(response, fallbackContextRunes)
	} else if info == "" {
		info = llmjson.Truncate(response, fallbackContextRunes)
	}

	p.mu.Lock()
	if s, ok := p.sessions[sessionID]; ok {
		s.Extracted[skill] = info
	}
	p.mu.Unlock()
	p.logger.Debug("context extracted", "session_id", sessionID, "skill", skill, "info", info)
	return info
}

func (p *Propagator) extract(ctx context.Context, response, skill string) (string, error) {
	r, err := p.prompts.Render(prompt.ExtractContext, map[string]any{
		"Categories": p.prompts.Vocabulary().ContextCategories,
		"SkillID":    skill,
		"Response":   response,
	})
	if err != nil {
		return "", err
	}
	raw, err := p.understander.Understand(ctx, r.System, r.User, r.Options)
	if err != nil {
		return "", err
	}
	out, err := llmjson.Decode[extractOutput](raw)
	if err != nil {
		return "", err
	}
	return out.ExtractedInfo, nil
}

// Session returns a copy of the session.
func (p *Propagator) Session(sessionID string) (Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	if !ok {
		return Session{}, domain.NewSubSystemError("session", "Propagator.Session", domain.ErrSessionNotFound, sessionID)
	}
	cp := *s
	cp.Responses = make(map[string]string, len(s.Responses))
	for k, v := range s.Responses {
		cp.Responses[k] = v
	}
	cp.Extracted = make(map[string]string, len(s.Extracted))
	for k, v := range s.Extracted {
		cp.Extracted[k] = v
	}
	cp.Order = slices.Clone(s.Order)
	return cp, nil
}

// CleanupSession drops the session. Unknown ids are ignored.
func (p *Propagator) CleanupSession(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.sessions[sessionID]; ok {
		delete(p.sessions, sessionID)
		p.logger.Debug("session cleaned up", "session_id", sessionID)
	}
}

// Active returns the number of live sessions.
func (p *Propagator) Active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.sessions)
}
