// Package orchestrator drives one user request through analysis, dispatch
// and aggregation, and owns request cancellation.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/tracer"
)

// Analyzer turns text into a RequestAnalysis.
type Analyzer interface {
	Analyze(ctx context.Context, text string) domain.RequestAnalysis
}

// Planner orders the skills of a composite request.
type Planner interface {
	Plan(ctx context.Context, text string, analysis domain.RequestAnalysis, skills []string) domain.ExecutionPlan
}

// Dispatcher sends work to downstream agents.
type Dispatcher interface {
	CallAgent(ctx context.Context, agent domain.AgentDescriptor, text, skill, sessionID string) domain.SkillResponse
	DispatchParallel(ctx context.Context, skills []string, agents map[string][]domain.AgentDescriptor, text, sessionID string) []domain.SkillResponse
	DispatchSequential(ctx context.Context, order []string, agents map[string][]domain.AgentDescriptor, text, sessionID string) []domain.SkillResponse
}

// Sessions opens and closes per-request sessions.
type Sessions interface {
	CreateSession(text string) string
	CleanupSession(sessionID string)
}

// Responder writes the final text. Fallback must not block: it runs after
// the request deadline has passed.
type Responder interface {
	Aggregate(ctx context.Context, text string, analysis domain.RequestAnalysis, responses []domain.SkillResponse) string
	Fallback(responses []domain.SkillResponse) string
	HandleDirect(ctx context.Context, text string, analysis domain.RequestAnalysis) string
}

// User-facing texts that do not come from an agent or the responder.
const (
	greeting      = "Hello! How can I help you?"
	cancelledText = "The request was cancelled."
	timedOutText  = "Sorry, the request took too long. Please try again."
	panicText     = "Sorry, something went wrong while handling your request. Please try again."
)

// Deps bundles the collaborators of an Orchestrator.
type Deps struct {
	Directory  domain.AgentDirectory
	Analyzer   Analyzer
	Planner    Planner
	Dispatcher Dispatcher
	Sessions   Sessions
	Responder  Responder
	Bus        domain.EventBus
	Logger     *slog.Logger
}

// Orchestrator is the Main Agent's request pipeline.
type Orchestrator struct {
	Deps
	selfSkills map[string]bool
	timeout    time.Duration
	counters   counters

	mu       sync.Mutex
	inflight map[string][]*flight
}

// flight is one Handle call. Clients pick request ids, so several calls
// may share one.
type flight struct {
	cancel context.CancelFunc
}

// New creates an Orchestrator. Skills in selfSkills are never dispatched;
// timeout bounds a whole request when positive.
func New(deps Deps, selfSkills []string, timeout time.Duration) *Orchestrator {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.DiscardHandler)
	}
	self := make(map[string]bool, len(selfSkills))
	for _, s := range selfSkills {
		self[s] = true
	}
	return &Orchestrator{
		Deps:       deps,
		selfSkills: self,
		timeout:    timeout,
		inflight:   make(map[string][]*flight),
	}
}

// run tracks one request's path through the state machine.
type run struct {
	id    string
	reply domain.Reply
}

func (o *Orchestrator) enter(ctx context.Context, r *run, state domain.RequestState) {
	r.reply.Path = append(r.reply.Path, state)
	o.publish(ctx, domain.EventRequestState, map[string]string{"request_id": r.id, "state": string(state)})
}

func (o *Orchestrator) publish(ctx context.Context, t domain.EventType, payload any) {
	if o.Bus != nil {
		o.Bus.Publish(context.WithoutCancel(ctx), domain.NewEvent(t, "", payload))
	}
}

// Handle routes text and always returns a reply with text. An empty
// requestID gets a fresh one.
func (o *Orchestrator) Handle(ctx context.Context, requestID, text string) (reply domain.Reply) {
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx, span := tracer.StartSpan(ctx, "router.handle")
	defer span.End()
	span.SetAttributes(tracer.StringAttr("request_id", requestID))

	if o.timeout > 0 {
		var cancelTimeout context.CancelFunc
		ctx, cancelTimeout = context.WithTimeout(ctx, o.timeout)
		defer cancelTimeout()
	}
	ctx, cancel := context.WithCancelCause(ctx)
	f := o.track(requestID, func() { cancel(domain.ErrRequestCancelled) })
	defer func() {
		o.untrack(requestID, f)
		cancel(nil)
	}()

	r := &run{id: requestID, reply: domain.Reply{RequestID: requestID}}
	o.counters.requests.Add(1)
	o.publish(ctx, domain.EventRequestReceived, map[string]string{"request_id": requestID, "text": text})
	o.enter(ctx, r, domain.StateReceived)

	defer func() {
		if rec := recover(); rec != nil {
			o.counters.panics.Add(1)
			o.Logger.Error("request panicked", "request_id", requestID, "input", text, "panic", rec)
			tracer.RecordError(span, fmt.Errorf("panic: %v", rec))
			r.reply.Text = panicText
		}
		if errors.Is(context.Cause(ctx), domain.ErrRequestCancelled) {
			o.counters.cancelled.Add(1)
			r.reply.Text = cancelledText
			r.reply.Cancelled = true
			o.publish(ctx, domain.EventRequestCancelled, map[string]string{"request_id": requestID})
		} else if errors.Is(ctx.Err(), context.DeadlineExceeded) && r.reply.Text == "" {
			r.reply.Text = timedOutText
		}
		if r.reply.Text == "" {
			r.reply.Text = panicText
		}
		o.enter(ctx, r, domain.StateResponded)
		o.publish(ctx, domain.EventRequestResponded, map[string]any{
			"request_id": requestID,
			"path":       r.reply.Path,
		})
		o.Logger.Info("request responded", "request_id", requestID, "path", r.reply.Path)
		reply = r.reply
	}()

	if text == "" {
		r.reply.Text = greeting
		return
	}
	o.process(ctx, r, text)
	return
}

func (o *Orchestrator) process(ctx context.Context, r *run, text string) {
	o.enter(ctx, r, domain.StateAnalyzing)
	analysis := o.Analyzer.Analyze(ctx, text)
	r.reply.Analysis = &analysis
	o.Logger.Info("request analyzed",
		"request_id", r.id,
		"request_type", analysis.RequestType,
		"domains", analysis.Domains,
		"skills", analysis.SkillsNeeded,
	)

	dispatchable := o.dispatchable(analysis.SkillsNeeded)
	switch {
	case analysis.RequiresMultipleAgents && len(dispatchable) > 0:
		o.dispatchMany(ctx, r, text, analysis, dispatchable)
	case !analysis.RequiresMultipleAgents && len(dispatchable) > 0:
		o.dispatchOne(ctx, r, text, dispatchable[0])
	default:
		o.enter(ctx, r, domain.StateDirectHandle)
		o.counters.direct.Add(1)
		r.reply.Text = o.Responder.HandleDirect(ctx, text, analysis)
	}
}

// dispatchable drops the skills the router serves itself.
func (o *Orchestrator) dispatchable(skills []string) []string {
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		if !o.selfSkills[s] && !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func (o *Orchestrator) dispatchOne(ctx context.Context, r *run, text, skill string) {
	o.enter(ctx, r, domain.StateSingleDispatch)
	agents := o.Directory.Discover(skill)
	if len(agents) == 0 {
		o.Logger.Warn("no agent for skill", "request_id", r.id, "skill", skill)
		r.reply.Text = fmt.Sprintf("I couldn't find an agent with the '%s' skill.", skill)
		return
	}
	o.counters.dispatches.Add(1)
	resp := o.Dispatcher.CallAgent(ctx, agents[0], text, skill, "")
	if resp.Failed {
		o.counters.failures.Add(1)
	}
	r.reply.Responses = []domain.SkillResponse{resp}
	r.reply.Text = resp.Text
}

func (o *Orchestrator) dispatchMany(ctx context.Context, r *run, text string, analysis domain.RequestAnalysis, skills []string) {
	o.enter(ctx, r, domain.StateDependencyCheck)
	plan := o.Planner.Plan(ctx, text, analysis, skills)
	r.reply.Plan = &plan

	sessionID := o.Sessions.CreateSession(text)
	defer o.Sessions.CleanupSession(sessionID)

	agents := o.Directory.DiscoverMany(plan.Order)
	var responses []domain.SkillResponse
	if plan.Sequential {
		o.enter(ctx, r, domain.StateSequentialDispatch)
		responses = o.Dispatcher.DispatchSequential(ctx, plan.Order, agents, text, sessionID)
	} else {
		o.enter(ctx, r, domain.StateParallelDispatch)
		responses = o.Dispatcher.DispatchParallel(ctx, plan.Order, agents, text, sessionID)
	}
	o.counters.dispatches.Add(uint64(len(responses)))
	for _, resp := range responses {
		if resp.Failed {
			o.counters.failures.Add(1)
		}
	}
	r.reply.Responses = responses

	if errors.Is(context.Cause(ctx), domain.ErrRequestCancelled) {
		return
	}
	if ctx.Err() != nil {
		// Deadline: keep whatever the agents finished without another model call.
		if answered(responses) {
			o.enter(ctx, r, domain.StateAggregating)
			r.reply.Text = o.Responder.Fallback(responses)
		}
		return
	}
	o.enter(ctx, r, domain.StateAggregating)
	r.reply.Text = o.Responder.Aggregate(ctx, text, analysis, responses)
}

// answered reports whether any agent produced a usable answer.
func answered(responses []domain.SkillResponse) bool {
	for _, r := range responses {
		if !r.Failed {
			return true
		}
	}
	return false
}

func (o *Orchestrator) track(id string, cancel context.CancelFunc) *flight {
	f := &flight{cancel: cancel}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.inflight[id] = append(o.inflight[id], f)
	return f
}

func (o *Orchestrator) untrack(id string, f *flight) {
	o.mu.Lock()
	defer o.mu.Unlock()
	rest := slices.DeleteFunc(o.inflight[id], func(g *flight) bool { return g == f })
	if len(rest) == 0 {
		delete(o.inflight, id)
		return
	}
	o.inflight[id] = rest
}

// Cancel interrupts every in-flight request with this id. It reports whether
// any was found.
func (o *Orchestrator) Cancel(requestID string) bool {
	o.mu.Lock()
	flights := slices.Clone(o.inflight[requestID])
	o.mu.Unlock()
	if len(flights) == 0 {
		return false
	}
	o.Logger.Info("request cancel requested", "request_id", requestID, "calls", len(flights))
	for _, f := range flights {
		f.cancel()
	}
	return true
}

// InFlight returns the number of requests being handled.
func (o *Orchestrator) InFlight() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	n := 0
	for _, fs := range o.inflight {
		n += len(fs)
	}
	return n
}
