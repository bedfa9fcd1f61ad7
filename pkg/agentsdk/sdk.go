// Package agentsdk builds downstream agents the router can dispatch to.
//
// An agent serves its card at /.well-known/agent.json and JSON-RPC
// message/send at its root, registers itself with the router and may
// advertise itself over mDNS.
//
// Example:
//
//	card := a2a.NewCard("Weather Agent", "weather by city", "1.0.0", "http://localhost:18001", skills...)
//	agent := agentsdk.New(card, func(ctx context.Context, req agentsdk.Request) (string, error) {
//	    return "Sunny in " + req.Text, nil
//	}, agentsdk.WithAddr(":18001"), agentsdk.WithRouter("http://localhost:18000"))
//	err := agent.Run(ctx)
package agentsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"a2a-router/pkg/a2a"
)

// Request is one message/send call as seen by a handler.
type Request struct {
	Text         string
	MessageID    string
	Skill        string
	SessionID    string
	Orchestrator string
}

// HandlerFunc answers one request with reply text.
type HandlerFunc func(ctx context.Context, req Request) (string, error)

// Advertiser announces a listening agent. Advertise blocks until ctx ends.
type Advertiser interface {
	Advertise(ctx context.Context, instance string, port int, cardPath string) error
}

// ErrRegistrationRejected means the router refused the card; retrying the
// same card cannot succeed.
var ErrRegistrationRejected = errors.New("registration rejected")

const (
	defaultAttempts = 5
	defaultBackoff  = 2 * time.Second
	maxReplyBody    = 1 << 20
)

// Agent is a downstream agent process.
type Agent struct {
	card    a2a.AgentCard
	handler HandlerFunc

	addr       string
	routerURL  string
	attempts   int
	backoff    time.Duration
	http       *http.Client
	advertiser Advertiser
	instance   string
	mws        []func(http.Handler) http.Handler
	logger     *slog.Logger

	rpc *a2a.Server

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	bound    string
}

// New creates an agent serving card and answering with handler.
func New(card a2a.AgentCard, handler HandlerFunc, opts ...Option) *Agent {
	a := &Agent{
		card:     card,
		handler:  handler,
		addr:     ":0",
		attempts: defaultAttempts,
		backoff:  defaultBackoff,
		http:     &http.Client{Timeout: 10 * time.Second},
		logger:   slog.Default(),
		inflight: make(map[string]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.rpc = a2a.NewServer(a.logger)
	a.rpc.Handle(a2a.MethodMessageSend, a.messageSend)
	a.rpc.Handle(a2a.MethodTasksCancel, a.tasksCancel)
	return a
}

// Card returns the card the agent serves and registers.
func (a *Agent) Card() a2a.AgentCard { return a.card }

// BoundAddr returns the listen address once Run has bound it.
func (a *Agent) BoundAddr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.bound
}

// Handler returns the agent's HTTP routes.
func (a *Agent) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET "+a2a.WellKnownCardPath, a2a.CardHandler(a.card))
	mux.Handle("POST /{$}", a.rpc)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	var h http.Handler = mux
	for i := len(a.mws) - 1; i >= 0; i-- {
		h = a.mws[i](h)
	}
	return h
}

func (a *Agent) messageSend(ctx context.Context, params json.RawMessage) (any, error) {
	var p a2a.MessageSendParams
	if err := a2a.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	req := Request{Text: p.Message.Text(), MessageID: p.Message.MessageID}
	if p.Metadata != nil {
		req.Skill = p.Metadata.SkillContext
		req.SessionID = p.Metadata.SessionID
		req.Orchestrator = p.Metadata.Orchestrator
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if req.MessageID != "" {
		a.mu.Lock()
		a.inflight[req.MessageID] = cancel
		a.mu.Unlock()
		defer func() {
			a.mu.Lock()
			delete(a.inflight, req.MessageID)
			a.mu.Unlock()
		}()
	}

	reply, err := a.handler(ctx, req)
	if err != nil {
		a.logger.Warn("agent handler failed", "skill", req.Skill, "session_id", req.SessionID, "error", err)
		return nil, err
	}
	out := a2a.NewTextMessage(a2a.RoleAgent, reply)
	out.ContextID = p.Message.ContextID
	return out, nil
}

func (a *Agent) tasksCancel(_ context.Context, params json.RawMessage) (any, error) {
	var p a2a.TaskIDParams
	if err := a2a.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	a.mu.Lock()
	cancel, ok := a.inflight[p.ID]
	a.mu.Unlock()
	if !ok {
		return nil, a2a.NewError(a2a.CodeTaskNotFound, "task not found")
	}
	cancel()
	return a2a.Task{Kind: "task", ID: p.ID, Status: a2a.TaskStatus{State: a2a.TaskCanceled}}, nil
}

// Register posts the card to the router, retrying with exponential backoff.
// A rejected card is not retried.
func (a *Agent) Register(ctx context.Context) (a2a.RegisterResponse, error) {
	attempts := max(a.attempts, 1)
	delay := a.backoff

	var lastErr error
	for i := range attempts {
		resp, err := a.registerOnce(ctx)
		if err == nil {
			a.logger.Info("registered with router", "router", a.routerURL, "agent_id", resp.AgentID)
			return resp, nil
		}
		lastErr = err
		if errors.Is(err, ErrRegistrationRejected) || i == attempts-1 {
			break
		}
		a.logger.Warn("registration failed, retrying",
			"router", a.routerURL, "attempt", i+1, "of", attempts, "delay", delay, "error", err)
		select {
		case <-ctx.Done():
			return a2a.RegisterResponse{}, ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return a2a.RegisterResponse{}, fmt.Errorf("register with %s: %w", a.routerURL, lastErr)
}

func (a *Agent) registerOnce(ctx context.Context) (a2a.RegisterResponse, error) {
	body, err := json.Marshal(a.card)
	if err != nil {
		return a2a.RegisterResponse{}, err
	}
	url := strings.TrimRight(a.routerURL, "/") + "/api/registry/register"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return a2a.RegisterResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.http.Do(req)
	if err != nil {
		return a2a.RegisterResponse{}, err
	}
	defer resp.Body.Close()

	var out a2a.RegisterResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBody)).Decode(&out); err != nil {
		return out, fmt.Errorf("decode registration reply (status %d): %w", resp.StatusCode, err)
	}
	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return out, fmt.Errorf("%w: %s", ErrRegistrationRejected, out.Message)
	case resp.StatusCode != http.StatusOK || !out.Success:
		return out, fmt.Errorf("router answered %d: %s", resp.StatusCode, out.Message)
	}
	return out, nil
}

// Run serves until ctx is cancelled. Registration and advertisement run in
// the background once the listener is bound; a failed registration is
// logged and the agent keeps serving.
func (a *Agent) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.addr)
	if err != nil {
		return fmt.Errorf("agent listen: %w", err)
	}
	a.mu.Lock()
	a.bound = ln.Addr().String()
	a.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srv := &http.Server{Handler: a.Handler(), ReadHeaderTimeout: 10 * time.Second}
	a.logger.Info("agent listening", "name", a.card.Name, "addr", a.BoundAddr(), "url", a.card.URL)

	var wg sync.WaitGroup
	if a.routerURL != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := a.Register(ctx); err != nil && ctx.Err() == nil {
				a.logger.Error("registration gave up", "error", err)
			}
		}()
	}
	if a.advertiser != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.advertiser.Advertise(ctx, a.instance, portOf(ln.Addr()), a2a.WellKnownCardPath); err != nil {
				a.logger.Warn("mdns advertisement failed", "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	err = srv.Serve(ln)
	cancel()
	wg.Wait()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	_, p, _ := net.SplitHostPort(addr.String())
	port, _ := strconv.Atoi(p)
	return port
}
