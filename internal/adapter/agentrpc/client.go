// Package agentrpc calls downstream agents with JSON-RPC message/send over HTTP.
package agentrpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"a2a-router/internal/domain"
	"a2a-router/internal/infra/config"
	"a2a-router/internal/infra/httpclient"
	"a2a-router/internal/infra/tracer"
	"a2a-router/pkg/a2a"
)

const (
	// DefaultTimeout bounds one agent call when none is configured.
	DefaultTimeout = 10 * time.Second

	maxResponseBody = 4 << 20
	connectTimeout  = 5 * time.Second
)

// Client implements domain.AgentCaller.
type Client struct {
	http     *http.Client
	timeout  time.Duration
	breakers *breakers
	logger   *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a client from the agent_rpc config section.
func New(cfg config.AgentRPCConfig, logger *slog.Logger, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		http:    httpclient.New(connectTimeout, timeout, timeout, cfg.Pool),
		timeout: timeout,
		logger:  logger,
	}
	if cfg.CircuitBreaker.Enabled {
		c.breakers = newBreakers(cfg.CircuitBreaker, logger)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Send posts text as a message/send request to the agent at address and
// returns the first text part of the result. An empty string with a nil error
// means the agent answered without any text.
func (c *Client) Send(ctx context.Context, address, text string, meta domain.CallMetadata) (string, error) {
	ctx, span := tracer.StartSpan(ctx, "agentrpc.send")
	defer span.End()
	span.SetAttributes(
		tracer.StringAttr("agent.address", address),
		tracer.StringAttr("skill", meta.SkillContext),
	)

	call := func() (string, error) { return c.send(ctx, address, text, meta) }
	var (
		reply string
		err   error
	)
	if c.breakers != nil {
		reply, err = c.breakers.get(address).Execute(call)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = domain.NewSubSystemError("agentrpc", "Client.Send", domain.ErrAgentUnreachable, "circuit open for "+address)
		}
	} else {
		reply, err = call()
	}
	if err != nil {
		tracer.RecordError(span, err)
		return "", err
	}
	tracer.SetOK(span)
	return reply, nil
}

func (c *Client) send(ctx context.Context, address, text string, meta domain.CallMetadata) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := a2a.NewRequest(uuid.NewString(), a2a.MethodMessageSend, a2a.MessageSendParams{
		Message: a2a.NewTextMessage(a2a.RoleUser, text),
		Metadata: &a2a.SendMetadata{
			SkillContext: meta.SkillContext,
			Orchestrator: meta.Orchestrator,
			SessionID:    meta.SessionID,
		},
	})
	if err != nil {
		return "", fmt.Errorf("agentrpc: build request: %w", err)
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("agentrpc: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint(address), bytes.NewReader(body))
	if err != nil {
		return "", domain.NewSubSystemError("agentrpc", "Client.Send", domain.ErrAgentUnreachable, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return "", domain.NewSubSystemError("agentrpc", "Client.Send", domain.ErrTimeout, address)
		}
		if errors.Is(err, context.Canceled) {
			return "", err
		}
		return "", domain.NewSubSystemError("agentrpc", "Client.Send", domain.ErrAgentUnreachable, err.Error())
	}
	defer resp.Body.Close()

	c.logger.Debug("agent call completed",
		"address", address,
		"skill", meta.SkillContext,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))
		return "", &domain.AgentStatusError{StatusCode: resp.StatusCode}
	}

	var rpcResp a2a.Response
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBody)).Decode(&rpcResp); err != nil {
		return "", domain.NewSubSystemError("agentrpc", "Client.Send", domain.ErrMalformedOutput, err.Error())
	}
	if rpcResp.Error != nil {
		return "", domain.NewSubSystemError("agentrpc", "Client.Send", domain.ErrProviderError, rpcResp.Error.Error())
	}

	reply, _ := a2a.ExtractText(rpcResp.Result)
	return reply, nil
}

// BreakerStates reports per-agent breaker states for status pages.
func (c *Client) BreakerStates() map[string]string {
	if c.breakers == nil {
		return nil
	}
	return c.breakers.states()
}

// endpoint is the JSON-RPC root of an agent; card URLs may omit the slash.
func endpoint(address string) string {
	return strings.TrimRight(address, "/") + "/"
}

var _ domain.AgentCaller = (*Client)(nil)
