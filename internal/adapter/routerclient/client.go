// Package routerclient talks to a running router over its HTTP API and its
// WebSocket gateway.
package routerclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"a2a-router/internal/adapter/gateway"
	"a2a-router/internal/domain"
	"a2a-router/pkg/a2a"
)

const maxResponseBytes = 4 << 20

// Client calls the router's HTTP endpoints.
type Client struct {
	base   string
	http   *http.Client
	caller domain.AgentCaller
}

// New creates a Client for the router at baseURL. caller sends JSON-RPC
// message/send requests; the router speaks the same protocol as any agent.
func New(baseURL string, hc *http.Client, caller domain.AgentCaller) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc, caller: caller}
}

// BaseURL returns the router address.
func (c *Client) BaseURL() string { return c.base }

// Send routes text through the router and returns the final reply text.
func (c *Client) Send(ctx context.Context, text string) (string, error) {
	return c.caller.Send(ctx, c.base, text, domain.CallMetadata{Orchestrator: "routerctl"})
}

// Agents lists the registered agents.
func (c *Client) Agents(ctx context.Context) (gateway.AgentsResponse, error) {
	var out gateway.AgentsResponse
	err := c.getJSON(ctx, "/api/registry/agents", &out)
	return out, err
}

// Status fetches the router status snapshot.
func (c *Client) Status(ctx context.Context) (gateway.StatusResponse, error) {
	var out gateway.StatusResponse
	err := c.getJSON(ctx, "/api/v1/status", &out)
	return out, err
}

// Card fetches the router's own agent card.
func (c *Client) Card(ctx context.Context) (a2a.AgentCard, error) {
	var out a2a.AgentCard
	err := c.getJSON(ctx, a2a.WellKnownCardPath, &out)
	return out, err
}

// Healthy reports whether /healthz answers 200.
func (c *Client) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAgentUnreachable, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: healthz returned %d", domain.ErrAgentStatus, resp.StatusCode)
	}
	return nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAgentUnreachable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: GET %s returned %d: %s", domain.ErrAgentStatus, path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
