// Package uxerror turns errors from the router connection into short,
// actionable messages for routerctl.
package uxerror

import (
	"errors"
	"fmt"
	"strings"

	"a2a-router/internal/adapter/routerclient"
	"a2a-router/internal/adapter/tui/theme"
	"a2a-router/internal/domain"
)

// FriendlyError is a user-facing error with recovery hints.
type FriendlyError struct {
	Title   string
	Message string
	Hints   []string
	// Raw is the original error text.
	Raw string
}

// Render formats the error for the transcript.
func (fe FriendlyError) Render() string {
	var sb strings.Builder
	sb.WriteString(fe.Title)
	if fe.Message != "" {
		sb.WriteString("\n  ")
		sb.WriteString(fe.Message)
	}
	if len(fe.Hints) > 0 {
		sb.WriteString("\n  Suggestions:")
		for _, h := range fe.Hints {
			sb.WriteString(fmt.Sprintf("\n    %s %s", theme.SymbolBullet, h))
		}
	}
	return sb.String()
}

type errorPattern struct {
	match   func(err error) bool
	produce func(err error) FriendlyError
}

// Sentinels first so errors.Is sees through wrapping; string matches cover
// transport errors that arrive as text.
var patterns = []errorPattern{
	{
		match: func(err error) bool { return errors.Is(err, routerclient.ErrSessionClosed) },
		produce: constantError("Disconnected", "The connection to the router was closed.",
			[]string{"Check that mainagent is still running", "Restart routerctl to reconnect"}),
	},
	{
		match: is(domain.ErrAgentUnreachable),
		produce: constantError("Router Unreachable", "Could not connect to the router.",
			[]string{"Is mainagent running?", "Check --router or A2AROUTER_ROUTER_URL", "Run 'mainagent doctor' on the router host"}),
	},
	{
		match: is(domain.ErrRPCMethodNotFound),
		produce: constantError("Unsupported Request", "The router does not know this method.",
			[]string{"routerctl and mainagent may be different versions"}),
	},
	{
		match: is(domain.ErrRPCInvalidPayload),
		produce: constantError("Rejected Request", "The router could not read the request.",
			[]string{"Check the message text and try again"}),
	},
	{
		match: func(err error) bool {
			var remote *routerclient.RemoteError
			return errors.As(err, &remote)
		},
		produce: func(err error) FriendlyError {
			return FriendlyError{
				Title:   "Router Error",
				Message: err.Error(),
				Hints:   []string{"Check the mainagent logs"},
				Raw:     err.Error(),
			}
		},
	},
	{
		match: is(domain.ErrRateLimit),
		produce: constantError("Rate Limited", "Too many requests were sent to the router.",
			[]string{"Wait a moment before retrying", "Raise gateway.rate_limit on the router"}),
	},
	{
		match: containsAny("connection refused", "dial tcp", "no such host", "failed to websocket dial"),
		produce: constantError("Router Unreachable", "Could not connect to the router.",
			[]string{"Is mainagent running?", "Check --router or A2AROUTER_ROUTER_URL"}),
	},
	{
		match: containsAny("deadline exceeded", "timeout", "timed out"),
		produce: constantError("Request Timed Out", "The router took too long to answer.",
			[]string{"A downstream agent may be slow or down", "Increase router.request_timeout in config"}),
	},
	{
		match: containsAny("429", "rate limit", "too many requests"),
		produce: constantError("Rate Limited", "Too many requests were sent to the router.",
			[]string{"Wait a moment before retrying"}),
	},
	{
		match: containsAny("413", "too large", "read limited"),
		produce: constantError("Message Too Large", "The request exceeded the router's size limit.",
			[]string{"Send a shorter message", "Raise gateway.max_body_bytes in config"}),
	},
}

// Humanize converts err into a FriendlyError.
func Humanize(err error) FriendlyError {
	if err == nil {
		return FriendlyError{Title: "Unknown Error", Raw: "nil"}
	}
	for _, p := range patterns {
		if p.match(err) {
			return p.produce(err)
		}
	}
	return FriendlyError{
		Title:   "Unexpected Error",
		Message: err.Error(),
		Hints:   []string{"Try again", "Check the mainagent logs"},
		Raw:     err.Error(),
	}
}

func is(target error) func(error) bool {
	return func(err error) bool { return errors.Is(err, target) }
}

// containsAny matches when the lowercased error text holds any substring.
func containsAny(substrs ...string) func(error) bool {
	return func(err error) bool {
		lower := strings.ToLower(err.Error())
		for _, s := range substrs {
			if strings.Contains(lower, s) {
				return true
			}
		}
		return false
	}
}

func constantError(title, message string, hints []string) func(error) FriendlyError {
	return func(err error) FriendlyError {
		return FriendlyError{Title: title, Message: message, Hints: hints, Raw: err.Error()}
	}
}
