package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainErrorFormat(t *testing.T) {
	err := NewDomainError("Registry.Register", ErrInvalidDescriptor, "missing url")
	want := "Registry.Register: missing url: invalid agent descriptor"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorFormatNoDetail(t *testing.T) {
	err := NewDomainError("Propagator.Store", ErrSessionNotFound, "")
	want := "Propagator.Store: session not found"
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

func TestDomainErrorUnwrap(t *testing.T) {
	err := NewDomainError("AgentRPC.Send", ErrAgentUnreachable, "http://localhost:18001")
	if !errors.Is(err, ErrAgentUnreachable) {
		t.Error("errors.Is should match ErrAgentUnreachable")
	}
}

func TestWrapOpNil(t *testing.T) {
	assert.NoError(t, WrapOp("op", nil))
	assert.ErrorIs(t, WrapOp("op", ErrTimeout), ErrTimeout)
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(fmt.Errorf("call: %w", ErrRateLimit)))
	assert.True(t, IsRetryableError(ErrAgentUnreachable))
	assert.False(t, IsRetryableError(ErrInvalidDescriptor))
}

func TestErrorCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, CodeUnknown},
		{"direct sentinel", ErrSessionNotFound, CodeSessionNotFound},
		{"wrapped sentinel", fmt.Errorf("ctx: %w", ErrAgentUnreachable), CodeAgentUnreachable},
		{"domain error", NewDomainError("op", ErrMalformedOutput, "x"), CodeMalformedOutput},
		{"subsystem not found", NewSubSystemError("registry", "Registry.Get", ErrNotFound, "a"), CodeAgentNotFound},
		{"subsystem timeout", NewSubSystemError("agentrpc", "Send", ErrTimeout, ""), CodeAgentTimeout},
		{"subsystem fallback", NewSubSystemError("other", "op", ErrTimeout, ""), CodeTimeout},
		{"unknown", fmt.Errorf("random"), CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCodeOf(tt.err))
		})
	}
}

func TestDomainError_CodeUnknownSentinel(t *testing.T) {
	err := NewDomainError("Op", fmt.Errorf("custom"), "detail")
	assert.Equal(t, CodeUnknown, err.Code())
}
