package domain

import (
	"errors"
	"fmt"
)

// Category sentinels. Pair them with NewSubSystemError for subsystem-specific codes.
var (
	ErrNotFound         = fmt.Errorf("not found")
	ErrDuplicate        = fmt.Errorf("duplicate")
	ErrTimeout          = fmt.Errorf("operation timed out")
	ErrLimitReached     = fmt.Errorf("limit reached")
	ErrPermissionDenied = fmt.Errorf("permission denied")
	ErrDisabled         = fmt.Errorf("disabled")
	ErrInvalidInput     = fmt.Errorf("invalid input")
	ErrProviderError    = fmt.Errorf("provider error")
)

// Sentinel errors for the domain layer.
var (
	ErrProviderNotFound  = fmt.Errorf("llm provider not found")
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrConfigLoad        = fmt.Errorf("failed to load configuration")
	ErrDecryption        = fmt.Errorf("decryption failed")
	ErrEncryption        = fmt.Errorf("encryption operation failed")
	ErrInvalidDescriptor = fmt.Errorf("invalid agent descriptor")
	ErrAgentUnreachable  = fmt.Errorf("agent unreachable")
	ErrAgentStatus       = fmt.Errorf("agent returned non-success status")
	ErrMalformedOutput   = fmt.Errorf("malformed understanding output")
	ErrRequestCancelled  = fmt.Errorf("request cancelled")
	ErrJournalWrite      = fmt.Errorf("journal write failed")

	// Gateway / RPC errors.
	ErrRPCMethodNotFound = fmt.Errorf("rpc method not found")
	ErrRPCInvalidPayload = fmt.Errorf("rpc payload invalid")

	// Resilience errors.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")
	ErrUpstreamFailure = fmt.Errorf("upstream call failed")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op        string // operation name (e.g., "Registry.Register")
	Err       error  // underlying sentinel or wrapped error
	Detail    string // human-readable detail
	SubSystem string // subsystem identifier (e.g., "registry", "session"); used for ErrorCode dispatch
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// NewSubSystemError creates a DomainError tagged with a subsystem for ErrorCode dispatch.
func NewSubSystemError(subsystem, op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail, SubSystem: subsystem}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed on retry.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrAgentUnreachable)
}

// ErrorCode is a machine-parseable error category for monitoring and JSON-RPC replies.
type ErrorCode string

const (
	CodeUnknown           ErrorCode = "UNKNOWN"
	CodeProviderNotFound  ErrorCode = "PROVIDER_NOT_FOUND"
	CodeSessionNotFound   ErrorCode = "SESSION_NOT_FOUND"
	CodeConfigLoad        ErrorCode = "CONFIG_LOAD"
	CodeEncryption        ErrorCode = "ENCRYPTION"
	CodeDecryption        ErrorCode = "DECRYPTION"
	CodeInvalidDescriptor ErrorCode = "INVALID_DESCRIPTOR"
	CodeAgentUnreachable  ErrorCode = "AGENT_UNREACHABLE"
	CodeAgentStatus       ErrorCode = "AGENT_STATUS"
	CodeMalformedOutput   ErrorCode = "MALFORMED_OUTPUT"
	CodeRequestCancelled  ErrorCode = "REQUEST_CANCELLED"
	CodeJournalWrite      ErrorCode = "JOURNAL_WRITE"
	CodeRPCMethodNotFound ErrorCode = "RPC_METHOD_NOT_FOUND"
	CodeRPCInvalidPayload ErrorCode = "RPC_INVALID_PAYLOAD"
	CodeContextOverflow   ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit         ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid       ErrorCode = "AUTH_INVALID"
	CodeUpstreamFailure   ErrorCode = "UPSTREAM_FAILURE"

	// Subsystem-specific codes resolved through subSystemCodeMap.
	CodeAgentNotFound   ErrorCode = "AGENT_NOT_FOUND"
	CodeSkillNotFound   ErrorCode = "SKILL_NOT_FOUND"
	CodeRequestNotFound ErrorCode = "REQUEST_NOT_FOUND"
	CodeAgentTimeout    ErrorCode = "AGENT_TIMEOUT"
	CodeLLMTimeout      ErrorCode = "LLM_TIMEOUT"

	// Category codes, used when no subsystem-specific code matches.
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeDuplicate        ErrorCode = "DUPLICATE"
	CodeTimeout          ErrorCode = "TIMEOUT"
	CodeLimitReached     ErrorCode = "LIMIT_REACHED"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeDisabled         ErrorCode = "DISABLED"
	CodeInvalidInput     ErrorCode = "INVALID_INPUT"
	CodeProviderError    ErrorCode = "PROVIDER_ERROR"
)

var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:         CodeNotFound,
	ErrDuplicate:        CodeDuplicate,
	ErrTimeout:          CodeTimeout,
	ErrLimitReached:     CodeLimitReached,
	ErrPermissionDenied: CodePermissionDenied,
	ErrDisabled:         CodeDisabled,
	ErrInvalidInput:     CodeInvalidInput,
	ErrProviderError:    CodeProviderError,

	ErrProviderNotFound:  CodeProviderNotFound,
	ErrSessionNotFound:   CodeSessionNotFound,
	ErrConfigLoad:        CodeConfigLoad,
	ErrDecryption:        CodeDecryption,
	ErrEncryption:        CodeEncryption,
	ErrInvalidDescriptor: CodeInvalidDescriptor,
	ErrAgentUnreachable:  CodeAgentUnreachable,
	ErrAgentStatus:       CodeAgentStatus,
	ErrMalformedOutput:   CodeMalformedOutput,
	ErrRequestCancelled:  CodeRequestCancelled,
	ErrJournalWrite:      CodeJournalWrite,
	ErrRPCMethodNotFound: CodeRPCMethodNotFound,
	ErrRPCInvalidPayload: CodeRPCInvalidPayload,
	ErrContextOverflow:   CodeContextOverflow,
	ErrRateLimit:         CodeRateLimit,
	ErrAuthInvalid:       CodeAuthInvalid,
	ErrUpstreamFailure:   CodeUpstreamFailure,
}

var subSystemCodeMap = map[error]map[string]ErrorCode{
	ErrNotFound: {
		"registry":     CodeAgentNotFound,
		"skill":        CodeSkillNotFound,
		"session":      CodeSessionNotFound,
		"orchestrator": CodeRequestNotFound,
	},
	ErrTimeout: {
		"agentrpc": CodeAgentTimeout,
		"llm":      CodeLLMTimeout,
	},
	ErrInvalidInput: {
		"registry": CodeInvalidDescriptor,
	},
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// DomainErrors with a SubSystem are resolved through subSystemCodeMap first.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code := de.Code(); code != CodeUnknown {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}

// Code returns the ErrorCode for this DomainError's underlying sentinel.
func (e *DomainError) Code() ErrorCode {
	if e.SubSystem != "" {
		if subsysMap, ok := subSystemCodeMap[e.Err]; ok {
			if code, ok := subsysMap[e.SubSystem]; ok {
				return code
			}
		}
	}
	if code, ok := errorCodeMap[e.Err]; ok {
		return code
	}
	return CodeUnknown
}
