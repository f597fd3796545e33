package model

import "fmt"

// TransportErrorKind enumerates spec.md §4.4/§7 transport failure kinds.
type TransportErrorKind int

const (
	TransportConnect TransportErrorKind = iota
	TransportEncoding
	TransportDisconnected
	TransportTimeout
	TransportPolicyViolation
	TransportCancelled
	TransportRetryable
)

func (k TransportErrorKind) String() string {
	switch k {
	case TransportConnect:
		return "connect"
	case TransportEncoding:
		return "encoding"
	case TransportDisconnected:
		return "disconnected"
	case TransportTimeout:
		return "timeout"
	case TransportPolicyViolation:
		return "policy_violation"
	case TransportCancelled:
		return "cancelled"
	case TransportRetryable:
		return "retryable"
	default:
		return "unknown"
	}
}

// TransportError mirrors the teacher's pkg/mcp/errors.go TransportError:
// a message, an underlying cause, and (here) a classification used by the
// executor's retry policy.
type TransportError struct {
	Kind    TransportErrorKind
	Message string
	Cause   error
}

func (e *TransportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("transport error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("transport error (%s): %s", e.Kind, e.Message)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// Retryable reports whether the executor should resubmit on this error.
func (e *TransportError) Retryable() bool {
	return e.Kind == TransportRetryable || e.Kind == TransportTimeout
}

func NewTransportError(kind TransportErrorKind, message string, cause error) *TransportError {
	return &TransportError{Kind: kind, Message: message, Cause: cause}
}

// ProtocolError is a server-returned JSON-RPC error (spec.md §7); recorded,
// never retried.
type ProtocolError struct {
	Code    int
	Message string
	Data    any
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// ConfigError is fatal at startup (exit 2 for the CLI collaborator).
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error: %s: %s", e.Field, e.Message)
}

func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message}
}

// ProcessError covers spawn/wait failures (spec.md §7).
type ProcessError struct {
	Kind    string
	Message string
	Cause   error
}

func (e *ProcessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("process error (%s): %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("process error (%s): %s", e.Kind, e.Message)
}

func (e *ProcessError) Unwrap() error { return e.Cause }

// InternalError signals a violated invariant in the fuzzer's own code.
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("internal error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("internal error: %s", e.Message)
}

func (e *InternalError) Unwrap() error { return e.Cause }

func NewInternalError(message string, cause error) *InternalError {
	return &InternalError{Message: message, Cause: cause}
}
