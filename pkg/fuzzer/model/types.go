// Package model holds the wire-level and session-level data types shared
// across the fuzzer core: requests/responses, tool descriptors, test cases,
// run records and outcomes (spec.md §3).
package model

import (
	"encoding/json"
	"time"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
)

// ToolDescriptor is immutable after discovery; its lifetime equals the
// session (spec.md §3).
type ToolDescriptor struct {
	Name        string
	InputSchema *schema.JsonSchema
	Description string
}

// RequestID is either a string or an integer per JSON-RPC 2.0.
type RequestID struct {
	str    string
	num    int64
	isStr  bool
	isNull bool
}

func StringID(s string) RequestID { return RequestID{str: s, isStr: true} }
func IntID(i int64) RequestID     { return RequestID{num: i} }
func NullID() RequestID           { return RequestID{isNull: true} }

func (id RequestID) IsNull() bool { return id.isNull }
func (id RequestID) IsString() bool { return id.isStr }

// Key returns a comparable representation suitable for map keys.
func (id RequestID) Key() any {
	if id.isNull {
		return nil
	}
	if id.isStr {
		return "s:" + id.str
	}
	return "n:" + intToString(id.num)
}

func intToString(i int64) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var buf [20]byte
	pos := len(buf)
	for i > 0 {
		pos--
		buf[pos] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		pos--
		buf[pos] = '-'
	}
	return string(buf[pos:])
}

func (id RequestID) MarshalJSON() ([]byte, error) {
	if id.isNull {
		return []byte("null"), nil
	}
	if id.isStr {
		return json.Marshal(id.str)
	}
	return json.Marshal(id.num)
}

func (id *RequestID) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*id = NullID()
	case string:
		*id = StringID(v)
	case float64:
		*id = IntID(int64(v))
	}
	return nil
}

func (id RequestID) String() string {
	if id.isNull {
		return "null"
	}
	if id.isStr {
		return id.str
	}
	return intToString(id.num)
}

// Request is a JSON-RPC 2.0 request. A Request with no ID is a notification.
type Request struct {
	ID     *RequestID
	Method string
	Params json.RawMessage
}

// RPCError is the standard JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Response is a JSON-RPC 2.0 response: exactly one of Result/Error is set.
type Response struct {
	ID     RequestID
	Result json.RawMessage
	Error  *RPCError
}

// IsError reports whether this response carries an error payload.
func (r *Response) IsError() bool { return r.Error != nil }

// BatchRequest/BatchResponse are ordered sequences correlated by ID
// (spec.md §3, §4.4).
type BatchRequest []Request
type BatchResponse []Response

// Phase is the two-phase protocol of spec.md §4.2.
type Phase int

const (
	PhaseRealistic Phase = iota
	PhaseAggressive
)

func (p Phase) String() string {
	if p == PhaseAggressive {
		return "aggressive"
	}
	return "realistic"
}

// TestCase is created by the generator, consumed by the executor, and
// discarded after recording (spec.md §3).
type TestCase struct {
	ToolName string
	Phase    Phase
	Args     json.RawMessage
	Seed     uint64
	// Method is set instead of ToolName for protocol-level fuzzing
	// (spec.md §4.2): the "tool" is a JSON-RPC method from the MCP catalog.
	Method string
}

// Fingerprint returns the (tool_name_or_method, seed, phase) triple used to
// reproduce this case (GLOSSARY: Fingerprint).
func (c TestCase) Fingerprint() string {
	name := c.ToolName
	if name == "" {
		name = c.Method
	}
	return name + "/" + c.Phase.String() + "/" + intToString(int64(c.Seed))
}

// OutcomeKind discriminates the Outcome sum type (spec.md §3).
type OutcomeKind int

const (
	OutcomeSuccess OutcomeKind = iota
	OutcomeProtocolError
	OutcomeTransportError
	OutcomeTimeout
	OutcomeBlocked
	OutcomeInvariantViolation
	OutcomeCancelled
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeProtocolError:
		return "protocol_error"
	case OutcomeTransportError:
		return "transport_error"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeBlocked:
		return "blocked"
	case OutcomeInvariantViolation:
		return "invariant_violation"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Outcome is the result of dispatching one TestCase.
type Outcome struct {
	Kind         OutcomeKind
	Response     *Response
	ProtoCode    int
	ProtoMessage string
	TransportKind TransportErrorKind
	BlockedReason string
	ViolationKind string
}

// FindingKind enumerates the invariant checks of spec.md §4.8.
type FindingKind string

const (
	FindingBothResultAndError  FindingKind = "both_result_and_error"
	FindingNeitherResultNorErr FindingKind = "neither_result_nor_error"
	FindingBadErrorShape       FindingKind = "bad_error_shape"
	FindingBadErrorCode        FindingKind = "bad_error_code"
	FindingIDMismatch          FindingKind = "id_mismatch"
	FindingSchemaViolation     FindingKind = "schema_violation"
	FindingBatchSetMismatch    FindingKind = "batch_set_mismatch"
)

// Finding is a failed invariant assertion attached to a RunRecord
// (spec.md §4.8). Non-fatal: the fuzzer continues.
type Finding struct {
	Kind     FindingKind
	Location string
	Expected string
	Actual   string
}

// RunRecord is the terminal record for one TestCase (spec.md §3).
type RunRecord struct {
	Case             TestCase
	Outcome          Outcome
	Duration         time.Duration
	InvariantFindings []Finding
}
