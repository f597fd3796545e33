// Package invariant implements the Invariant Checker of spec.md §4.8: per-
// response JSON-RPC 2.0 structural checks plus per-tool JSON-Schema
// conformance. Failing assertions become non-fatal Findings.
package invariant

import (
	"fmt"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
)

// reservedErrorCodes are the JSON-RPC 2.0 reserved error codes (spec.md
// §3); anything else is assumed server-defined and checked against the
// Checker's [ServerCodeMin, ServerCodeMax] range instead.
var reservedErrorCodes = map[int]bool{
	-32700: true,
	-32600: true,
	-32601: true,
	-32602: true,
	-32603: true,
}

// Checker validates one Response at a time and accumulates non-fatal
// Findings, mirroring the teacher's pattern of returning a value rather
// than panicking on a malformed peer message.
type Checker struct {
	// ServerCodeMin and ServerCodeMax bound server-defined error codes outside the
	// JSON-RPC reserved set, e.g. [-32099, -32000] for MCP's own codes.
	ServerCodeMin, ServerCodeMax int
}

func NewChecker() *Checker {
	return &Checker{ServerCodeMin: -32099, ServerCodeMax: -32000}
}

// Check runs the structural assertions of spec.md §4.8 against one
// Response, given the outstanding id it was issued under and the
// (optional) compiled schema the result should validate against.
func (c *Checker) Check(resp model.Response, outstandingID model.RequestID, resultSchema *schema.Compiled) []model.Finding {
	var findings []model.Finding

	hasResult := len(resp.Result) > 0 && string(resp.Result) != "null"
	hasError := resp.Error != nil

	if hasResult && hasError {
		findings = append(findings, model.Finding{
			Kind:     model.FindingBothResultAndError,
			Location: "response",
			Expected: "exactly one of result/error",
			Actual:   "both present",
		})
	}
	if !hasResult && !hasError {
		findings = append(findings, model.Finding{
			Kind:     model.FindingNeitherResultNorErr,
			Location: "response",
			Expected: "exactly one of result/error",
			Actual:   "neither present",
		})
	}

	if hasError {
		findings = append(findings, c.checkError(resp.Error)...)
	}

	if resp.ID.Key() != outstandingID.Key() {
		findings = append(findings, model.Finding{
			Kind:     model.FindingIDMismatch,
			Location: "response.id",
			Expected: outstandingID.String(),
			Actual:   resp.ID.String(),
		})
	}

	if hasResult && resultSchema != nil {
		if err := resultSchema.ValidateRaw(resp.Result); err != nil {
			findings = append(findings, model.Finding{
				Kind:     model.FindingSchemaViolation,
				Location: "response.result",
				Expected: "conforms to declared result schema",
				Actual:   err.Error(),
			})
		}
	}

	return findings
}

func (c *Checker) checkError(e *model.RPCError) []model.Finding {
	var findings []model.Finding
	if e.Message == "" {
		findings = append(findings, model.Finding{
			Kind:     model.FindingBadErrorShape,
			Location: "response.error.message",
			Expected: "non-empty string",
			Actual:   "empty",
		})
	}
	if !reservedErrorCodes[e.Code] && (e.Code < c.ServerCodeMin || e.Code > c.ServerCodeMax) {
		findings = append(findings, model.Finding{
			Kind:     model.FindingBadErrorCode,
			Location: "response.error.code",
			Expected: fmt.Sprintf("reserved or in [%d, %d]", c.ServerCodeMin, c.ServerCodeMax),
			Actual:   fmt.Sprintf("%d", e.Code),
		})
	}
	return findings
}

// CheckBatch runs Check over each response plus the batch multi-set
// equality invariant (spec.md §4.8 "Batch variant").
func (c *Checker) CheckBatch(resps model.BatchResponse, outstanding []model.RequestID, schemas map[string]*schema.Compiled, methodFor func(model.RequestID) string) []model.Finding {
	var findings []model.Finding

	want := map[string]int{}
	for _, id := range outstanding {
		want[fmt.Sprintf("%v", id.Key())]++
	}
	got := map[string]int{}
	for _, r := range resps {
		got[fmt.Sprintf("%v", r.ID.Key())]++
	}
	if !multisetEqual(want, got) {
		findings = append(findings, model.Finding{
			Kind:     model.FindingBatchSetMismatch,
			Location: "batch",
			Expected: fmt.Sprintf("%d ids", len(outstanding)),
			Actual:   fmt.Sprintf("%d ids", len(resps)),
		})
	}

	for _, r := range resps {
		var s *schema.Compiled
		if methodFor != nil && schemas != nil {
			s = schemas[methodFor(r.ID)]
		}
		findings = append(findings, c.Check(r, r.ID, s)...)
	}
	return findings
}

func multisetEqual(a, b map[string]int) bool {
	if len(a) != len(b) {
		return false
	}
	for k, n := range a {
		if b[k] != n {
			return false
		}
	}
	return true
}
