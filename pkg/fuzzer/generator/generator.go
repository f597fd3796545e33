package generator

import (
	"encoding/json"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
)

// Sequence is the lazy, finite, restartable TestCase sequence spec.md §4.1
// describes: "restartable from a seed and terminates after the configured
// runs_per_tool." Each call to Next derives a fresh per-case seed from the
// sequence's base seed and the case index, so restarting a Sequence with
// the same (name, schema, phase, baseSeed, runs) reproduces every case.
type Sequence struct {
	name   string
	method string
	schema *schema.JsonSchema
	phase  model.Phase
	base   uint64
	runs   int
	next   int
}

// NewToolSequence builds a sequence of tool-call argument cases for one
// discovered tool.
func NewToolSequence(toolName string, s *schema.JsonSchema, phase model.Phase, baseSeed uint64, runs int) *Sequence {
	return &Sequence{name: toolName, schema: s, phase: phase, base: baseSeed, runs: runs}
}

// NewProtocolSequence builds a sequence of request envelopes for a
// protocol-level method drawn from the MCP method catalog (spec.md §4.2).
func NewProtocolSequence(method string, s *schema.JsonSchema, phase model.Phase, baseSeed uint64, runs int) *Sequence {
	return &Sequence{method: method, schema: s, phase: phase, base: baseSeed, runs: runs}
}

// Next produces the next TestCase, or ok=false once runs cases have been
// emitted.
func (seq *Sequence) Next() (model.TestCase, bool) {
	if seq.next >= seq.runs {
		return model.TestCase{}, false
	}
	idx := seq.next
	seq.next++

	caseSeed := seq.base + uint64(idx)*0x9e3779b97f4a7c15 + uint64(seq.phase)
	w := NewWalker(caseSeed)

	var v = w.Realistic(seq.schema)
	if seq.phase == model.PhaseAggressive {
		v = w.Aggressive(seq.schema)
	}

	args, err := v.MarshalJSON()
	if err != nil {
		args = json.RawMessage(`{}`)
	}

	return model.TestCase{
		ToolName: seq.name,
		Method:   seq.method,
		Phase:    seq.phase,
		Args:     args,
		Seed:     caseSeed,
	}, true
}

// Remaining reports how many cases are left to emit.
func (seq *Sequence) Remaining() int {
	if seq.next >= seq.runs {
		return 0
	}
	return seq.runs - seq.next
}

// Restart resets the sequence to its first case, reproducing the exact
// same TestCase stream on replay.
func (seq *Sequence) Restart() { seq.next = 0 }
