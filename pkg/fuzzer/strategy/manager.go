package strategy

import (
	"github.com/mcpconform/fuzzer/pkg/fuzzer/generator"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
)

// PhaseMode selects which phase(s) the manager emits per tool/method
// (spec.md §4.2: "runs realistic cases, then runs aggressive cases, or a
// single phase if configured").
type PhaseMode int

const (
	PhaseModeRealistic PhaseMode = iota
	PhaseModeAggressive
	PhaseModeBoth
)

// Mode selects whether the manager fuzzes tools, protocol methods, or both
// (spec.md §6: mode: tools|protocol|both).
type Mode int

const (
	ModeTools Mode = iota
	ModeProtocol
	ModeBoth
)

// Manager owns the two-phase orchestration contract of spec.md §4.2:
// next_case() -> Option<TestCase>, record(RunRecord).
type Manager struct {
	sequences []*generator.Sequence
	cursor    int
	records   []model.RunRecord
}

// NewManager builds a Manager over the discovered tool catalog and/or the
// fixed MCP method catalog, per mode and phaseMode. runsPerTool applies to
// both tools and protocol methods; seed is the session's base seed, offset
// per tool/method/phase so every sequence is independently reproducible.
func NewManager(tools []model.ToolDescriptor, mode Mode, phaseMode PhaseMode, runsPerTool int, seed uint64) *Manager {
	m := &Manager{}

	if mode == ModeTools || mode == ModeBoth {
		for i, tool := range tools {
			toolSeed := seed + uint64(i)*1_000_003
			m.appendPhases(func(phase model.Phase, phaseSeed uint64) *generator.Sequence {
				return generator.NewToolSequence(tool.Name, tool.InputSchema, phase, phaseSeed, runsPerTool)
			}, toolSeed, phaseMode)
		}
	}

	if mode == ModeProtocol || mode == ModeBoth {
		for i, spec := range MethodCatalog {
			methodSeed := seed + uint64(i)*2_000_003 + 7_000_000
			s, err := schema.Parse(spec.ParamsSchema)
			if err != nil {
				s = &schema.JsonSchema{}
			}
			method := spec.Method
			m.appendPhases(func(phase model.Phase, phaseSeed uint64) *generator.Sequence {
				return generator.NewProtocolSequence(method, s, phase, phaseSeed, runsPerTool)
			}, methodSeed, phaseMode)
		}
	}

	return m
}

func (m *Manager) appendPhases(build func(phase model.Phase, seed uint64) *generator.Sequence, baseSeed uint64, phaseMode PhaseMode) {
	switch phaseMode {
	case PhaseModeRealistic:
		m.sequences = append(m.sequences, build(model.PhaseRealistic, baseSeed))
	case PhaseModeAggressive:
		m.sequences = append(m.sequences, build(model.PhaseAggressive, baseSeed))
	default:
		m.sequences = append(m.sequences, build(model.PhaseRealistic, baseSeed))
		m.sequences = append(m.sequences, build(model.PhaseAggressive, baseSeed+500_009))
	}
}

// NextCase returns the next TestCase, or ok=false once every sequence is
// exhausted (spec.md §4.2: "None when the session is exhausted").
func (m *Manager) NextCase() (model.TestCase, bool) {
	for m.cursor < len(m.sequences) {
		tc, ok := m.sequences[m.cursor].Next()
		if ok {
			return tc, true
		}
		m.cursor++
	}
	return model.TestCase{}, false
}

// Record stores a RunRecord for later bookkeeping (spec.md §4.2: "for
// bookkeeping the caller may inspect").
func (m *Manager) Record(r model.RunRecord) {
	m.records = append(m.records, r)
}

// Records returns every RunRecord recorded so far.
func (m *Manager) Records() []model.RunRecord {
	return m.records
}

// Remaining reports the total number of unemitted cases across every
// sequence still pending.
func (m *Manager) Remaining() int {
	total := 0
	for i := m.cursor; i < len(m.sequences); i++ {
		total += m.sequences[i].Remaining()
	}
	return total
}
