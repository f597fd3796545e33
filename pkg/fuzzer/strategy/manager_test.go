package strategy

import (
	"testing"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echoTool() model.ToolDescriptor {
	one := 1
	s := &schema.JsonSchema{
		Types:    []string{"object"},
		Required: []string{"message"},
		Properties: map[string]*schema.JsonSchema{
			"message": {Types: []string{"string"}, MinLength: &one},
		},
	}
	return model.ToolDescriptor{Name: "echo", InputSchema: s}
}

func TestManagerEmitsBothPhasesPerTool(t *testing.T) {
	m := NewManager([]model.ToolDescriptor{echoTool()}, ModeTools, PhaseModeBoth, 3, 42)

	var realistic, aggressive int
	for {
		tc, ok := m.NextCase()
		if !ok {
			break
		}
		assert.Equal(t, "echo", tc.ToolName)
		if tc.Phase == model.PhaseRealistic {
			realistic++
		} else {
			aggressive++
		}
	}
	assert.Equal(t, 3, realistic)
	assert.Equal(t, 3, aggressive)
}

func TestManagerExhaustsToNone(t *testing.T) {
	m := NewManager([]model.ToolDescriptor{echoTool()}, ModeTools, PhaseModeRealistic, 2, 1)
	count := 0
	for {
		_, ok := m.NextCase()
		if !ok {
			break
		}
		count++
	}
	assert.Equal(t, 2, count)

	_, ok := m.NextCase()
	assert.False(t, ok)
}

func TestManagerProtocolModeCoversCatalog(t *testing.T) {
	m := NewManager(nil, ModeProtocol, PhaseModeRealistic, 1, 1)
	seen := map[string]bool{}
	for {
		tc, ok := m.NextCase()
		if !ok {
			break
		}
		require.NotEmpty(t, tc.Method)
		seen[tc.Method] = true
	}
	assert.Equal(t, len(MethodCatalog), len(seen))
}

func TestManagerRecordBookkeeping(t *testing.T) {
	m := NewManager([]model.ToolDescriptor{echoTool()}, ModeTools, PhaseModeRealistic, 1, 1)
	tc, ok := m.NextCase()
	require.True(t, ok)
	m.Record(model.RunRecord{Case: tc, Outcome: model.Outcome{Kind: model.OutcomeSuccess}})
	assert.Len(t, m.Records(), 1)
}
