package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseObjectSchema(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"required": ["name"],
		"properties": {
			"name": {"type": "string", "minLength": 1, "maxLength": 32},
			"count": {"type": "integer", "minimum": 0, "maximum": 10}
		},
		"additionalProperties": false
	}`)

	s, err := Parse(raw)
	require.NoError(t, err)

	assert.Equal(t, []string{"object"}, s.Types)
	assert.Equal(t, []string{"name"}, s.Required)
	require.Contains(t, s.Properties, "name")
	require.Contains(t, s.Properties, "count")

	name := s.Properties["name"]
	require.NotNil(t, name.MinLength)
	require.NotNil(t, name.MaxLength)
	assert.Equal(t, 1, *name.MinLength)
	assert.Equal(t, 32, *name.MaxLength)

	count := s.Properties["count"]
	require.NotNil(t, count.Minimum)
	require.NotNil(t, count.Maximum)
	assert.Equal(t, 0.0, *count.Minimum)
	assert.Equal(t, 10.0, *count.Maximum)

	require.NotNil(t, s.AdditionalProperties)
	assert.False(t, s.AdditionalProperties.Allowed)
}

func TestParseUnionType(t *testing.T) {
	raw := json.RawMessage(`{"type": ["string", "null"]}`)
	s, err := Parse(raw)
	require.NoError(t, err)
	assert.True(t, s.HasType("string"))
	assert.True(t, s.HasType("null"))
	assert.False(t, s.HasType("integer"))
	assert.Equal(t, "", s.SingleType())
}

func TestParseEnumAndConst(t *testing.T) {
	raw := json.RawMessage(`{"enum": ["a", "b", "c"], "const": "a"}`)
	s, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, s.Enum, 3)
	assert.Equal(t, "a", s.Enum[0].String())
	require.NotNil(t, s.Const)
	assert.Equal(t, "a", s.Const.String())
}

func TestParseCombinators(t *testing.T) {
	raw := json.RawMessage(`{
		"oneOf": [{"type": "string"}, {"type": "integer"}]
	}`)
	s, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, s.OneOf, 2)
	assert.Equal(t, "string", s.OneOf[0].SingleType())
	assert.Equal(t, "integer", s.OneOf[1].SingleType())
}

func TestParseEmptySchema(t *testing.T) {
	s, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, s.HasType("anything"))
}

func TestCompileAndValidate(t *testing.T) {
	raw := json.RawMessage(`{
		"type": "object",
		"required": ["name"],
		"properties": {"name": {"type": "string"}}
	}`)

	compiled, err := Compile("tool-args.json", raw)
	require.NoError(t, err)

	err = compiled.ValidateRaw(json.RawMessage(`{"name": "ok"}`))
	assert.NoError(t, err)

	err = compiled.ValidateRaw(json.RawMessage(`{}`))
	assert.Error(t, err)

	err = compiled.ValidateRaw(json.RawMessage(`{"name": 5}`))
	assert.Error(t, err)
}

func TestCompileEmptySchemaAlwaysValidates(t *testing.T) {
	compiled, err := Compile("empty.json", nil)
	require.NoError(t, err)
	assert.NoError(t, compiled.ValidateRaw(json.RawMessage(`{"anything": true}`)))
	assert.NoError(t, compiled.Validate(map[string]any{"anything": true}))
}
