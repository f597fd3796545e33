package generator

import (
	"testing"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/jsonvalue"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boundedStringSchema() *schema.JsonSchema {
	one, three := 1, 3
	return &schema.JsonSchema{Types: []string{"string"}, MinLength: &one, MaxLength: &three}
}

func boundedIntSchema() *schema.JsonSchema {
	zero, ten := 0.0, 10.0
	return &schema.JsonSchema{Types: []string{"integer"}, Minimum: &zero, Maximum: &ten}
}

// Invariant 1 (spec.md §8): realistic output always validates against the
// schema it was generated from.
func TestRealisticSatisfiesLengthBounds(t *testing.T) {
	s := boundedStringSchema()
	w := NewWalker(42)
	for i := 0; i < 200; i++ {
		v := w.Realistic(s)
		require.Equal(t, "string", v.Kind().String())
		assert.GreaterOrEqual(t, len(v.String()), 1)
		assert.LessOrEqual(t, len(v.String()), 3)
	}
}

func TestRealisticSatisfiesNumericBounds(t *testing.T) {
	s := boundedIntSchema()
	w := NewWalker(7)
	for i := 0; i < 1000; i++ {
		v := w.Realistic(s)
		assert.GreaterOrEqual(t, v.Int(), int64(0))
		assert.LessOrEqual(t, v.Int(), int64(10))
	}
}

// Invariant 2 (spec.md §8): identical (seed, schema) -> identical output.
func TestRealisticIsDeterministic(t *testing.T) {
	s := boundedStringSchema()
	a := NewWalker(99).Realistic(s)
	b := NewWalker(99).Realistic(s)
	assert.Equal(t, a.String(), b.String())
}

func TestEnumReturnsMember(t *testing.T) {
	s := &schema.JsonSchema{Enum: []jsonvalue.Value{
		jsonvalue.String("a"), jsonvalue.String("b"), jsonvalue.String("c"),
	}}
	w := NewWalker(1)
	v := w.Realistic(s)
	assert.Contains(t, []string{"a", "b", "c"}, v.String())
}

func TestMaxLengthZeroYieldsEmptyString(t *testing.T) {
	zero := 0
	s := &schema.JsonSchema{Types: []string{"string"}, MaxLength: &zero}
	w := NewWalker(3)
	v := w.Realistic(s)
	assert.Equal(t, "", v.String())
}

func TestAggressiveProducesInjectionOrOversize(t *testing.T) {
	one := 1
	s := &schema.JsonSchema{Types: []string{"string"}, Pattern: strPtr(`[A-Za-z0-9_]+`), MinLength: &one}
	foundInjection, foundOversize := false, false
	w := NewWalker(5)
	for i := 0; i < 200; i++ {
		v := w.Aggressive(s)
		str := v.String()
		if len(str) > 1000 {
			foundOversize = true
		}
		for _, frag := range injectionFragments {
			if str == frag {
				foundInjection = true
			}
		}
	}
	assert.True(t, foundOversize || foundInjection)
}

func TestSequenceRestartReproduces(t *testing.T) {
	s := boundedIntSchema()
	seq := NewToolSequence("add", s, model.PhaseRealistic, 123, 5)
	var first []string
	for {
		tc, ok := seq.Next()
		if !ok {
			break
		}
		first = append(first, string(tc.Args))
	}

	seq.Restart()
	var second []string
	for {
		tc, ok := seq.Next()
		if !ok {
			break
		}
		second = append(second, string(tc.Args))
	}

	assert.Equal(t, first, second)
}

func TestRegexReverseRespectsCharClass(t *testing.T) {
	w := NewWalker(11)
	s, ok := w.fromPattern(`[A-Za-z0-9_]{3,6}`)
	require.True(t, ok)
	assert.Regexp(t, `^[A-Za-z0-9_]+$`, s)
	assert.GreaterOrEqual(t, len(s), 3)
	assert.LessOrEqual(t, len(s), 6)
}

func strPtr(s string) *string { return &s }
