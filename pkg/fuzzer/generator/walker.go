package generator

import (
	"math"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/jsonvalue"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
)

// Walker is the single schema walker both generation modes share (spec.md
// §4.1: "Two generation modes share one walker").
type Walker struct {
	rng *rand64
}

// rand64 aliases the concrete RNG type returned by newRNG so the rest of
// this package doesn't need to import math/rand/v2 directly.
type rand64 = rngType

func NewWalker(seed uint64) *Walker {
	return &Walker{rng: newRNG(seed)}
}

// Realistic generates a value that satisfies s (spec.md §4.1 "Realistic
// mode"). A nil or empty schema matches anything; the walker returns a
// plain string in that case.
func (w *Walker) Realistic(s *schema.JsonSchema) jsonvalue.Value {
	if s == nil {
		return jsonvalue.String(w.randomWord(6))
	}

	if s.Const != nil {
		return *s.Const
	}
	if len(s.Enum) > 0 {
		return s.Enum[w.intn(len(s.Enum))]
	}
	if len(s.OneOf) > 0 {
		return w.Realistic(s.OneOf[w.intn(len(s.OneOf))])
	}
	if len(s.AnyOf) > 0 {
		return w.Realistic(s.AnyOf[w.intn(len(s.AnyOf))])
	}
	if len(s.AllOf) > 0 {
		merged, ok := mergeAllOf(s.AllOf)
		if !ok {
			// Degenerate: conflicting branches. Emit the first branch's
			// value rather than fail the whole case (spec.md §4.1).
			return w.Realistic(s.AllOf[0])
		}
		return w.Realistic(merged)
	}

	t := s.SingleType()
	if t == "" && len(s.Types) == 0 {
		t = w.guessType(s)
	}

	switch t {
	case "string":
		return jsonvalue.String(w.realisticString(s))
	case "integer":
		return jsonvalue.Int(w.realisticInt(s))
	case "number":
		return jsonvalue.Float(w.realisticFloat(s))
	case "boolean":
		return jsonvalue.Bool(w.boolean())
	case "array":
		return w.realisticArray(s)
	case "object":
		return w.realisticObject(s)
	case "null":
		return jsonvalue.Null()
	default:
		if len(s.Types) > 1 {
			return w.Realistic(&schema.JsonSchema{Types: []string{s.Types[w.intn(len(s.Types))]},
				Properties: s.Properties, Required: s.Required, Items: s.Items,
				MinLength: s.MinLength, MaxLength: s.MaxLength, Pattern: s.Pattern, Format: s.Format,
				Minimum: s.Minimum, Maximum: s.Maximum, ExclusiveMinimum: s.ExclusiveMinimum,
				ExclusiveMaximum: s.ExclusiveMaximum, MultipleOf: s.MultipleOf,
				MinItems: s.MinItems, MaxItems: s.MaxItems, UniqueItems: s.UniqueItems,
				MinProperties: s.MinProperties, MaxProperties: s.MaxProperties,
				AdditionalProperties: s.AdditionalProperties})
		}
		return jsonvalue.String(w.randomWord(6))
	}
}

// guessType infers an implicit type from the constraints present when the
// schema omits "type" entirely.
func (w *Walker) guessType(s *schema.JsonSchema) string {
	switch {
	case s.Properties != nil || s.Required != nil:
		return "object"
	case s.Items != nil:
		return "array"
	case s.Pattern != nil || s.Format != nil || s.MinLength != nil || s.MaxLength != nil:
		return "string"
	case s.Minimum != nil || s.Maximum != nil:
		return "number"
	default:
		return "string"
	}
}

func (w *Walker) realisticString(s *schema.JsonSchema) string {
	if s.Format != nil {
		if v, ok := w.formatValue(*s.Format); ok {
			return v
		}
	}
	if s.Pattern != nil {
		if v, ok := w.fromPattern(*s.Pattern); ok {
			return v
		}
	}

	minLen, maxLen := 0, 16
	if s.MinLength != nil {
		minLen = *s.MinLength
	}
	if s.MaxLength != nil {
		maxLen = *s.MaxLength
	} else if maxLen < minLen {
		maxLen = minLen
	}
	if maxLen < minLen {
		maxLen = minLen
	}
	n := minLen
	if maxLen > minLen {
		n = minLen + w.intn(maxLen-minLen+1)
	}
	return w.randomWord(n)
}

func (w *Walker) realisticInt(s *schema.JsonSchema) int64 {
	lo, hi := int64(-1000), int64(1000)
	if s.Minimum != nil {
		lo = int64(math.Ceil(*s.Minimum))
	}
	if s.ExclusiveMinimum != nil {
		lo = int64(math.Floor(*s.ExclusiveMinimum)) + 1
	}
	if s.Maximum != nil {
		hi = int64(math.Floor(*s.Maximum))
	}
	if s.ExclusiveMaximum != nil {
		hi = int64(math.Ceil(*s.ExclusiveMaximum)) - 1
	}
	if hi < lo {
		hi = lo
	}
	v := w.intRange(lo, hi)
	if s.MultipleOf != nil && *s.MultipleOf > 0 {
		m := int64(*s.MultipleOf)
		if m > 0 {
			v = (v / m) * m
			if v < lo {
				v += m
			}
		}
	}
	return v
}

func (w *Walker) realisticFloat(s *schema.JsonSchema) float64 {
	lo, hi := -1000.0, 1000.0
	if s.Minimum != nil {
		lo = *s.Minimum
	}
	if s.ExclusiveMinimum != nil {
		lo = *s.ExclusiveMinimum + 1e-9
	}
	if s.Maximum != nil {
		hi = *s.Maximum
	}
	if s.ExclusiveMaximum != nil {
		hi = *s.ExclusiveMaximum - 1e-9
	}
	if hi < lo {
		hi = lo
	}
	v := w.floatRange(lo, hi)
	if s.MultipleOf != nil && *s.MultipleOf > 0 {
		v = math.Round(v/(*s.MultipleOf)) * (*s.MultipleOf)
	}
	return v
}

func (w *Walker) realisticArray(s *schema.JsonSchema) jsonvalue.Value {
	minItems, maxItems := 0, 3
	if s.MinItems != nil {
		minItems = *s.MinItems
	}
	if s.MaxItems != nil {
		maxItems = *s.MaxItems
	} else if maxItems < minItems {
		maxItems = minItems
	}
	if maxItems < minItems {
		maxItems = minItems
	}
	n := minItems
	if maxItems > minItems {
		n = minItems + w.intn(maxItems-minItems+1)
	}

	elems := make([]jsonvalue.Value, 0, n)
	seen := map[string]bool{}
	attempts := 0
	for len(elems) < n && attempts < n*8+8 {
		attempts++
		v := w.Realistic(s.Items)
		if s.UniqueItems {
			key := fingerprintValue(v)
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		elems = append(elems, v)
	}
	return jsonvalue.Array(elems...)
}

func (w *Walker) realisticObject(s *schema.JsonSchema) jsonvalue.Value {
	out := map[string]jsonvalue.Value{}
	required := map[string]bool{}
	for _, r := range s.Required {
		required[r] = true
		if sub, ok := s.Properties[r]; ok {
			out[r] = w.Realistic(sub)
		} else {
			out[r] = jsonvalue.String(w.randomWord(6))
		}
	}

	maxProps := len(s.Properties)
	if s.MaxProperties != nil {
		maxProps = *s.MaxProperties
	}
	for name, sub := range s.Properties {
		if required[name] || len(out) >= maxProps {
			continue
		}
		if w.boolean() {
			out[name] = w.Realistic(sub)
		}
	}

	if s.MinProperties != nil {
		for name, sub := range s.Properties {
			if len(out) >= *s.MinProperties {
				break
			}
			if _, ok := out[name]; !ok {
				out[name] = w.Realistic(sub)
			}
		}
	}

	return jsonvalue.Object(out)
}

func fingerprintValue(v jsonvalue.Value) string {
	data, err := v.MarshalJSON()
	if err != nil {
		return ""
	}
	return string(data)
}

// mergeAllOf intersects a list of sub-schemas' constraints. Returns ok=false
// when the declared types don't intersect (spec.md §4.1: "on conflict ...
// mark the case as degenerate and skip").
func mergeAllOf(subs []*schema.JsonSchema) (*schema.JsonSchema, bool) {
	merged := &schema.JsonSchema{Properties: map[string]*schema.JsonSchema{}}
	var typeSet []string
	first := true

	for _, s := range subs {
		if s == nil {
			continue
		}
		if len(s.Types) > 0 {
			if first || typeSet == nil {
				typeSet = s.Types
			} else {
				typeSet = intersect(typeSet, s.Types)
				if len(typeSet) == 0 {
					return nil, false
				}
			}
			first = false
		}
		merged.MinLength = tighterIntMin(merged.MinLength, s.MinLength)
		merged.MaxLength = tighterIntMax(merged.MaxLength, s.MaxLength)
		merged.Minimum = tighterFloatMin(merged.Minimum, s.Minimum)
		merged.Maximum = tighterFloatMax(merged.Maximum, s.Maximum)
		merged.MinItems = tighterIntMin(merged.MinItems, s.MinItems)
		merged.MaxItems = tighterIntMax(merged.MaxItems, s.MaxItems)
		if s.Pattern != nil {
			merged.Pattern = s.Pattern
		}
		if s.Format != nil {
			merged.Format = s.Format
		}
		if s.Items != nil {
			merged.Items = s.Items
		}
		merged.Required = append(merged.Required, s.Required...)
		for k, v := range s.Properties {
			merged.Properties[k] = v
		}
	}
	merged.Types = typeSet
	return merged, true
}

func intersect(a, b []string) []string {
	set := map[string]bool{}
	for _, x := range a {
		set[x] = true
	}
	var out []string
	for _, x := range b {
		if set[x] {
			out = append(out, x)
		}
	}
	return out
}

func tighterIntMin(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b > *a {
		return b
	}
	return a
}

func tighterIntMax(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b < *a {
		return b
	}
	return a
}

func tighterFloatMin(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b > *a {
		return b
	}
	return a
}

func tighterFloatMax(a, b *float64) *float64 {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b < *a {
		return b
	}
	return a
}
