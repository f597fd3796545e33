// Package schema implements the JSON-Schema draft-07 subset spec.md §3
// describes as sufficient for MCP tool parameters, plus the compiled
// validator the Invariant Checker uses for per-tool conformance (§4.8).
package schema

import (
	"encoding/json"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/jsonvalue"
)

// JsonSchema is the in-memory representation the generator walks. Unknown
// keywords are preserved in Raw but ignored during generation, per spec.md
// §3 ("Unknown keywords are preserved but ignored during generation").
type JsonSchema struct {
	Types []string

	MinLength *int
	MaxLength *int
	Pattern   *string
	Format    *string

	Minimum          *float64
	Maximum          *float64
	ExclusiveMinimum *float64
	ExclusiveMaximum *float64
	MultipleOf       *float64

	MinItems    *int
	MaxItems    *int
	UniqueItems bool
	Items       *JsonSchema

	MinProperties        *int
	MaxProperties        *int
	Required             []string
	Properties           map[string]*JsonSchema
	AdditionalProperties *AdditionalProperties

	OneOf []*JsonSchema
	AnyOf []*JsonSchema
	AllOf []*JsonSchema

	Enum  []jsonvalue.Value
	Const *jsonvalue.Value

	Raw json.RawMessage
}

// AdditionalProperties models the bool|schema union JSON-Schema allows for
// the additionalProperties keyword.
type AdditionalProperties struct {
	Allowed bool
	Schema  *JsonSchema
}

// HasType reports whether t is among the schema's declared types, or true
// if no type was declared (anything goes).
func (s *JsonSchema) HasType(t string) bool {
	if s == nil || len(s.Types) == 0 {
		return true
	}
	for _, x := range s.Types {
		if x == t {
			return true
		}
	}
	return false
}

// SingleType returns the schema's lone declared type, or "" if zero or
// multiple types are declared.
func (s *JsonSchema) SingleType() string {
	if s == nil || len(s.Types) != 1 {
		return ""
	}
	return s.Types[0]
}

// Parse builds a JsonSchema from a raw JSON-Schema document.
func Parse(raw json.RawMessage) (*JsonSchema, error) {
	var m map[string]any
	if len(raw) == 0 {
		return &JsonSchema{}, nil
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return parseNode(m, raw), nil
}

func parseNode(m map[string]any, raw json.RawMessage) *JsonSchema {
	s := &JsonSchema{Raw: raw}

	switch t := m["type"].(type) {
	case string:
		s.Types = []string{t}
	case []any:
		for _, x := range t {
			if str, ok := x.(string); ok {
				s.Types = append(s.Types, str)
			}
		}
	}

	s.MinLength = intPtr(m["minLength"])
	s.MaxLength = intPtr(m["maxLength"])
	if p, ok := m["pattern"].(string); ok {
		s.Pattern = &p
	}
	if f, ok := m["format"].(string); ok {
		s.Format = &f
	}

	s.Minimum = floatPtr(m["minimum"])
	s.Maximum = floatPtr(m["maximum"])
	s.ExclusiveMinimum = floatPtr(m["exclusiveMinimum"])
	s.ExclusiveMaximum = floatPtr(m["exclusiveMaximum"])
	s.MultipleOf = floatPtr(m["multipleOf"])

	s.MinItems = intPtr(m["minItems"])
	s.MaxItems = intPtr(m["maxItems"])
	if u, ok := m["uniqueItems"].(bool); ok {
		s.UniqueItems = u
	}
	if items, ok := m["items"]; ok {
		s.Items = parseSub(items)
	}

	s.MinProperties = intPtr(m["minProperties"])
	s.MaxProperties = intPtr(m["maxProperties"])
	if req, ok := m["required"].([]any); ok {
		for _, r := range req {
			if str, ok := r.(string); ok {
				s.Required = append(s.Required, str)
			}
		}
	}
	if props, ok := m["properties"].(map[string]any); ok {
		s.Properties = make(map[string]*JsonSchema, len(props))
		for k, v := range props {
			s.Properties[k] = parseSub(v)
		}
	}
	switch ap := m["additionalProperties"].(type) {
	case bool:
		s.AdditionalProperties = &AdditionalProperties{Allowed: ap}
	case map[string]any:
		s.AdditionalProperties = &AdditionalProperties{Allowed: true, Schema: parseSub(ap)}
	}

	s.OneOf = parseList(m["oneOf"])
	s.AnyOf = parseList(m["anyOf"])
	s.AllOf = parseList(m["allOf"])

	if enum, ok := m["enum"].([]any); ok {
		for _, e := range enum {
			s.Enum = append(s.Enum, jsonvalue.FromAny(e))
		}
	}
	if c, ok := m["const"]; ok {
		v := jsonvalue.FromAny(c)
		s.Const = &v
	}

	return s
}

func parseSub(x any) *JsonSchema {
	m, ok := x.(map[string]any)
	if !ok {
		return &JsonSchema{}
	}
	raw, _ := json.Marshal(m)
	return parseNode(m, raw)
}

func parseList(x any) []*JsonSchema {
	arr, ok := x.([]any)
	if !ok {
		return nil
	}
	out := make([]*JsonSchema, 0, len(arr))
	for _, e := range arr {
		out = append(out, parseSub(e))
	}
	return out
}

func intPtr(x any) *int {
	switch v := x.(type) {
	case float64:
		i := int(v)
		return &i
	case int:
		return &v
	default:
		return nil
	}
}

func floatPtr(x any) *float64 {
	switch v := x.(type) {
	case float64:
		return &v
	case int:
		f := float64(v)
		return &f
	default:
		return nil
	}
}
