package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// Compiled wraps a compiled draft-07 validator used by the Invariant
// Checker to assert a response result matches the result schema the
// caller supplies (spec.md §4.8).
type Compiled struct {
	schema *jsonschema.Schema
}

// Compile compiles a raw JSON-Schema document for repeated Validate calls.
// Tool discovery in the session driver only Parses input schemas; it does
// not Compile them.
func Compile(name string, raw json.RawMessage) (*Compiled, error) {
	if len(raw) == 0 {
		return &Compiled{}, nil
	}
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft7
	if err := c.AddResource(name, bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("schema: add resource %s: %w", name, err)
	}
	compiled, err := c.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("schema: compile %s: %w", name, err)
	}
	return &Compiled{schema: compiled}, nil
}

// Validate checks a decoded JSON instance (as produced by
// encoding/json.Unmarshal into interface{}) against the compiled schema.
// A nil receiver schema (no schema was advertised) always validates.
func (c *Compiled) Validate(instance any) error {
	if c == nil || c.schema == nil {
		return nil
	}
	if err := c.schema.Validate(instance); err != nil {
		return fmt.Errorf("schema violation: %w", err)
	}
	return nil
}

// ValidateRaw decodes raw JSON and validates it in one step.
func (c *Compiled) ValidateRaw(raw json.RawMessage) error {
	if c == nil || c.schema == nil || len(raw) == 0 {
		return nil
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return fmt.Errorf("schema: decode instance: %w", err)
	}
	return c.Validate(instance)
}
