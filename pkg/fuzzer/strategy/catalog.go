// Package strategy owns the two-phase protocol of spec.md §4.2: per tool,
// emit realistic then aggressive cases; plus protocol-level fuzzing over a
// fixed MCP method catalog whose request envelopes are baked-in schemas.
package strategy

import "encoding/json"

// MethodSpec names one JSON-RPC method from the MCP catalog and the schema
// its request params must satisfy, mirroring the envelope shapes the
// teacher's pkg/mcp/types.go already names in Go structs
// (InitializeParams, ListToolsParams, CallToolParams, ReadResourceParams,
// GetPromptParams, ...).
type MethodSpec struct {
	Method       string
	ParamsSchema json.RawMessage
	// Notification is true for fire-and-forget methods carrying no id
	// (spec.md §3: "notifications carry no id").
	Notification bool
}

// MethodCatalog is the fixed set of protocol-level methods exercised when
// the session mode includes "protocol" (spec.md §4.2, §4.9).
var MethodCatalog = []MethodSpec{
	{
		Method: "initialize",
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"required": ["protocolVersion", "capabilities", "clientInfo"],
			"properties": {
				"protocolVersion": {"type": "string"},
				"capabilities": {"type": "object"},
				"clientInfo": {
					"type": "object",
					"required": ["name", "version"],
					"properties": {
						"name": {"type": "string", "minLength": 1},
						"version": {"type": "string", "minLength": 1}
					}
				}
			}
		}`),
	},
	{
		Method: "tools/list",
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"cursor": {"type": "string"}}
		}`),
	},
	{
		Method: "tools/call",
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"arguments": {"type": "object"}
			}
		}`),
	},
	{
		Method: "resources/list",
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"cursor": {"type": "string"}}
		}`),
	},
	{
		Method: "resources/read",
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"required": ["uri"],
			"properties": {"uri": {"type": "string", "format": "uri"}}
		}`),
	},
	{
		Method: "prompts/list",
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"properties": {"cursor": {"type": "string"}}
		}`),
	},
	{
		Method: "prompts/get",
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"required": ["name"],
			"properties": {
				"name": {"type": "string", "minLength": 1},
				"arguments": {"type": "object"}
			}
		}`),
	},
	{
		Method: "notifications/progress",
		Notification: true,
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"required": ["progressToken", "progress"],
			"properties": {
				"progressToken": {"type": ["string", "integer"]},
				"progress": {"type": "number", "minimum": 0},
				"total": {"type": "number", "minimum": 0}
			}
		}`),
	},
	{
		Method: "notifications/cancelled",
		Notification: true,
		ParamsSchema: json.RawMessage(`{
			"type": "object",
			"required": ["requestId"],
			"properties": {
				"requestId": {"type": ["string", "integer"]},
				"reason": {"type": "string"}
			}
		}`),
	},
}
