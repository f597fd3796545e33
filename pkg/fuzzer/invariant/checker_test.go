package invariant

import (
	"encoding/json"
	"testing"

	"github.com/mcpconform/fuzzer/pkg/fuzzer/model"
	"github.com/mcpconform/fuzzer/pkg/fuzzer/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValidSuccessResponse(t *testing.T) {
	c := NewChecker()
	id := model.IntID(1)
	resp := model.Response{ID: id, Result: json.RawMessage(`{"ok": true}`)}

	findings := c.Check(resp, id, nil)
	assert.Empty(t, findings)
}

func TestCheckBothResultAndError(t *testing.T) {
	c := NewChecker()
	id := model.IntID(1)
	resp := model.Response{
		ID:     id,
		Result: json.RawMessage(`{}`),
		Error:  &model.RPCError{Code: -32600, Message: "bad"},
	}

	findings := c.Check(resp, id, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingBothResultAndError, findings[0].Kind)
}

func TestCheckNeitherResultNorError(t *testing.T) {
	c := NewChecker()
	id := model.IntID(1)
	resp := model.Response{ID: id}

	findings := c.Check(resp, id, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingNeitherResultNorErr, findings[0].Kind)
}

func TestCheckBadErrorCode(t *testing.T) {
	c := NewChecker()
	id := model.IntID(1)
	resp := model.Response{ID: id, Error: &model.RPCError{Code: -1, Message: "weird"}}

	findings := c.Check(resp, id, nil)
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingBadErrorCode, findings[0].Kind)
}

func TestCheckIDMismatch(t *testing.T) {
	c := NewChecker()
	resp := model.Response{ID: model.IntID(2), Result: json.RawMessage(`{}`)}

	findings := c.Check(resp, model.IntID(1), nil)
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingIDMismatch, findings[0].Kind)
}

func TestCheckSchemaViolation(t *testing.T) {
	c := NewChecker()
	id := model.IntID(1)
	compiled, err := schema.Compile("result.json", json.RawMessage(`{
		"type": "object",
		"required": ["message"],
		"properties": {"message": {"type": "string"}}
	}`))
	require.NoError(t, err)

	resp := model.Response{ID: id, Result: json.RawMessage(`{}`)}
	findings := c.Check(resp, id, compiled)
	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingSchemaViolation, findings[0].Kind)
}

func TestCheckBatchSetMismatch(t *testing.T) {
	c := NewChecker()
	outstanding := []model.RequestID{model.IntID(1), model.IntID(2), model.IntID(3)}
	resps := model.BatchResponse{
		{ID: model.IntID(1), Result: json.RawMessage(`{}`)},
		{ID: model.IntID(2), Result: json.RawMessage(`{}`)},
	}

	findings := c.CheckBatch(resps, outstanding, nil, nil)
	require.NotEmpty(t, findings)
	assert.Equal(t, model.FindingBatchSetMismatch, findings[0].Kind)
}

func TestCheckBatchShuffledOrderIsFine(t *testing.T) {
	c := NewChecker()
	outstanding := []model.RequestID{model.IntID(1), model.IntID(2), model.IntID(3), model.IntID(4)}
	resps := model.BatchResponse{
		{ID: model.IntID(3), Result: json.RawMessage(`{}`)},
		{ID: model.IntID(1), Result: json.RawMessage(`{}`)},
		{ID: model.IntID(4), Result: json.RawMessage(`{}`)},
		{ID: model.IntID(2), Result: json.RawMessage(`{}`)},
	}

	findings := c.CheckBatch(resps, outstanding, nil, func(id model.RequestID) string { return "" })
	assert.Empty(t, findings)
}
