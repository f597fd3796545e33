package jsonvalue

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromAnyRoundTrip(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "tool",
		"count": 3,
		"ratio": 1.5,
		"enabled": true,
		"tags": ["a", "b"],
		"meta": null
	}`)

	var v Value
	require.NoError(t, json.Unmarshal(raw, &v))

	assert.Equal(t, KindObject, v.Kind())
	name, ok := v.Get("name")
	require.True(t, ok)
	assert.Equal(t, KindString, name.Kind())
	assert.Equal(t, "tool", name.String())

	count, ok := v.Get("count")
	require.True(t, ok)
	assert.Equal(t, KindInt, count.Kind())
	assert.Equal(t, int64(3), count.Int())

	ratio, ok := v.Get("ratio")
	require.True(t, ok)
	assert.Equal(t, KindFloat, ratio.Kind())
	assert.Equal(t, 1.5, ratio.Float())

	tags, ok := v.Get("tags")
	require.True(t, ok)
	require.Equal(t, 2, tags.Len())
	assert.Equal(t, "a", tags.Elements()[0].String())

	meta, ok := v.Get("meta")
	require.True(t, ok)
	assert.True(t, meta.IsNull())
}

func TestMarshalJSONRoundTrip(t *testing.T) {
	v := Object(map[string]Value{
		"x": Int(42),
		"y": Array(String("a"), Bool(false)),
	})

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var back Value
	require.NoError(t, json.Unmarshal(data, &back))

	x, ok := back.Get("x")
	require.True(t, ok)
	assert.Equal(t, int64(42), x.Int())
}

func TestIntPromotesToFloat(t *testing.T) {
	v := Int(5)
	assert.Equal(t, 5.0, v.Float())
}

func TestKeysSorted(t *testing.T) {
	v := Object(map[string]Value{"b": Null(), "a": Null(), "c": Null()})
	assert.Equal(t, []string{"a", "b", "c"}, v.Keys())
}
