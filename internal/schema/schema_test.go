package schema

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issueSchema = `{
	"type": "object",
	"properties": {
		"title": {"type": "string", "description": "Issue title"},
		"labels": {"type": "array", "items": {"type": "string"}},
		"priority": {"type": "string", "enum": ["low", "high"]},
		"draft": {"type": "boolean", "default": true},
		"assignee": {"anyOf": [{"type": "null"}, {"type": "string"}]}
	},
	"required": ["title", "priority"]
}`

func TestParams(t *testing.T) {
	params, err := Params(json.RawMessage(issueSchema))
	require.NoError(t, err)
	require.Len(t, params, 5)

	names := make([]string, len(params))
	for i, p := range params {
		names[i] = p.Name
	}
	assert.Equal(t, []string{"title", "labels", "priority", "draft", "assignee"}, names, "declaration order")

	assert.Equal(t, Param{Name: "title", Type: "string", Description: "Issue title", Required: true}, params[0])
	assert.Equal(t, "array", params[1].Type)
	assert.False(t, params[1].Required)
	assert.Equal(t, []any{"low", "high"}, params[2].Enum)
	assert.Equal(t, true, params[3].Default)
	assert.Equal(t, "string", params[4].Type)
}

func TestParams_Empty(t *testing.T) {
	for _, raw := range []string{"", "null", `{"type":"object"}`} {
		params, err := Params(json.RawMessage(raw))
		assert.NoError(t, err, raw)
		assert.Empty(t, params, raw)
	}

	_, err := Params(json.RawMessage(`{not json`))
	assert.Error(t, err)
}

func TestCheckRequired(t *testing.T) {
	raw := json.RawMessage(issueSchema)

	assert.NoError(t, CheckRequired(raw, map[string]any{"title": "x", "priority": "low"}))

	err := CheckRequired(raw, map[string]any{"labels": []any{}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMissingParams))
	assert.Contains(t, err.Error(), "title, priority")

	assert.NoError(t, CheckRequired(nil, nil))
	assert.NoError(t, CheckRequired(json.RawMessage(`garbage`), nil))
}

func TestSkeleton(t *testing.T) {
	got := Skeleton(json.RawMessage(issueSchema))
	assert.Equal(t, map[string]any{
		"title":    "",
		"labels":   []any{},
		"priority": "low",
		"draft":    true,
		"assignee": "",
	}, got)

	assert.Equal(t, map[string]any{}, Skeleton(nil))
}

type sample struct {
	Path  string `json:"path" jsonschema:"description=File to read"`
	Limit int    `json:"limit,omitempty"`
}

func TestReflect(t *testing.T) {
	raw, err := Reflect[sample]()
	require.NoError(t, err)

	params, err := Params(raw)
	require.NoError(t, err)
	require.Len(t, params, 2)
	assert.Equal(t, "path", params[0].Name)
	assert.Equal(t, "File to read", params[0].Description)
	assert.True(t, params[0].Required)
	assert.Equal(t, "integer", params[1].Type)
	assert.False(t, params[1].Required)

	assert.NotContains(t, string(raw), "$schema")
	assert.NotContains(t, string(raw), "$ref")
}
