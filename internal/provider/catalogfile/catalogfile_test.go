package catalogfile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/fentz26/toolbench/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlCatalog = `
tools:
  - identifier: db_query
    description: Run a read-only SQL query
    tags: [sql]
    input_schema:
      type: object
      properties:
        sql:
          type: string
      required: [sql]
    response:
      rows: 3
  - identifier: db_backup
    description: Snapshot the database
`

const tomlCatalog = `
[[tools]]
identifier = "mcp_github_issue"
description = "Create an issue"
tags = ["vcs"]
response = "created"

[[tools]]
identifier = "mcp_github_pull_request"
description = "Open a pull request"
`

const jsonCatalog = `{"tools":[{"identifier":"search","description":"Search the web","response":{"hits":1}}]}`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestListTools_Formats(t *testing.T) {
	tests := []struct {
		name      string
		file      string
		content   string
		wantIDs   []string
		wantTags0 []string
	}{
		{"yaml", "tools.yaml", yamlCatalog, []string{"db_query", "db_backup"}, []string{"sql"}},
		{"toml", "tools.toml", tomlCatalog, []string{"mcp_github_issue", "mcp_github_pull_request"}, []string{"vcs"}},
		{"json", "tools.json", jsonCatalog, []string{"search"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New("static", writeFile(t, tt.file, tt.content))

			tools, err := p.ListTools(context.Background())
			require.NoError(t, err)

			var ids []string
			for _, tool := range tools {
				ids = append(ids, tool.Identifier)
			}
			assert.Equal(t, tt.wantIDs, ids)
			assert.Equal(t, tt.wantTags0, tools[0].Tags)
		})
	}
}

func TestListTools_EncodesSchema(t *testing.T) {
	p := New("static", writeFile(t, "tools.yml", yamlCatalog))

	tools, err := p.ListTools(context.Background())
	require.NoError(t, err)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tools[0].InputSchema, &schema))
	assert.Equal(t, "object", schema["type"])
	assert.Empty(t, tools[1].InputSchema)
}

func TestInvoke(t *testing.T) {
	p := New("static", writeFile(t, "tools.yaml", yamlCatalog))
	ctx := context.Background()

	out, err := p.Invoke(ctx, "db_query", map[string]any{"sql": "select 1"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"rows": 3}, out)

	_, err = p.Invoke(ctx, "db_backup", nil)
	assert.True(t, errors.Is(err, provider.ErrNotInvocable))

	_, err = p.Invoke(ctx, "db_drop", nil)
	assert.True(t, errors.Is(err, provider.ErrToolNotFound))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	_, err = Load(writeFile(t, "tools.ini", "x=1"))
	assert.ErrorContains(t, err, "unsupported catalog format")

	_, err = Load(writeFile(t, "tools.json", "{not json"))
	assert.Error(t, err)
}
