package localexec

import (
	"context"
	"encoding/json"
	"errors"
	osexec "os/exec"
	"strings"
	"testing"

	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExec(tools ...catalog.ExecTool) *LocalExec {
	return New(catalog.ProviderConfig{
		Name:  "scripts",
		Type:  catalog.ProviderExec,
		Tools: tools,
	})
}

func TestIsAllowed(t *testing.T) {
	exec := newTestExec()

	tests := []struct {
		cmd     string
		args    []string
		allowed bool
	}{
		{"go", []string{"test", "./..."}, true},
		{"git", []string{"status"}, true},
		{"git", []string{"diff"}, true},
		{"git", []string{"push"}, false},    // not in allowlist
		{"rm", []string{"-rf", "/"}, false}, // not in allowlist
		{"go", []string{"run", "."}, false}, // subcommand not allowed
		{"go", []string{}, false},           // no subcommand
		{"unknown", []string{"cmd"}, false}, // unknown command
	}

	for _, tt := range tests {
		t.Run(tt.cmd+" "+strings.Join(tt.args, " "), func(t *testing.T) {
			assert.Equal(t, tt.allowed, exec.IsAllowed(tt.cmd, tt.args))
		})
	}
}

func TestIsAllowed_CustomAllowlist(t *testing.T) {
	exec := New(catalog.ProviderConfig{
		Name:  "custom",
		Type:  catalog.ProviderExec,
		Allow: map[string][]string{"echo": {"hello"}},
	})

	assert.True(t, exec.IsAllowed("echo", []string{"hello"}))
	assert.False(t, exec.IsAllowed("git", []string{"status"}))
}

func TestListTools(t *testing.T) {
	exec := newTestExec(
		catalog.ExecTool{Identifier: "git_status", Description: "Working tree status", Command: "git", Args: []string{"status"}},
		catalog.ExecTool{Identifier: "go_test", Description: "Run tests", Command: "go", Args: []string{"test", "./..."}, Tags: []string{"ci"}},
	)

	tools, err := exec.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 2)

	assert.Equal(t, "git_status", tools[0].Identifier)
	assert.Equal(t, []string{"exec"}, tools[0].Tags)
	assert.Equal(t, "go_test", tools[1].Identifier)
	assert.Equal(t, []string{"exec", "ci"}, tools[1].Tags)
}

func TestInvoke_NotAllowed(t *testing.T) {
	exec := newTestExec(catalog.ExecTool{Identifier: "danger_rm", Command: "rm", Args: []string{"-rf", "/"}})

	_, err := exec.Invoke(context.Background(), "danger_rm", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCommandNotAllowed))
}

func TestInvoke_UnknownTool(t *testing.T) {
	exec := newTestExec()

	_, err := exec.Invoke(context.Background(), "missing_tool", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, provider.ErrToolNotFound))
}

func TestName(t *testing.T) {
	assert.Equal(t, "scripts", newTestExec().Name())
}

func TestListTools_InputSchema(t *testing.T) {
	exec := newTestExec(catalog.ExecTool{Identifier: "git_log", Command: "git", Args: []string{"log"}})

	tools, err := exec.ListTools(context.Background())
	require.NoError(t, err)
	require.Len(t, tools, 1)

	var s map[string]any
	require.NoError(t, json.Unmarshal(tools[0].InputSchema, &s))
	assert.Equal(t, "object", s["type"])
	props, ok := s["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "args")
	assert.Contains(t, props, "stdin")
}

func TestInvoke_ExtraArgsAndStdin(t *testing.T) {
	if _, err := osexec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}
	exec := New(catalog.ProviderConfig{
		Name:  "shell",
		Type:  catalog.ProviderExec,
		Allow: map[string][]string{"echo": {"hello"}, "cat": {"-"}},
		Tools: []catalog.ExecTool{
			{Identifier: "shell_echo", Command: "echo", Args: []string{"hello"}},
			{Identifier: "shell_cat", Command: "cat", Args: []string{"-"}},
		},
	})
	ctx := context.Background()

	out, err := exec.Invoke(ctx, "shell_echo", map[string]any{"args": []any{"world"}})
	require.NoError(t, err)
	res := out.(*ExecResult)
	assert.Equal(t, "hello world\n", res.Stdout)
	assert.Equal(t, []string{"hello", "world"}, res.Args)

	out, err = exec.Invoke(ctx, "shell_cat", map[string]any{"stdin": "piped"})
	require.NoError(t, err)
	assert.Equal(t, "piped", out.(*ExecResult).Stdout)
}

func TestInvoke_BadParams(t *testing.T) {
	exec := newTestExec(catalog.ExecTool{Identifier: "git_log", Command: "git", Args: []string{"log"}})

	_, err := exec.Invoke(context.Background(), "git_log", map[string]any{"args": "not-a-list"})
	assert.ErrorContains(t, err, "decode parameters")
}
