// Package localexec exposes allowlisted local commands as tools.
package localexec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"

	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/fentz26/toolbench/internal/schema"
)

// defaultAllow is used when a provider configures no allowlist.
var defaultAllow = map[string][]string{
	"go":  {"test", "vet"},
	"git": {"diff", "status", "log"},
}

// ExecResult holds the result of a command execution.
type ExecResult struct {
	Command  string   `json:"command"`
	Args     []string `json:"args"`
	ExitCode int      `json:"exit_code"`
	Stdout   string   `json:"stdout"`
	Stderr   string   `json:"stderr"`
}

// Input is the parameter object every exec tool accepts.
type Input struct {
	Args  []string `json:"args,omitempty" jsonschema:"description=Extra arguments appended to the configured ones"`
	Stdin string   `json:"stdin,omitempty" jsonschema:"description=Text written to the command's standard input"`
}

var inputSchema = func() json.RawMessage {
	raw, err := schema.Reflect[Input]()
	if err != nil {
		panic(err)
	}
	return raw
}()

// ErrCommandNotAllowed is returned for commands outside the allowlist.
var ErrCommandNotAllowed = fmt.Errorf("command not allowed")

// LocalExec implements provider.Provider for local command execution.
type LocalExec struct {
	name    string
	workDir string
	allow   map[string][]string
	tools   map[string]catalog.ExecTool
	order   []string
}

var _ provider.Provider = (*LocalExec)(nil)

// New creates a LocalExec provider from its configuration.
func New(cfg catalog.ProviderConfig) *LocalExec {
	allow := cfg.Allow
	if len(allow) == 0 {
		allow = defaultAllow
	}
	l := &LocalExec{
		name:    cfg.Name,
		workDir: cfg.WorkDir,
		allow:   allow,
		tools:   make(map[string]catalog.ExecTool, len(cfg.Tools)),
	}
	for _, t := range cfg.Tools {
		if _, dup := l.tools[t.Identifier]; !dup {
			l.order = append(l.order, t.Identifier)
		}
		l.tools[t.Identifier] = t
	}
	return l
}

// Name returns the provider identifier.
func (l *LocalExec) Name() string {
	return l.name
}

// ListTools returns the configured commands in declaration order.
func (l *LocalExec) ListTools(ctx context.Context) ([]models.RawTool, error) {
	tools := make([]models.RawTool, 0, len(l.order))
	for _, id := range l.order {
		t := l.tools[id]
		tools = append(tools, models.RawTool{
			Identifier:  t.Identifier,
			Description: t.Description,
			InputSchema: inputSchema,
			Tags:        append([]string{"exec"}, t.Tags...),
		})
	}
	return tools, nil
}

// IsAllowed checks if a command is in the allowlist.
func (l *LocalExec) IsAllowed(cmd string, args []string) bool {
	allowedSubcmds, ok := l.allow[cmd]
	if !ok {
		return false
	}

	if len(args) == 0 {
		return false
	}

	// Check if the first arg (subcommand) is allowed
	subcmd := args[0]
	for _, allowed := range allowedSubcmds {
		if subcmd == allowed {
			return true
		}
	}
	return false
}

// Invoke runs the command behind identifier with any extra arguments from
// params. The allowlist is checked against the final argument list.
func (l *LocalExec) Invoke(ctx context.Context, identifier string, params map[string]any) (any, error) {
	t, ok := l.tools[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrToolNotFound, identifier)
	}

	var in Input
	if len(params) > 0 {
		data, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("encode parameters: %w", err)
		}
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, fmt.Errorf("decode parameters: %w", err)
		}
	}

	args := append(append([]string(nil), t.Args...), in.Args...)
	if !l.IsAllowed(t.Command, args) {
		return nil, fmt.Errorf("%w: %s %s", ErrCommandNotAllowed, t.Command, strings.Join(args, " "))
	}

	execCmd := exec.CommandContext(ctx, t.Command, args...)
	if l.workDir != "" {
		execCmd.Dir = l.workDir
	}

	var stdout, stderr bytes.Buffer
	execCmd.Stdin = strings.NewReader(in.Stdin)
	execCmd.Stdout = &stdout
	execCmd.Stderr = &stderr

	err := execCmd.Run()

	exitCode := 0
	if err != nil {
		if exitError, ok := err.(*exec.ExitError); ok {
			exitCode = exitError.ExitCode()
		} else {
			return nil, fmt.Errorf("exec error: %w", err)
		}
	}

	result := &ExecResult{
		Command:  t.Command,
		Args:     args,
		ExitCode: exitCode,
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
	}
	if exitCode != 0 {
		return result, fmt.Errorf("%s exited with %d: %s", t.Command, exitCode, strings.TrimSpace(result.Stderr))
	}
	return result, nil
}

// Close is a no-op; commands do not outlive Invoke.
func (l *LocalExec) Close() error {
	return nil
}
