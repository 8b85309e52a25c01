// Package models defines the core domain types for toolbench.
package models

import (
	"encoding/json"
	"time"
)

// RawTool is a tool exactly as a provider advertises it.
type RawTool struct {
	Identifier  string          `json:"identifier" yaml:"identifier" toml:"identifier"`
	Description string          `json:"description" yaml:"description" toml:"description"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty" yaml:"-" toml:"-"`
	Tags        []string        `json:"tags,omitempty" yaml:"tags" toml:"tags"`
}

// ParsedTool is a RawTool resolved to a (server, name) pair.
type ParsedTool struct {
	Name           string          `json:"name"`
	Server         string          `json:"server"`
	FullIdentifier string          `json:"fullIdentifier"` // never rewritten after parsing
	Description    string          `json:"description"`
	InputSchema    json.RawMessage `json:"inputSchema,omitempty"`
	Tags           []string        `json:"tags,omitempty"`
}

// InvokeResult is the structured outcome of a tool invocation. Failures are
// always reported here, never as Go errors.
type InvokeResult struct {
	Success       bool          `json:"success"`
	Data          any           `json:"data,omitempty"`
	Error         string        `json:"error,omitempty"`
	ToolName      string        `json:"toolName"`
	ExecutionTime time.Duration `json:"-"`
}

type invokeResultJSON struct {
	Success       bool   `json:"success"`
	Data          any    `json:"data,omitempty"`
	Error         string `json:"error,omitempty"`
	ToolName      string `json:"toolName"`
	ExecutionTime int64  `json:"executionTime,omitempty"` // milliseconds
}

// MarshalJSON encodes ExecutionTime in milliseconds.
func (r InvokeResult) MarshalJSON() ([]byte, error) {
	return json.Marshal(invokeResultJSON{
		Success:       r.Success,
		Data:          r.Data,
		Error:         r.Error,
		ToolName:      r.ToolName,
		ExecutionTime: r.ExecutionTime.Milliseconds(),
	})
}

// UnmarshalJSON decodes ExecutionTime from milliseconds.
func (r *InvokeResult) UnmarshalJSON(data []byte) error {
	var v invokeResultJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = InvokeResult{
		Success:       v.Success,
		Data:          v.Data,
		Error:         v.Error,
		ToolName:      v.ToolName,
		ExecutionTime: time.Duration(v.ExecutionTime) * time.Millisecond,
	}
	return nil
}

// Invocation is a persisted record of one tool execution.
type Invocation struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Parameters string    `json:"parameters"`
	Success    bool      `json:"success"`
	Output     string    `json:"output,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// AuditEntry records a state-changing action for later review.
type AuditEntry struct {
	ID         string    `json:"id"`
	Action     string    `json:"action"`
	InputsHash string    `json:"inputs_hash"`
	Outcome    string    `json:"outcome"`
	Identifier string    `json:"identifier,omitempty"`
	Details    string    `json:"details,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}
