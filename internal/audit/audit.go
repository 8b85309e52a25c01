// Package audit records state-changing actions such as tool invocations and
// selection changes.
package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/fentz26/toolbench/internal/models"
)

// Actions recorded by toolbench.
const (
	ActionInvoke = "invoke"
	ActionSelect = "select"
	ActionClear  = "clear"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Sink persists audit entries. *store.Store satisfies it.
type Sink interface {
	WriteAudit(ctx context.Context, action, inputsHash, outcome, identifier, details string) (*models.AuditEntry, error)
}

// Writer hashes action inputs and hands them to a Sink.
type Writer struct {
	sink Sink
}

// NewWriter creates a new audit writer.
func NewWriter(s Sink) *Writer {
	return &Writer{sink: s}
}

// Record writes an entry for action. Inputs are stored only as a hash so
// parameters holding secrets never land on disk.
func (w *Writer) Record(ctx context.Context, action string, inputs any, outcome, identifier, details string) (*models.AuditEntry, error) {
	return w.sink.WriteAudit(ctx, action, HashInputs(inputs), outcome, identifier, details)
}

// HashInputs returns the hex SHA-256 of the JSON encoding of inputs.
// encoding/json sorts map keys, so equal maps hash equally.
func HashInputs(inputs any) string {
	data, err := json.Marshal(inputs)
	if err != nil {
		return "hash_error"
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
