// Package store provides SQLite-backed persistence for toolbench.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fentz26/toolbench/internal/models"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// Store provides access to the toolbench SQLite database.
type Store struct {
	db *sql.DB
}

// New creates a new Store and runs migrations.
func New(dbPath string) (*Store, error) {
	dsn := dbPath
	if dbPath != MemoryPath {
		// Ensure directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
		// WAL lets the TUI read while the daemon writes.
		dsn += "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS invocations (
		id TEXT PRIMARY KEY,
		identifier TEXT NOT NULL,
		parameters TEXT,
		success INTEGER NOT NULL DEFAULT 0,
		output TEXT,
		error TEXT,
		duration_ms INTEGER NOT NULL DEFAULT 0,
		started_at DATETIME NOT NULL,
		ended_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS audit (
		id TEXT PRIMARY KEY,
		action TEXT NOT NULL,
		inputs_hash TEXT NOT NULL,
		outcome TEXT NOT NULL,
		identifier TEXT,
		details TEXT,
		timestamp DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invocations_identifier ON invocations(identifier);
	CREATE INDEX IF NOT EXISTS idx_invocations_started_at ON invocations(started_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// --- Key/Value Operations ---

// Get returns the value stored under key. ok is false when the key is absent.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query kv: %w", err)
	}
	return value, true, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert kv: %w", err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// --- Invocation Operations ---

// CreateInvocation inserts a new invocation record.
func (s *Store) CreateInvocation(ctx context.Context, identifier, parameters string) (*models.Invocation, error) {
	inv := &models.Invocation{
		ID:         uuid.New().String(),
		Identifier: identifier,
		Parameters: parameters,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO invocations (id, identifier, parameters, started_at) VALUES (?, ?, ?, ?)`,
		inv.ID, inv.Identifier, inv.Parameters, inv.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert invocation: %w", err)
	}
	return inv, nil
}

// FinishInvocation stores the outcome of an invocation.
func (s *Store) FinishInvocation(ctx context.Context, id string, success bool, output, errMsg string, duration time.Duration) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE invocations SET success = ?, output = ?, error = ?, duration_ms = ?, ended_at = ? WHERE id = ?`,
		success, output, errMsg, duration.Milliseconds(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update invocation: %w", err)
	}
	return nil
}

// ListInvocations returns the most recent invocations, newest first,
// optionally limited to one tool.
func (s *Store) ListInvocations(ctx context.Context, identifier string, limit int) ([]models.Invocation, error) {
	query := `SELECT id, identifier, parameters, success, output, error, duration_ms, started_at, ended_at FROM invocations`
	var args []any

	if identifier != "" {
		query += ` WHERE identifier = ?`
		args = append(args, identifier)
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query invocations: %w", err)
	}
	defer rows.Close()

	var out []models.Invocation
	for rows.Next() {
		var inv models.Invocation
		var params, output, errMsg sql.NullString
		var endedAt sql.NullTime

		if err := rows.Scan(&inv.ID, &inv.Identifier, &params, &inv.Success, &output, &errMsg, &inv.DurationMS, &inv.StartedAt, &endedAt); err != nil {
			return nil, fmt.Errorf("scan invocation: %w", err)
		}
		inv.Parameters = params.String
		inv.Output = output.String
		inv.Error = errMsg.String
		if endedAt.Valid {
			inv.EndedAt = endedAt.Time
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

// --- Audit Operations ---

// WriteAudit writes an audit record.
func (s *Store) WriteAudit(ctx context.Context, action, inputsHash, outcome, identifier, details string) (*models.AuditEntry, error) {
	entry := &models.AuditEntry{
		ID:         uuid.New().String(),
		Action:     action,
		InputsHash: inputsHash,
		Outcome:    outcome,
		Identifier: identifier,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit (id, action, inputs_hash, outcome, identifier, details, timestamp) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Action, entry.InputsHash, entry.Outcome, entry.Identifier, entry.Details, entry.Timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert audit: %w", err)
	}
	return entry, nil
}

// ListAudit returns audit records for identifier, newest first.
func (s *Store) ListAudit(ctx context.Context, identifier string) ([]models.AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, action, inputs_hash, outcome, identifier, details, timestamp FROM audit WHERE identifier = ? ORDER BY timestamp DESC`,
		identifier,
	)
	if err != nil {
		return nil, fmt.Errorf("query audit: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var ident, details sql.NullString
		if err := rows.Scan(&e.ID, &e.Action, &e.InputsHash, &e.Outcome, &ident, &details, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Identifier = ident.String
		e.Details = details.String
		out = append(out, e)
	}
	return out, rows.Err()
}
