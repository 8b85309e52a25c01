// Package provider defines the tool host interface for toolbench.
package provider

import (
	"context"
	"errors"

	"github.com/fentz26/toolbench/internal/models"
)

// Sentinel errors shared by provider implementations.
var (
	ErrToolNotFound = errors.New("tool not found")
	ErrNotInvocable = errors.New("tool is not invocable")
	ErrClosed       = errors.New("provider closed")
)

// Provider is a host that advertises tools and runs them.
type Provider interface {
	// Name returns the provider identifier from configuration.
	Name() string

	// ListTools returns every tool the host currently advertises. The list
	// may be empty and is not assumed to be sorted.
	ListTools(ctx context.Context) ([]models.RawTool, error)

	// Invoke runs the tool with the given full identifier. Tool-level
	// failures are returned as errors; the caller converts them into a
	// structured result.
	Invoke(ctx context.Context, identifier string, params map[string]any) (any, error)

	// Close releases any connection or process held by the provider.
	Close() error
}
