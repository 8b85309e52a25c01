// Package controlplane provides the HTTP API and service layer for the
// toolbench daemon.
package controlplane

import (
	"context"
	"fmt"
	"time"

	"github.com/fentz26/toolbench/internal/audit"
	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/invoke"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/schema"
	"github.com/fentz26/toolbench/internal/selection"
	"github.com/fentz26/toolbench/internal/store"
	"github.com/sirupsen/logrus"
)

// Version is reported by the health endpoint.
var Version = "dev"

// ToolDetail is a tool together with its decoded parameters.
type ToolDetail struct {
	Tool   models.ParsedTool `json:"tool"`
	Params []schema.Param    `json:"params"`
}

// Service provides the control plane business logic.
type Service struct {
	registry  *catalog.Registry
	selection *selection.Coordinator
	executor  *invoke.Executor
	store     *store.Store
	audit     *audit.Writer
	log       logrus.FieldLogger
}

// NewService creates a new control plane service.
func NewService(reg *catalog.Registry, sel *selection.Coordinator, exec *invoke.Executor, s *store.Store, log logrus.FieldLogger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	svc := &Service{
		registry:  reg,
		selection: sel,
		executor:  exec,
		store:     s,
		log:       log.WithField("component", "controlplane"),
	}
	if s != nil {
		svc.audit = audit.NewWriter(s)
	}
	return svc
}

// --- Catalog Operations ---

// Tools returns the visible servers for query with their matching tools.
func (s *Service) Tools(query string) []catalog.ServerView {
	return catalog.Apply(s.registry.Snapshot(), query)
}

// RawTools returns the merged, ungrouped tool list.
func (s *Service) RawTools() []models.RawTool {
	return s.registry.RawTools()
}

// Servers returns the server names visible for query, sorted.
func (s *Service) Servers(query string) []string {
	return catalog.VisibleServers(s.registry.Snapshot(), query)
}

// Providers reports the last listing outcome of every provider.
func (s *Service) Providers() []catalog.ProviderStatus {
	return s.registry.Status()
}

// Refresh re-lists every provider.
func (s *Service) Refresh(ctx context.Context) error {
	return s.registry.Refresh(ctx)
}

// Tool returns the tool with the given identifier and its parameters.
func (s *Service) Tool(identifier string) (*ToolDetail, error) {
	tool, ok := s.registry.Snapshot().Find(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, identifier)
	}
	params, err := schema.Params(tool.InputSchema)
	if err != nil {
		s.log.WithError(err).WithField("tool", identifier).Debug("input schema not readable")
	}
	if params == nil {
		params = []schema.Param{}
	}
	return &ToolDetail{Tool: tool, Params: params}, nil
}

// Invoke runs a tool. Unknown tools are reported as ErrToolNotFound so the
// API can answer 404; every other failure is inside the result.
func (s *Service) Invoke(ctx context.Context, identifier string, params map[string]any) (models.InvokeResult, error) {
	if _, ok := s.registry.Snapshot().Find(identifier); !ok {
		return models.InvokeResult{}, fmt.Errorf("%w: %s", ErrToolNotFound, identifier)
	}
	return s.executor.Invoke(ctx, identifier, params), nil
}

// --- Selection Operations ---

// Selected returns the selected tool, or nil.
func (s *Service) Selected() *models.ParsedTool {
	return s.selection.Selected()
}

// Select selects the tool with the given identifier.
func (s *Service) Select(ctx context.Context, identifier string) (*models.ParsedTool, error) {
	tool, ok := s.registry.Snapshot().Find(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, identifier)
	}
	s.selection.Select(&tool)
	s.record(ctx, audit.ActionSelect, map[string]string{"identifier": identifier}, identifier)
	return &tool, nil
}

// ClearSelection clears the selection.
func (s *Service) ClearSelection(ctx context.Context) {
	s.selection.Clear()
	s.record(ctx, audit.ActionClear, nil, "")
}

func (s *Service) record(ctx context.Context, action string, inputs any, identifier string) {
	if s.audit == nil {
		return
	}
	if _, err := s.audit.Record(ctx, action, inputs, audit.OutcomeSuccess, identifier, ""); err != nil {
		s.log.WithError(err).Warn("writing audit entry failed")
	}
}

// --- History Operations ---

// History returns recent invocations, optionally of one tool.
func (s *Service) History(ctx context.Context, identifier string, limit int) ([]models.Invocation, error) {
	if s.store == nil {
		return []models.Invocation{}, nil
	}
	return s.store.ListInvocations(ctx, identifier, limit)
}

// --- Health ---

// HealthResponse is returned by the health endpoint.
type HealthResponse struct {
	OK      bool   `json:"ok"`
	DB      string `json:"db"`
	Version string `json:"version"`
	Time    string `json:"time"`
	Servers int    `json:"servers"`
	Tools   int    `json:"tools"`
}

// Health checks the database and summarizes the catalog.
func (s *Service) Health(ctx context.Context) HealthResponse {
	snap := s.registry.Snapshot()
	resp := HealthResponse{
		OK:      true,
		DB:      "ok",
		Version: Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
		Servers: snap.Len(),
		Tools:   snap.ToolCount(),
	}
	if s.store == nil {
		resp.DB = "disabled"
		return resp
	}
	if err := s.store.Ping(ctx); err != nil {
		resp.OK = false
		resp.DB = err.Error()
	}
	return resp
}
