// Package invoke runs catalog tools and reports every outcome as a
// structured result.
package invoke

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/fentz26/toolbench/internal/audit"
	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/fentz26/toolbench/internal/schema"
	"github.com/sirupsen/logrus"
)

// Resolver finds the tool and the provider behind an identifier.
// *catalog.Registry satisfies it.
type Resolver interface {
	Snapshot() *catalog.Grouped
	ProviderFor(identifier string) (provider.Provider, bool)
}

// History records invocations. *store.Store satisfies it.
type History interface {
	CreateInvocation(ctx context.Context, identifier, parameters string) (*models.Invocation, error)
	FinishInvocation(ctx context.Context, id string, success bool, output, errMsg string, duration time.Duration) error
}

// Executor invokes tools through their owning provider.
type Executor struct {
	resolver Resolver
	history  History
	audit    *audit.Writer
	timeout  time.Duration
	log      logrus.FieldLogger
}

// Option configures an Executor.
type Option func(*Executor)

// WithHistory records every invocation in h.
func WithHistory(h History) Option {
	return func(e *Executor) { e.history = h }
}

// WithAudit writes an audit entry for every invocation.
func WithAudit(w *audit.Writer) Option {
	return func(e *Executor) { e.audit = w }
}

// WithTimeout bounds each invocation.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(e *Executor) { e.log = l }
}

// NewExecutor creates an executor resolving tools through r.
func NewExecutor(r Resolver, opts ...Option) *Executor {
	e := &Executor{resolver: r, log: logrus.StandardLogger()}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("component", "invoke")
	return e
}

// Invoke runs the tool. It never returns an error: unknown tools, missing
// parameters, provider failures and panics all come back as a result with
// Success false.
func (e *Executor) Invoke(ctx context.Context, identifier string, params map[string]any) models.InvokeResult {
	if params == nil {
		params = map[string]any{}
	}
	log := e.log.WithField("tool", identifier)
	start := time.Now()

	var rec *models.Invocation
	if e.history != nil {
		var err error
		rec, err = e.history.CreateInvocation(ctx, identifier, historyText(log, "parameters", params))
		if err != nil {
			log.WithError(err).Warn("recording invocation failed")
		}
	}

	data, err := e.run(ctx, identifier, params)
	result := models.InvokeResult{
		Success:       err == nil,
		Data:          data,
		ToolName:      identifier,
		ExecutionTime: time.Since(start),
	}
	if err != nil {
		result.Error = err.Error()
		log.WithError(err).WithField("duration", result.ExecutionTime).Info("tool invocation failed")
	} else {
		log.WithField("duration", result.ExecutionTime).Debug("tool invoked")
	}

	e.finish(ctx, rec, params, result)
	return result
}

func (e *Executor) run(ctx context.Context, identifier string, params map[string]any) (data any, err error) {
	tool, ok := e.resolver.Snapshot().Find(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrToolNotFound, identifier)
	}
	p, ok := e.resolver.ProviderFor(identifier)
	if !ok {
		return nil, fmt.Errorf("%w: %s", provider.ErrToolNotFound, identifier)
	}
	if err := schema.CheckRequired(tool.InputSchema, params); err != nil {
		return nil, err
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("tool %s panicked: %v", identifier, r)
		}
	}()

	data, err = p.Invoke(ctx, identifier, params)
	if err != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("tool %s timed out after %s: %w", identifier, e.timeout, err)
	}
	return data, err
}

func (e *Executor) finish(ctx context.Context, rec *models.Invocation, params map[string]any, res models.InvokeResult) {
	// History must land even when the caller's context was cancelled.
	ctx = context.WithoutCancel(ctx)

	if rec != nil {
		output := ""
		if res.Data != nil {
			output = historyText(e.log.WithField("tool", res.ToolName), "output", res.Data)
		}
		if err := e.history.FinishInvocation(ctx, rec.ID, res.Success, output, res.Error, res.ExecutionTime); err != nil {
			e.log.WithError(err).Warn("updating invocation failed")
		}
	}

	if e.audit != nil {
		outcome := audit.OutcomeSuccess
		if !res.Success {
			outcome = audit.OutcomeFailure
		}
		if _, err := e.audit.Record(ctx, audit.ActionInvoke, params, outcome, res.ToolName, res.Error); err != nil {
			e.log.WithError(err).Warn("writing audit entry failed")
		}
	}
}

// historyText encodes v for the history table. Values JSON cannot encode
// are stored as the encoding error so the row still says what went wrong.
func historyText(log logrus.FieldLogger, what string, v any) string {
	encoded, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Warnf("%s not encodable for history", what)
		return fmt.Sprintf("<unencodable %s: %v>", what, err)
	}
	return string(encoded)
}
