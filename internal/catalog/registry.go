package catalog

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
)

// ProviderStatus describes the outcome of the last listing of one provider.
type ProviderStatus struct {
	Name        string    `json:"name"`
	ToolCount   int       `json:"tool_count"`
	Error       string    `json:"error,omitempty"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// Registry aggregates the tools of several providers into one catalog.
// Every Refresh rebuilds the grouped snapshot from scratch.
type Registry struct {
	providers   []provider.Provider
	grouper     *Grouper
	exclude     []string
	listTimeout time.Duration
	concurrency int
	log         logrus.FieldLogger

	mu      sync.RWMutex
	lists   map[string][]models.RawTool // last good listing per provider
	status  map[string]ProviderStatus
	raw     []models.RawTool
	owners  map[string]provider.Provider
	grouped *Grouped
}

// NewRegistry creates a registry over providers, configured by cfg.
func NewRegistry(cfg *Config, providers []provider.Provider, log logrus.FieldLogger) *Registry {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	concurrency := cfg.MaxConcurrentListings
	if concurrency < 1 {
		concurrency = 1
	}
	return &Registry{
		providers:   providers,
		grouper:     NewGrouper(cfg.NamespaceMarkers, cfg.TLDTokens),
		exclude:     append([]string(nil), cfg.Exclude...),
		listTimeout: cfg.ListTimeout,
		concurrency: concurrency,
		log:         log.WithField("component", "registry"),
		lists:       make(map[string][]models.RawTool),
		status:      make(map[string]ProviderStatus),
		owners:      make(map[string]provider.Provider),
		grouped:     NewGrouped(),
	}
}

// Refresh lists every provider concurrently and rebuilds the catalog.
// A provider that fails keeps its previous tools; the failures are joined
// into the returned error.
func (r *Registry) Refresh(ctx context.Context) error {
	if r.listTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.listTimeout)
		defer cancel()
	}

	type listing struct {
		tools []models.RawTool
		err   error
		at    time.Time
	}
	results := make([]listing, len(r.providers))

	p := pool.New().WithMaxGoroutines(r.concurrency)
	for i, prov := range r.providers {
		p.Go(func() {
			tools, err := prov.ListTools(ctx)
			results[i] = listing{tools: tools, err: err, at: time.Now()}
		})
	}
	p.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for i, prov := range r.providers {
		res := results[i]
		st := ProviderStatus{Name: prov.Name(), RefreshedAt: res.at}
		if res.err != nil {
			r.log.WithError(res.err).WithField("provider", prov.Name()).Warn("listing tools failed")
			errs = append(errs, fmt.Errorf("provider %s: %w", prov.Name(), res.err))
			st.Error = res.err.Error()
		} else {
			r.lists[prov.Name()] = res.tools
		}
		st.ToolCount = len(r.lists[prov.Name()])
		r.status[prov.Name()] = st
	}

	r.rebuildLocked()
	r.log.WithFields(logrus.Fields{
		"servers": r.grouped.Len(),
		"tools":   r.grouped.ToolCount(),
	}).Debug("catalog refreshed")

	return errors.Join(errs...)
}

// rebuildLocked merges the per-provider listings in provider order.
// The first provider to advertise an identifier owns it.
func (r *Registry) rebuildLocked() {
	raw := make([]models.RawTool, 0, len(r.raw))
	owners := make(map[string]provider.Provider, len(r.owners))

	for _, prov := range r.providers {
		for _, t := range r.lists[prov.Name()] {
			if t.Identifier == "" || r.excluded(t.Identifier) {
				continue
			}
			if owner, dup := owners[t.Identifier]; dup {
				r.log.WithFields(logrus.Fields{
					"identifier": t.Identifier,
					"owner":      owner.Name(),
					"provider":   prov.Name(),
				}).Warn("duplicate tool identifier ignored")
				continue
			}
			owners[t.Identifier] = prov
			raw = append(raw, t)
		}
	}

	r.raw = raw
	r.owners = owners
	r.grouped = r.grouper.Group(raw)
}

func (r *Registry) excluded(identifier string) bool {
	for _, pattern := range r.exclude {
		if ok, err := doublestar.Match(pattern, identifier); err == nil && ok {
			return true
		}
	}
	return false
}

// Snapshot returns the current grouped catalog. It is never nil and must
// not be modified.
func (r *Registry) Snapshot() *Grouped {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.grouped
}

// RawTools returns the merged tool list in catalog order.
func (r *Registry) RawTools() []models.RawTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.RawTool(nil), r.raw...)
}

// ProviderFor returns the provider that owns identifier.
func (r *Registry) ProviderFor(identifier string) (provider.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.owners[identifier]
	return p, ok
}

// Status reports the last listing outcome of every provider, in
// configuration order.
func (r *Registry) Status() []ProviderStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ProviderStatus, 0, len(r.providers))
	for _, p := range r.providers {
		st, ok := r.status[p.Name()]
		if !ok {
			st = ProviderStatus{Name: p.Name()}
		}
		out = append(out, st)
	}
	return out
}

// Close closes every provider.
func (r *Registry) Close() error {
	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close %s: %w", p.Name(), err))
		}
	}
	return errors.Join(errs...)
}
