package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/fentz26/toolbench/internal/audit"
	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/controlplane"
	"github.com/fentz26/toolbench/internal/invoke"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/fentz26/toolbench/internal/provider/factory"
	"github.com/fentz26/toolbench/internal/provider/httpapi"
	"github.com/fentz26/toolbench/internal/selection"
	"github.com/fentz26/toolbench/internal/store"
	"github.com/sirupsen/logrus"
)

// env holds the components one command invocation works with. The
// coordinator is created here once and handed to whichever surface runs.
type env struct {
	cfg       *catalog.Config
	log       logrus.FieldLogger
	store     *store.Store
	registry  *catalog.Registry
	selection *selection.Coordinator
	executor  *invoke.Executor
	service   *controlplane.Service
}

func loadConfig() (*catalog.Config, error) {
	if configPath == "" {
		return catalog.LoadConfigFromHome()
	}
	return catalog.LoadConfig(configPath)
}

// buildProviders returns the configured providers, or only the remote
// daemon when --api is set.
func buildProviders(cfg *catalog.Config) ([]provider.Provider, error) {
	if apiAddr != "" {
		addr := apiAddr
		if !strings.Contains(addr, "://") {
			addr = "http://" + addr
		}
		return []provider.Provider{httpapi.NewClient("remote", addr)}, nil
	}
	return factory.All(cfg, Version)
}

// openEnv loads configuration, opens the store and builds the registry.
// The registry is not refreshed.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	providers, err := buildProviders(cfg)
	if err != nil {
		return nil, err
	}

	s, err := store.New(cfg.DBPath)
	if err != nil {
		for _, p := range providers {
			p.Close()
		}
		return nil, fmt.Errorf("open store: %w", err)
	}

	reg := catalog.NewRegistry(cfg, providers, logger)
	exec := invoke.NewExecutor(reg,
		invoke.WithHistory(s),
		invoke.WithAudit(audit.NewWriter(s)),
		invoke.WithTimeout(cfg.InvokeTimeout),
		invoke.WithLogger(logger),
	)

	sel := selection.New(ctx, s, logger)

	return &env{
		cfg:       cfg,
		log:       logger,
		store:     s,
		registry:  reg,
		selection: sel,
		executor:  exec,
		service:   controlplane.NewService(reg, sel, exec, s, logger),
	}, nil
}

// refresh lists every provider. Partial failures are logged; the command
// continues with what was listed.
func (e *env) refresh(ctx context.Context) {
	if err := e.registry.Refresh(ctx); err != nil {
		e.log.WithError(err).Warn("some providers could not be listed")
	}
}

// Close waits for pending selection writes and releases everything.
func (e *env) Close() {
	e.selection.Flush()
	if err := e.registry.Close(); err != nil {
		e.log.WithError(err).Debug("closing providers")
	}
	if err := e.store.Close(); err != nil {
		e.log.WithError(err).Warn("closing store")
	}
}
