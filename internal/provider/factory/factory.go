// Package factory builds providers from configuration.
package factory

import (
	"fmt"

	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/fentz26/toolbench/internal/provider/catalogfile"
	"github.com/fentz26/toolbench/internal/provider/httpapi"
	"github.com/fentz26/toolbench/internal/provider/localexec"
	"github.com/fentz26/toolbench/internal/provider/mcpstdio"
)

// New builds the provider described by cfg. version is reported to MCP
// servers as the client version.
func New(cfg catalog.ProviderConfig, version string) (provider.Provider, error) {
	switch cfg.Type {
	case catalog.ProviderMCPStdio:
		return mcpstdio.New(cfg.Name, cfg.Prefix, version, mcpstdio.StdioDialer(cfg.Command, cfg.Env, cfg.Args)), nil
	case catalog.ProviderCatalog:
		return catalogfile.New(cfg.Name, cfg.Path), nil
	case catalog.ProviderExec:
		return localexec.New(cfg), nil
	case catalog.ProviderHTTP:
		return httpapi.NewClient(cfg.Name, cfg.URL), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

// All builds every configured provider, in configuration order.
func All(cfg *catalog.Config, version string) ([]provider.Provider, error) {
	out := make([]provider.Provider, 0, len(cfg.Providers))
	for _, pc := range cfg.Providers {
		p, err := New(pc, version)
		if err != nil {
			for _, built := range out {
				built.Close()
			}
			return nil, fmt.Errorf("provider %q: %w", pc.Name, err)
		}
		out = append(out, p)
	}
	return out, nil
}
