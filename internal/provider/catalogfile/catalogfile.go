// Package catalogfile serves tools declared in a static YAML, TOML or JSON
// file. Useful for documenting tools of hosts toolbench cannot reach and
// for demos: entries with a canned response can be invoked.
package catalogfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/provider"
	"gopkg.in/yaml.v3"
)

// File is the on-disk catalog layout.
type File struct {
	Tools []Entry `yaml:"tools" toml:"tools" json:"tools"`
}

// Entry is one catalog tool.
type Entry struct {
	Identifier  string         `yaml:"identifier" toml:"identifier" json:"identifier"`
	Description string         `yaml:"description" toml:"description" json:"description"`
	Tags        []string       `yaml:"tags" toml:"tags" json:"tags"`
	InputSchema map[string]any `yaml:"input_schema" toml:"input_schema" json:"input_schema"`
	// Response is returned verbatim by Invoke. Entries without one are
	// listed but not invocable.
	Response any `yaml:"response" toml:"response" json:"response"`
}

// Provider reads its catalog from disk on every listing so edits show up on
// the next refresh.
type Provider struct {
	name string
	path string
}

var _ provider.Provider = (*Provider)(nil)

// New creates a catalog provider for path.
func New(name, path string) *Provider {
	return &Provider{name: name, path: path}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// ListTools loads the catalog and returns its tools in file order.
func (p *Provider) ListTools(ctx context.Context) ([]models.RawTool, error) {
	f, err := Load(p.path)
	if err != nil {
		return nil, err
	}

	tools := make([]models.RawTool, 0, len(f.Tools))
	for _, e := range f.Tools {
		raw := models.RawTool{
			Identifier:  e.Identifier,
			Description: e.Description,
			Tags:        e.Tags,
		}
		if e.InputSchema != nil {
			schema, err := json.Marshal(e.InputSchema)
			if err != nil {
				return nil, fmt.Errorf("encode schema of %s: %w", e.Identifier, err)
			}
			raw.InputSchema = schema
		}
		tools = append(tools, raw)
	}
	return tools, nil
}

// Invoke returns the canned response of identifier.
func (p *Provider) Invoke(ctx context.Context, identifier string, params map[string]any) (any, error) {
	f, err := Load(p.path)
	if err != nil {
		return nil, err
	}
	for _, e := range f.Tools {
		if e.Identifier != identifier {
			continue
		}
		if e.Response == nil {
			return nil, fmt.Errorf("%w: %s has no response in %s", provider.ErrNotInvocable, identifier, p.path)
		}
		return e.Response, nil
	}
	return nil, fmt.Errorf("%w: %s", provider.ErrToolNotFound, identifier)
}

// Close is a no-op.
func (p *Provider) Close() error {
	return nil
}

// Load reads a catalog file. The format follows the file extension.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	var f File
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &f)
	case ".toml":
		err = toml.Unmarshal(data, &f)
	case ".json":
		err = json.Unmarshal(data, &f)
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return &f, nil
}
