package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Provider types understood by the provider factory.
const (
	ProviderMCPStdio = "mcp-stdio"
	ProviderCatalog  = "catalog"
	ProviderExec     = "exec"
	ProviderHTTP     = "http"
)

// Config holds toolbench configuration.
type Config struct {
	// DBPath is the SQLite database holding selection state and history.
	DBPath string `yaml:"db_path"`
	// NamespaceMarkers are identifier prefixes stripped before grouping.
	NamespaceMarkers []string `yaml:"namespace_markers"`
	// TLDTokens are leading segments reversed into domain names.
	TLDTokens []string `yaml:"tld_tokens"`
	// Exclude lists glob patterns of tool identifiers to hide.
	Exclude []string `yaml:"exclude"`
	// RefreshInterval is how often the daemon re-lists providers.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// ListTimeout bounds a single refresh across all providers.
	ListTimeout time.Duration `yaml:"list_timeout"`
	// InvokeTimeout bounds a single tool invocation.
	InvokeTimeout time.Duration `yaml:"invoke_timeout"`
	// MaxConcurrentListings caps how many providers are listed at once.
	MaxConcurrentListings int `yaml:"max_concurrent_listings"`
	// Providers are the tool hosts to aggregate.
	Providers []ProviderConfig `yaml:"providers"`
}

// ProviderConfig describes one tool host.
type ProviderConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// mcp-stdio
	Command string   `yaml:"command,omitempty"`
	Args    []string `yaml:"args,omitempty"`
	Env     []string `yaml:"env,omitempty"`
	Prefix  string   `yaml:"prefix,omitempty"`

	// catalog
	Path string `yaml:"path,omitempty"`

	// http
	URL string `yaml:"url,omitempty"`

	// exec
	WorkDir string              `yaml:"work_dir,omitempty"`
	Allow   map[string][]string `yaml:"allow,omitempty"`
	Tools   []ExecTool          `yaml:"tools,omitempty"`
}

// ExecTool is a local command exposed as a tool.
type ExecTool struct {
	Identifier  string   `yaml:"identifier"`
	Description string   `yaml:"description"`
	Command     string   `yaml:"command"`
	Args        []string `yaml:"args"`
	Tags        []string `yaml:"tags,omitempty"`
}

// DefaultDir returns ~/.toolbench, or .toolbench when the home directory is
// unknown.
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".toolbench"
	}
	return filepath.Join(home, ".toolbench")
}

// DefaultConfigPath returns the location LoadConfigFromHome reads.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDir(), "config.yaml")
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() *Config {
	return &Config{
		DBPath:                filepath.Join(DefaultDir(), "toolbench.db"),
		NamespaceMarkers:      append([]string(nil), DefaultNamespaceMarkers...),
		TLDTokens:             append([]string(nil), DefaultTLDTokens...),
		Exclude:               []string{},
		RefreshInterval:       30 * time.Second,
		ListTimeout:           15 * time.Second,
		InvokeTimeout:         60 * time.Second,
		MaxConcurrentListings: 4,
		Providers:             []ProviderConfig{},
	}
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	cfg.DBPath = expandHome(cfg.DBPath)
	for i := range cfg.Providers {
		cfg.Providers[i].Path = expandHome(cfg.Providers[i].Path)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadConfigFromHome loads configuration from ~/.toolbench/config.yaml.
func LoadConfigFromHome() (*Config, error) {
	return LoadConfig(DefaultConfigPath())
}

// SaveConfig saves configuration to a YAML file, creating parent directories if needed.
func SaveConfig(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.MaxConcurrentListings < 1 {
		return fmt.Errorf("max_concurrent_listings must be at least 1")
	}
	if c.ListTimeout <= 0 {
		return fmt.Errorf("list_timeout must be positive")
	}
	if c.InvokeTimeout <= 0 {
		return fmt.Errorf("invoke_timeout must be positive")
	}
	for _, pattern := range c.Exclude {
		if !doublestar.ValidatePattern(pattern) {
			return fmt.Errorf("invalid exclude pattern %q", pattern)
		}
	}

	seen := make(map[string]bool, len(c.Providers))
	for i, p := range c.Providers {
		if p.Name == "" {
			return fmt.Errorf("providers[%d]: name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("providers[%d]: duplicate name %q", i, p.Name)
		}
		seen[p.Name] = true

		if err := p.validate(); err != nil {
			return fmt.Errorf("provider %q: %w", p.Name, err)
		}
	}
	return nil
}

func (p ProviderConfig) validate() error {
	switch p.Type {
	case ProviderMCPStdio:
		if p.Command == "" {
			return fmt.Errorf("command is required")
		}
	case ProviderCatalog:
		if p.Path == "" {
			return fmt.Errorf("path is required")
		}
	case ProviderHTTP:
		if p.URL == "" {
			return fmt.Errorf("url is required")
		}
	case ProviderExec:
		for _, t := range p.Tools {
			if t.Identifier == "" || t.Command == "" {
				return fmt.Errorf("exec tools need identifier and command")
			}
		}
	default:
		return fmt.Errorf("invalid type %q, must be: %s, %s, %s or %s",
			p.Type, ProviderMCPStdio, ProviderCatalog, ProviderExec, ProviderHTTP)
	}
	return nil
}

// Provider returns the named provider configuration.
func (c *Config) Provider(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
