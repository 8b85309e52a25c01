// Package agents detects AI agents installed on this machine and the MCP
// servers they are configured with, so their tools can be browsed here.
package agents

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/fentz26/toolbench/internal/catalog"
)

// Agent is an MCP client whose configuration file lists servers.
type Agent struct {
	ID   string
	Name string
	// Paths are candidate config files relative to the home directory. The
	// first one that exists is read.
	Paths []string
	// Key is the top-level JSON object holding the servers.
	Key string
}

// KnownAgents are the clients Scan looks for.
var KnownAgents = []Agent{
	{
		ID:   "claude-desktop",
		Name: "Claude Desktop",
		Paths: []string{
			".config/Claude/claude_desktop_config.json",
			"Library/Application Support/Claude/claude_desktop_config.json",
			"AppData/Roaming/Claude/claude_desktop_config.json",
		},
		Key: "mcpServers",
	},
	{ID: "claude-cli", Name: "Claude CLI", Paths: []string{".claude.json"}, Key: "mcpServers"},
	{ID: "cursor", Name: "Cursor", Paths: []string{".cursor/mcp.json"}, Key: "mcpServers"},
	{ID: "windsurf", Name: "Windsurf", Paths: []string{".codeium/windsurf/mcp_config.json"}, Key: "mcpServers"},
	{ID: "gemini", Name: "Gemini CLI", Paths: []string{".gemini/settings.json"}, Key: "mcpServers"},
}

// Server is one MCP server found in an agent's configuration.
type Server struct {
	Name    string            `json:"name"`
	Agent   string            `json:"agent"`
	Source  string            `json:"source"`
	Command string            `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
	URL     string            `json:"url,omitempty"`
}

// Stdio reports whether the server is started as a local process.
func (s Server) Stdio() bool {
	return s.Command != ""
}

// ProviderConfig converts s into an mcp-stdio provider. Remote servers are
// not supported and yield false.
func (s Server) ProviderConfig() (catalog.ProviderConfig, bool) {
	if !s.Stdio() {
		return catalog.ProviderConfig{}, false
	}
	env := make([]string, 0, len(s.Env))
	for k, v := range s.Env {
		env = append(env, k+"="+v)
	}
	sort.Strings(env)
	return catalog.ProviderConfig{
		Name:    s.Name,
		Type:    catalog.ProviderMCPStdio,
		Command: s.Command,
		Args:    append([]string(nil), s.Args...),
		Env:     env,
	}, true
}

type serverEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
	URL     string            `json:"url"`
}

// Detector scans for installed agents under a home directory.
type Detector struct {
	home   string
	agents []Agent
}

// NewDetector creates a detector. An empty home means the user's home
// directory.
func NewDetector(home string) *Detector {
	if home == "" {
		home, _ = os.UserHomeDir()
	}
	return &Detector{home: home, agents: KnownAgents}
}

// Scan returns the servers of every detected agent, in agent order and by
// name within an agent. Agents that are not installed are skipped; config
// files that cannot be read are reported in the returned error and do not
// stop the scan.
func (d *Detector) Scan() ([]Server, error) {
	var servers []Server
	var errs []error

	for _, agent := range d.agents {
		path, ok := d.locate(agent)
		if !ok {
			continue
		}
		found, err := readServers(agent, path)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", agent.Name, err))
			continue
		}
		servers = append(servers, found...)
	}
	return servers, errors.Join(errs...)
}

func (d *Detector) locate(agent Agent) (string, bool) {
	for _, rel := range agent.Paths {
		p := filepath.Join(d.home, filepath.FromSlash(rel))
		if fileExists(p) {
			return p, true
		}
	}
	return "", false
}

func readServers(agent Agent, path string) ([]Server, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	raw, ok := doc[agent.Key]
	if !ok {
		return nil, nil
	}

	var entries map[string]serverEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse %s in %s: %w", agent.Key, path, err)
	}

	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	sort.Strings(names)

	servers := make([]Server, 0, len(names))
	for _, name := range names {
		e := entries[name]
		servers = append(servers, Server{
			Name:    name,
			Agent:   agent.ID,
			Source:  path,
			Command: e.Command,
			Args:    e.Args,
			Env:     e.Env,
			URL:     e.URL,
		})
	}
	return servers, nil
}

// Merge adds the stdio servers to cfg as providers. Servers whose name is
// already a provider, or was added earlier in the list, are skipped. It
// returns the names it added.
func Merge(cfg *catalog.Config, servers []Server) []string {
	var added []string
	for _, s := range servers {
		pc, ok := s.ProviderConfig()
		if !ok {
			continue
		}
		if _, exists := cfg.Provider(pc.Name); exists {
			continue
		}
		cfg.Providers = append(cfg.Providers, pc)
		added = append(added, pc.Name)
	}
	return added
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
