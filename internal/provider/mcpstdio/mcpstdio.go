// Package mcpstdio exposes the tools of an MCP server as a provider.
package mcpstdio

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// Dialer opens a started MCP client.
type Dialer func(ctx context.Context) (*client.Client, error)

// StdioDialer spawns command and speaks MCP over its stdin/stdout.
func StdioDialer(command string, env, args []string) Dialer {
	return func(ctx context.Context) (*client.Client, error) {
		c, err := client.NewStdioMCPClient(command, env, args...)
		if err != nil {
			return nil, fmt.Errorf("start %s: %w", command, err)
		}
		return c, nil
	}
}

// Provider lazily connects to an MCP server and keeps the session open
// between calls. Identifiers are the server's tool names behind prefix.
type Provider struct {
	name    string
	prefix  string
	version string
	dial    Dialer

	mu     sync.Mutex
	client *client.Client
	closed bool
}

var _ provider.Provider = (*Provider)(nil)

// New creates a provider. An empty prefix defaults to "mcp_<name>".
func New(name, prefix, version string, dial Dialer) *Provider {
	if prefix == "" {
		prefix = "mcp_" + name
	}
	return &Provider{
		name:    name,
		prefix:  prefix,
		version: version,
		dial:    dial,
	}
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

func (p *Provider) session(ctx context.Context) (*client.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, provider.ErrClosed
	}
	if p.client != nil {
		return p.client, nil
	}

	c, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "toolbench", Version: p.version}
	if _, err := c.Initialize(ctx, req); err != nil {
		c.Close()
		return nil, fmt.Errorf("initialize %s: %w", p.name, err)
	}

	p.client = c
	return c, nil
}

// reset drops a broken session so the next call reconnects.
func (p *Provider) reset(c *client.Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == c {
		p.client.Close()
		p.client = nil
	}
}

// ListTools lists the server's tools.
func (p *Provider) ListTools(ctx context.Context) ([]models.RawTool, error) {
	c, err := p.session(ctx)
	if err != nil {
		return nil, err
	}

	res, err := c.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		p.reset(c)
		return nil, fmt.Errorf("list tools of %s: %w", p.name, err)
	}

	tools := make([]models.RawTool, 0, len(res.Tools))
	for _, t := range res.Tools {
		raw := models.RawTool{
			Identifier:  p.prefix + "_" + t.Name,
			Description: t.Description,
		}
		if len(t.RawInputSchema) > 0 {
			raw.InputSchema = append(json.RawMessage(nil), t.RawInputSchema...)
		} else if schema, err := json.Marshal(t.InputSchema); err == nil {
			raw.InputSchema = schema
		}
		tools = append(tools, raw)
	}
	return tools, nil
}

// Invoke calls the tool on the server. Tool-level errors reported by the
// server become Go errors carrying the server's text.
func (p *Provider) Invoke(ctx context.Context, identifier string, params map[string]any) (any, error) {
	name, ok := strings.CutPrefix(identifier, p.prefix+"_")
	if !ok || name == "" {
		return nil, fmt.Errorf("%w: %s", provider.ErrToolNotFound, identifier)
	}

	c, err := p.session(ctx)
	if err != nil {
		return nil, err
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = params

	res, err := c.CallTool(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("mcp call %q: %w", name, err)
	}

	text := contentText(res.Content)
	if res.IsError {
		return nil, fmt.Errorf("%s", text)
	}

	var structured any
	if json.Unmarshal([]byte(text), &structured) == nil {
		return structured, nil
	}
	return text, nil
}

// Close ends the MCP session and, for stdio, the server process.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	if p.client == nil {
		return nil
	}
	err := p.client.Close()
	p.client = nil
	return err
}

func contentText(blocks []mcp.Content) string {
	var parts []string
	for _, block := range blocks {
		switch c := block.(type) {
		case mcp.TextContent:
			parts = append(parts, c.Text)
		case *mcp.TextContent:
			parts = append(parts, c.Text)
		}
	}
	return strings.Join(parts, "\n")
}
