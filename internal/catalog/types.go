package catalog

import "github.com/fentz26/toolbench/internal/models"

// Grouped maps server names to their tools. Servers keep the order in which
// they first appeared in the source list and tools keep source order.
// A Grouped is built once by the Grouper and treated as read-only after.
type Grouped struct {
	order   []string
	servers map[string][]models.ParsedTool
}

// NewGrouped returns an empty mapping.
func NewGrouped() *Grouped {
	return &Grouped{servers: make(map[string][]models.ParsedTool)}
}

func (g *Grouped) add(tool models.ParsedTool) {
	if _, ok := g.servers[tool.Server]; !ok {
		g.order = append(g.order, tool.Server)
	}
	g.servers[tool.Server] = append(g.servers[tool.Server], tool)
}

// Servers returns server names in insertion order.
func (g *Grouped) Servers() []string {
	if g == nil {
		return nil
	}
	return append([]string(nil), g.order...)
}

// Tools returns the tools grouped under server, in source order.
func (g *Grouped) Tools(server string) []models.ParsedTool {
	if g == nil {
		return nil
	}
	return append([]models.ParsedTool(nil), g.servers[server]...)
}

// Len returns the number of servers.
func (g *Grouped) Len() int {
	if g == nil {
		return 0
	}
	return len(g.order)
}

// ToolCount returns the total number of tools across all servers.
func (g *Grouped) ToolCount() int {
	if g == nil {
		return 0
	}
	n := 0
	for _, tools := range g.servers {
		n += len(tools)
	}
	return n
}

// Find looks a tool up by its full identifier.
func (g *Grouped) Find(identifier string) (models.ParsedTool, bool) {
	if g == nil {
		return models.ParsedTool{}, false
	}
	for _, server := range g.order {
		for _, t := range g.servers[server] {
			if t.FullIdentifier == identifier {
				return t, true
			}
		}
	}
	return models.ParsedTool{}, false
}

// ServerView is one visible server node together with its visible tools.
type ServerView struct {
	Server string              `json:"server"`
	Tools  []models.ParsedTool `json:"tools"`
}
