package catalog

import (
	"sort"
	"strings"

	"github.com/fentz26/toolbench/internal/models"
)

// Matches reports whether tool satisfies query. An empty query matches
// every tool. Otherwise the lower-cased query is searched as a plain
// substring of the name, description, server, full identifier and the
// space-joined tag list; any hit is a match.
func Matches(tool models.ParsedTool, query string) bool {
	if query == "" {
		return true
	}
	q := strings.ToLower(query)

	fields := []string{tool.Name, tool.Description, tool.Server, tool.FullIdentifier}
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), q) {
			return true
		}
	}

	if len(tool.Tags) > 0 {
		tags := strings.ToLower(strings.Join(tool.Tags, " "))
		if strings.Contains(tags, q) {
			return true
		}
	}
	return false
}

// VisibleServers returns the servers with at least one matching tool,
// sorted ascending. The order deliberately ignores insertion order so the
// tree stays stable while the catalog is refreshed.
func VisibleServers(g *Grouped, query string) []string {
	views := Apply(g, query)
	servers := make([]string, len(views))
	for i, v := range views {
		servers[i] = v.Server
	}
	return servers
}

// Apply returns the visible servers, sorted ascending, each with its
// matching tools in their original order.
func Apply(g *Grouped, query string) []ServerView {
	if g == nil {
		return nil
	}

	views := make([]ServerView, 0, g.Len())
	for _, server := range g.order {
		var tools []models.ParsedTool
		for _, t := range g.servers[server] {
			if Matches(t, query) {
				tools = append(tools, t)
			}
		}
		if len(tools) > 0 {
			views = append(views, ServerView{Server: server, Tools: tools})
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].Server < views[j].Server
	})
	return views
}

// Expanded reports whether server nodes should render expanded. Nodes open
// while a query is active so matches are visible without extra clicks.
func Expanded(query string) bool {
	return query != ""
}

// Filter holds the free-text query of one presentation surface.
type Filter struct {
	query string
}

// NewFilter creates a Filter showing everything.
func NewFilter() *Filter {
	return &Filter{}
}

// SetQuery replaces the current query.
func (f *Filter) SetQuery(query string) {
	f.query = query
}

// Query returns the current query.
func (f *Filter) Query() string {
	return f.query
}

// Clear resets the filter to show everything.
func (f *Filter) Clear() {
	f.query = ""
}

// Active reports whether a non-empty query is set.
func (f *Filter) Active() bool {
	return f.query != ""
}

// Apply filters g with the current query.
func (f *Filter) Apply(g *Grouped) []ServerView {
	return Apply(g, f.query)
}

// VisibleServers lists the servers visible under the current query.
func (f *Filter) VisibleServers(g *Grouped) []string {
	return VisibleServers(g, f.query)
}
