package catalog

import (
	"strings"
	"unicode"

	"github.com/fentz26/toolbench/internal/models"
)

// DefaultNamespaceMarkers are identifier prefixes that carry no ownership
// information of their own ("mcp_github_issue" belongs to github).
var DefaultNamespaceMarkers = []string{"mcp"}

// DefaultTLDTokens are segments treated as top-level domains when they lead
// an identifier ("com_atlassian_search" belongs to atlassian.com).
var DefaultTLDTokens = []string{"com", "org", "net", "io", "dev", "ai", "app", "co"}

// Grouper resolves server names for a tool list and groups tools by them.
// The heuristics are cosmetic: they never fail and never drop a tool.
type Grouper struct {
	markers map[string]bool
	tlds    map[string]bool
}

// NewGrouper creates a Grouper. Nil slices fall back to the defaults; empty
// non-nil slices disable the corresponding heuristic.
func NewGrouper(markers, tlds []string) *Grouper {
	if markers == nil {
		markers = DefaultNamespaceMarkers
	}
	if tlds == nil {
		tlds = DefaultTLDTokens
	}
	return &Grouper{
		markers: toSet(markers),
		tlds:    toSet(tlds),
	}
}

// Group parses every tool and builds the server mapping. The output is
// rebuilt from scratch on every call and depends only on the input order.
func (g *Grouper) Group(tools []models.RawTool) *Grouped {
	strip := g.sharedMarker(tools)

	provisional := NewGrouped()
	for _, raw := range tools {
		server, name := Parse(raw.Identifier)
		if strip {
			server, name = Parse(name)
		}
		server, name = g.reverseDomain(server, name)

		provisional.add(models.ParsedTool{
			Name:           name,
			Server:         server,
			FullIdentifier: raw.Identifier,
			Description:    raw.Description,
			InputSchema:    append([]byte(nil), raw.InputSchema...),
			Tags:           append([]string(nil), raw.Tags...),
		})
	}

	out := NewGrouped()
	for _, server := range provisional.order {
		members := provisional.servers[server]
		if prefix, ok := sharedPrefix(members); ok {
			folded := server + "." + prefix
			for i := range members {
				members[i].Server = folded
				members[i].Name = strings.TrimPrefix(members[i].Name, prefix+Delimiter)
			}
		}
		for _, m := range members {
			out.add(m)
		}
	}
	return out
}

// sharedMarker reports whether every tool starts with the same marker
// segment and is still namespaced without it. Only then is the marker
// stripped, from all tools at once: one un-namespaced tool such as
// "mcp_search", or one tool from another namespace, keeps the marker as the
// server for the whole set.
func (g *Grouper) sharedMarker(tools []models.RawTool) bool {
	if len(tools) == 0 {
		return false
	}
	var marker string
	for i, raw := range tools {
		server, name := Parse(raw.Identifier)
		if !g.markers[server] {
			return false
		}
		if i == 0 {
			marker = server
		} else if server != marker {
			return false
		}
		head, _, ok := strings.Cut(name, Delimiter)
		if !ok || head == "" {
			return false
		}
	}
	return true
}

// reverseDomain turns a leading TLD segment into a domain name:
// server "com", name "atlassian_search" becomes "atlassian.com", "search".
func (g *Grouper) reverseDomain(server, name string) (string, string) {
	if !g.tlds[server] {
		return server, name
	}
	domain, rest, ok := strings.Cut(name, Delimiter)
	if !ok || rest == "" || !isAlphanumeric(domain) {
		return server, name
	}
	return domain + "." + server, rest
}

// sharedPrefix reports the first name segment when every member of a group
// of two or more carries it and still has a name left after removing it.
// A single tool is not enough evidence to fold anything.
func sharedPrefix(members []models.ParsedTool) (string, bool) {
	if len(members) < 2 {
		return "", false
	}
	var prefix string
	for i, m := range members {
		head, rest, ok := strings.Cut(m.Name, Delimiter)
		if !ok || head == "" || rest == "" {
			return "", false
		}
		if i == 0 {
			prefix = head
			continue
		}
		if head != prefix {
			return "", false
		}
	}
	return prefix, true
}

func isAlphanumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' {
			return false
		}
	}
	return true
}

func toSet(xs []string) map[string]bool {
	set := make(map[string]bool, len(xs))
	for _, x := range xs {
		set[strings.ToLower(strings.TrimSpace(x))] = true
	}
	return set
}
