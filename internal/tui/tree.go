package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/models"
)

// row is one line of the tree: a server node, or a tool under it.
type row struct {
	server string
	tool   *models.ParsedTool
}

func (r row) key() string {
	if r.tool != nil {
		return "t:" + r.tool.FullIdentifier
	}
	return "s:" + r.server
}

// Tree is the server/tool tree. Server nodes follow the filter's expansion
// default until the user toggles them; a new query drops those toggles.
type Tree struct {
	views   []catalog.ServerView
	query   string
	toggled map[string]bool
	rows    []row
	cursor  int
}

// NewTree creates an empty tree.
func NewTree() *Tree {
	return &Tree{toggled: make(map[string]bool)}
}

// SetCatalog rebuilds the tree from g under query. The cursor stays on the
// same node when it is still visible.
func (t *Tree) SetCatalog(g *catalog.Grouped, query string) {
	if query != t.query {
		t.toggled = make(map[string]bool)
		t.query = query
	}
	t.views = catalog.Apply(g, query)
	t.rebuild()
}

func (t *Tree) expanded(server string) bool {
	if open, ok := t.toggled[server]; ok {
		return open
	}
	return catalog.Expanded(t.query)
}

func (t *Tree) rebuild() {
	var current string
	if r, ok := t.current(); ok {
		current = r.key()
	}

	t.rows = t.rows[:0]
	for _, v := range t.views {
		t.rows = append(t.rows, row{server: v.Server})
		if !t.expanded(v.Server) {
			continue
		}
		for i := range v.Tools {
			t.rows = append(t.rows, row{server: v.Server, tool: &v.Tools[i]})
		}
	}

	if current != "" {
		for i, r := range t.rows {
			if r.key() == current {
				t.cursor = i
				return
			}
		}
	}
	t.clamp()
}

func (t *Tree) clamp() {
	if t.cursor >= len(t.rows) {
		t.cursor = len(t.rows) - 1
	}
	if t.cursor < 0 {
		t.cursor = 0
	}
}

func (t *Tree) current() (row, bool) {
	if t.cursor < 0 || t.cursor >= len(t.rows) {
		return row{}, false
	}
	return t.rows[t.cursor], true
}

// Up moves the cursor one row up.
func (t *Tree) Up() {
	if t.cursor > 0 {
		t.cursor--
	}
}

// Down moves the cursor one row down.
func (t *Tree) Down() {
	if t.cursor < len(t.rows)-1 {
		t.cursor++
	}
}

// Toggle opens or closes server.
func (t *Tree) Toggle(server string) {
	t.toggled[server] = !t.expanded(server)
	t.rebuild()
}

// CurrentTool returns the tool under the cursor, if the cursor is on one.
func (t *Tree) CurrentTool() (*models.ParsedTool, bool) {
	r, ok := t.current()
	if !ok || r.tool == nil {
		return nil, false
	}
	return r.tool, true
}

// CurrentServer returns the server of the row under the cursor.
func (t *Tree) CurrentServer() (string, bool) {
	r, ok := t.current()
	if !ok {
		return "", false
	}
	return r.server, true
}

// Reveal expands the server holding identifier and moves the cursor onto
// the tool. It reports whether the tool is visible.
func (t *Tree) Reveal(identifier string) bool {
	for _, v := range t.views {
		for _, tool := range v.Tools {
			if tool.FullIdentifier != identifier {
				continue
			}
			if !t.expanded(v.Server) {
				t.toggled[v.Server] = true
			}
			t.rebuild()
			for i, r := range t.rows {
				if r.tool != nil && r.tool.FullIdentifier == identifier {
					t.cursor = i
				}
			}
			return true
		}
	}
	return false
}

// Servers returns the visible server names.
func (t *Tree) Servers() []string {
	out := make([]string, len(t.views))
	for i, v := range t.views {
		out[i] = v.Server
	}
	return out
}

// Len returns the number of rendered rows.
func (t *Tree) Len() int {
	return len(t.rows)
}

// View renders at most height rows around the cursor. selected marks the
// currently selected tool.
func (t *Tree) View(width, height int, selected string) string {
	if len(t.rows) == 0 {
		if t.query != "" {
			return helpStyle.Render(fmt.Sprintf("No tools match %q.", t.query))
		}
		return helpStyle.Render("No tools loaded. Press r to refresh.")
	}
	if height < 1 {
		height = 1
	}

	start := 0
	if t.cursor >= height {
		start = t.cursor - height + 1
	}
	end := min(start+height, len(t.rows))

	counts := make(map[string]int, len(t.views))
	for _, v := range t.views {
		counts[v.Server] = len(v.Tools)
	}

	var lines []string
	for i := start; i < end; i++ {
		r := t.rows[i]
		var line string
		if r.tool == nil {
			arrow := "▸"
			if t.expanded(r.server) {
				arrow = "▾"
			}
			line = fmt.Sprintf("%s %s %s", arrow, serverStyle.Render(r.server), countStyle.Render(fmt.Sprintf("(%d)", counts[r.server])))
			if i == t.cursor {
				line = cursorStyle.Render(fmt.Sprintf("%s %s (%d)", arrow, r.server, counts[r.server]))
			}
		} else {
			mark := "  "
			if r.tool.FullIdentifier == selected {
				mark = selectedMarkStyle.Render("● ")
			}
			if i == t.cursor {
				line = "   " + mark + cursorStyle.Render(r.tool.Name)
			} else {
				line = "   " + mark + toolStyle.Render(r.tool.Name)
			}
		}
		lines = append(lines, truncate(line, width))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return lipgloss.NewStyle().MaxWidth(width).Render(s)
}
