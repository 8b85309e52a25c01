package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/toolbench/internal/catalog"
)

// FilterBar edits the tree query. Every keystroke replaces the query.
type FilterBar struct {
	input   textinput.Model
	filter  *catalog.Filter
	suggest *Suggestions
}

// NewFilterBar creates an unfocused filter bar with an empty query.
func NewFilterBar() *FilterBar {
	ti := textinput.New()
	ti.Placeholder = "filter by name, description, server or tag"
	ti.Prompt = "/ "
	ti.CharLimit = 128
	return &FilterBar{input: ti, filter: catalog.NewFilter(), suggest: NewSuggestions()}
}

// Focus starts editing.
func (f *FilterBar) Focus() tea.Cmd {
	return f.input.Focus()
}

// Blur stops editing and keeps the query.
func (f *FilterBar) Blur() {
	f.input.Blur()
	f.suggest.Reset()
}

// Focused reports whether the bar is being edited.
func (f *FilterBar) Focused() bool {
	return f.input.Focused()
}

// Clear empties the query and stops editing.
func (f *FilterBar) Clear() {
	f.input.SetValue("")
	f.input.Blur()
	f.filter.Clear()
	f.suggest.Reset()
}

// SetCatalog refreshes the completion candidates.
func (f *FilterBar) SetCatalog(g *catalog.Grouped) {
	f.suggest.SetCatalog(g)
}

// Query returns the active query.
func (f *FilterBar) Query() string {
	return f.filter.Query()
}

// SetWidth sets the visible input width.
func (f *FilterBar) SetWidth(w int) {
	f.input.Width = w
}

// Update feeds msg to the input. changed reports whether the query moved.
func (f *FilterBar) Update(msg tea.Msg) (cmd tea.Cmd, changed bool) {
	before := f.filter.Query()
	f.input, cmd = f.input.Update(msg)
	f.filter.SetQuery(f.input.Value())
	changed = f.filter.Query() != before
	if changed {
		f.suggest.Update(f.filter.Query())
	}
	return cmd, changed
}

// Complete replaces the query with the highlighted suggestion. It reports
// whether the query changed.
func (f *FilterBar) Complete() bool {
	item := f.suggest.Selected()
	if item == nil {
		return false
	}
	before := f.filter.Query()
	f.input.SetValue(item.Text)
	f.input.CursorEnd()
	f.filter.SetQuery(item.Text)
	f.suggest.Reset()
	return f.filter.Query() != before
}

// NextSuggestion highlights the next completion.
func (f *FilterBar) NextSuggestion() {
	f.suggest.Next()
}

// PrevSuggestion highlights the previous completion.
func (f *FilterBar) PrevSuggestion() {
	f.suggest.Prev()
}

// Suggestions renders the completions, or "" when there are none.
func (f *FilterBar) Suggestions(width int) string {
	return f.suggest.Render(width)
}

// View renders the bar.
func (f *FilterBar) View() string {
	return f.input.View()
}
