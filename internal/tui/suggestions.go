package tui

import (
	"sort"
	"strings"

	"github.com/fentz26/toolbench/internal/catalog"
)

// maxSuggestions bounds how many completions the filter bar shows.
const maxSuggestions = 5

// Suggestions completes the filter query with server names and tags from
// the current catalog.
type Suggestions struct {
	items       []SuggestionItem
	filtered    []SuggestionItem
	selectedIdx int
}

// SuggestionItem is a single completion.
type SuggestionItem struct {
	Text string
	Type string // "server" or "tag"
}

// NewSuggestions creates an empty suggestions list.
func NewSuggestions() *Suggestions {
	return &Suggestions{}
}

// SetCatalog replaces the candidates with the servers and tags of g.
func (s *Suggestions) SetCatalog(g *catalog.Grouped) {
	s.items = s.items[:0]
	tags := make(map[string]bool)
	for _, server := range g.Servers() {
		s.items = append(s.items, SuggestionItem{Text: server, Type: "server"})
		for _, tool := range g.Tools(server) {
			for _, tag := range tool.Tags {
				tags[tag] = true
			}
		}
	}
	tagList := make([]string, 0, len(tags))
	for tag := range tags {
		tagList = append(tagList, tag)
	}
	sort.Strings(tagList)
	for _, tag := range tagList {
		s.items = append(s.items, SuggestionItem{Text: tag, Type: "tag"})
	}
}

// Update recomputes the completions for query. An empty query, or one that
// already equals its only completion, shows nothing.
func (s *Suggestions) Update(query string) {
	s.filtered = nil
	s.selectedIdx = 0
	q := strings.ToLower(query)
	if q == "" {
		return
	}
	for _, item := range s.items {
		if strings.Contains(strings.ToLower(item.Text), q) {
			s.filtered = append(s.filtered, item)
		}
	}
	if len(s.filtered) == 1 && strings.EqualFold(s.filtered[0].Text, query) {
		s.filtered = nil
	}
}

// Reset hides all completions.
func (s *Suggestions) Reset() {
	s.filtered = nil
	s.selectedIdx = 0
}

// Next moves to the next suggestion
func (s *Suggestions) Next() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx = (s.selectedIdx + 1) % len(s.filtered)
}

// Prev moves to the previous suggestion
func (s *Suggestions) Prev() {
	if len(s.filtered) == 0 {
		return
	}
	s.selectedIdx--
	if s.selectedIdx < 0 {
		s.selectedIdx = len(s.filtered) - 1
	}
}

// Selected returns the highlighted suggestion, or nil.
func (s *Suggestions) Selected() *SuggestionItem {
	if len(s.filtered) == 0 {
		return nil
	}
	return &s.filtered[s.selectedIdx]
}

// IsVisible returns whether there is anything to show.
func (s *Suggestions) IsVisible() bool {
	return len(s.filtered) > 0
}

// Render renders the completions on one line, highlighting the selected one.
func (s *Suggestions) Render(width int) string {
	if !s.IsVisible() {
		return ""
	}

	parts := []string{helpStyle.Render("Tab:")}
	for i, item := range s.filtered {
		if i >= maxSuggestions {
			parts = append(parts, helpStyle.Render("…"))
			break
		}
		text := item.Text
		if item.Type == "tag" {
			text = "#" + text
		}
		if i == s.selectedIdx {
			parts = append(parts, cursorStyle.Render(text))
		} else {
			parts = append(parts, toolStyle.Render(text))
		}
	}
	return truncate(strings.Join(parts, " "), width)
}
