package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/schema"
)

// Detail shows the selected tool. It follows the selection through OnSelect
// and renders the description and parameters as markdown.
type Detail struct {
	tool     *models.ParsedTool
	width    int
	renderer *glamour.TermRenderer
	rendered string
}

// NewDetail creates an empty detail view.
func NewDetail() *Detail {
	return &Detail{}
}

// OnSelect shows tool, or the empty placeholder when tool is nil.
func (d *Detail) OnSelect(tool *models.ParsedTool) {
	d.tool = tool
	d.render()
}

// Tool returns the tool on display.
func (d *Detail) Tool() *models.ParsedTool {
	return d.tool
}

// SetWidth changes the wrap width. Dark style is fixed because bubbletea
// owns the terminal and background detection would race with it.
func (d *Detail) SetWidth(width int) {
	if width == d.width && d.renderer != nil {
		return
	}
	d.width = width
	r, err := glamour.NewTermRenderer(
		glamour.WithStandardStyle("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		d.renderer = nil
	} else {
		d.renderer = r
	}
	d.render()
}

func (d *Detail) render() {
	md := d.Markdown()
	if d.renderer == nil {
		d.rendered = md
		return
	}
	out, err := d.renderer.Render(md)
	if err != nil {
		d.rendered = md
		return
	}
	d.rendered = strings.TrimSpace(out)
}

// Markdown returns the markdown source of the view.
func (d *Detail) Markdown() string {
	if d.tool == nil {
		return "_No tool selected._"
	}
	t := d.tool

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", t.Name)
	fmt.Fprintf(&b, "`%s` on **%s**\n\n", t.FullIdentifier, t.Server)
	if len(t.Tags) > 0 {
		fmt.Fprintf(&b, "Tags: %s\n\n", strings.Join(t.Tags, ", "))
	}
	if t.Description != "" {
		b.WriteString(t.Description)
		b.WriteString("\n\n")
	}

	params, err := schema.Params(t.InputSchema)
	switch {
	case err != nil:
		fmt.Fprintf(&b, "## Parameters\n\nInput schema could not be read: %v\n", err)
	case len(params) == 0:
		b.WriteString("## Parameters\n\nNone.\n")
	default:
		b.WriteString("## Parameters\n\n| Name | Type | Required | Description |\n|---|---|---|---|\n")
		for _, p := range params {
			req := ""
			if p.Required {
				req = "yes"
			}
			desc := strings.ReplaceAll(p.Description, "|", `\|`)
			desc = strings.ReplaceAll(desc, "\n", " ")
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", p.Name, p.Type, req, desc)
		}
	}
	return b.String()
}

// View returns the rendered view.
func (d *Detail) View() string {
	if d.rendered == "" {
		d.render()
	}
	return d.rendered
}
