// Package tui provides the interactive terminal UI for toolbench.
package tui

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/output"
	"github.com/fentz26/toolbench/internal/schema"
	"github.com/fentz26/toolbench/internal/selection"
	"github.com/sirupsen/logrus"
)

// Catalog is the tool source behind the tree.
type Catalog interface {
	Snapshot() *catalog.Grouped
	Refresh(ctx context.Context) error
}

// Invoker runs tools. Failures come back inside the result.
type Invoker interface {
	Invoke(ctx context.Context, identifier string, params map[string]any) models.InvokeResult
}

type mode int

const (
	modeBrowse mode = iota
	modeFilter
	modeParams
)

type (
	refreshedMsg struct {
		err       error
		scheduled bool
	}
	invokedMsg struct {
		result models.InvokeResult
	}
	tickMsg time.Time
)

// Option configures an App.
type Option func(*App)

// WithRefreshInterval refreshes the catalog every d. Zero disables it.
func WithRefreshInterval(d time.Duration) Option {
	return func(a *App) { a.refreshInterval = d }
}

// WithLogger sets the logger. Logs must not go to the terminal the UI owns.
func WithLogger(l logrus.FieldLogger) Option {
	return func(a *App) { a.log = l }
}

// WithTitle sets the header title.
func WithTitle(title string) Option {
	return func(a *App) { a.title = title }
}

// App is the main TUI application model.
type App struct {
	catalog Catalog
	invoker Invoker
	sel     *selection.Coordinator
	log     logrus.FieldLogger

	tree    *Tree
	detail  *Detail
	filter  *FilterBar
	results *output.Log
	output  viewport.Model
	params  textinput.Model

	mode            mode
	paramsTarget    *models.ParsedTool
	selected        string
	revealed        bool
	loading         bool
	running         int
	message         string
	messageIsError  bool
	title           string
	refreshInterval time.Duration
	width           int
	height          int
	unsubscribe     func()
}

// New creates the TUI. The app subscribes to sel; call Close when done.
func New(cat Catalog, inv Invoker, sel *selection.Coordinator, opts ...Option) *App {
	ti := textinput.New()
	ti.Prompt = "params> "
	ti.CharLimit = 4096
	ti.Width = 80

	a := &App{
		catalog: cat,
		invoker: inv,
		sel:     sel,
		log:     logrus.StandardLogger(),
		tree:    NewTree(),
		detail:  NewDetail(),
		filter:  NewFilterBar(),
		results: output.NewLog(output.DefaultCapacity),
		output:  viewport.New(80, 10),
		params:  ti,
		title:   "toolbench",
		loading: true,
	}
	for _, opt := range opts {
		opt(a)
	}

	// Handlers run on the Update goroutine because only Update calls Select.
	a.unsubscribe = sel.Subscribe(a.onSelect)
	if restored := sel.Selected(); restored != nil {
		a.onSelect(restored)
	}

	a.tree.SetCatalog(cat.Snapshot(), "")
	a.revealSelection()
	a.syncOutput()
	return a
}

func (a *App) onSelect(tool *models.ParsedTool) {
	a.detail.OnSelect(tool)
	a.results.OnSelect(tool)
	a.selected = ""
	if tool != nil {
		a.selected = tool.FullIdentifier
	}
	a.syncOutput()
}

func (a *App) revealSelection() {
	if a.revealed || a.selected == "" {
		return
	}
	a.revealed = a.tree.Reveal(a.selected)
}

func (a *App) syncOutput() {
	a.output.SetContent(a.results.Render())
	a.output.GotoBottom()
}

// Run starts the TUI application.
func (a *App) Run() error {
	defer a.Close()
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Close drops the selection subscription.
func (a *App) Close() {
	if a.unsubscribe != nil {
		a.unsubscribe()
	}
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return a.refreshCmd(true)
}

func (a *App) refreshCmd(scheduled bool) tea.Cmd {
	cat := a.catalog
	return func() tea.Msg {
		return refreshedMsg{err: cat.Refresh(context.Background()), scheduled: scheduled}
	}
}

func (a *App) invokeCmd(identifier string, params map[string]any) tea.Cmd {
	inv := a.invoker
	return func() tea.Msg {
		return invokedMsg{result: inv.Invoke(context.Background(), identifier, params)}
	}
}

// tickCmd schedules the next background refresh.
func (a *App) tickCmd() tea.Cmd {
	if a.refreshInterval <= 0 {
		return nil
	}
	return tea.Tick(a.refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return a, tea.Quit
		}
		switch a.mode {
		case modeFilter:
			return a, a.updateFilter(msg)
		case modeParams:
			return a, a.updateParams(msg)
		default:
			return a, a.updateBrowse(msg)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.layout()

	case refreshedMsg:
		a.loading = false
		a.tree.SetCatalog(a.catalog.Snapshot(), a.filter.Query())
		a.revealSelection()
		if msg.err != nil {
			a.log.WithError(msg.err).Warn("catalog refresh incomplete")
			a.setError("Refresh incomplete: " + msg.err.Error())
		} else if !msg.scheduled {
			snap := a.catalog.Snapshot()
			a.setMessage(fmt.Sprintf("✓ %d tools from %d servers", snap.ToolCount(), snap.Len()))
		}
		if msg.scheduled {
			// Schedule the next tick only after the current refresh is complete.
			return a, a.tickCmd()
		}

	case tickMsg:
		return a, a.refreshCmd(true)

	case invokedMsg:
		a.running--
		a.results.Append(msg.result)
		a.syncOutput()
		if msg.result.Success {
			a.setMessage(output.Summary(msg.result))
		} else {
			a.setError(output.Summary(msg.result))
		}
	}

	return a, nil
}

func (a *App) updateBrowse(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "q":
		return tea.Quit

	case "up", "k":
		a.tree.Up()

	case "down", "j":
		a.tree.Down()

	case "enter", " ":
		if tool, ok := a.tree.CurrentTool(); ok {
			a.revealed = true
			a.sel.Select(tool)
			return nil
		}
		if server, ok := a.tree.CurrentServer(); ok {
			a.tree.Toggle(server)
		}

	case "/":
		a.mode = modeFilter
		a.filter.SetCatalog(a.catalog.Snapshot())
		return a.filter.Focus()

	case "esc":
		if a.filter.Query() != "" {
			a.filter.Clear()
			a.tree.SetCatalog(a.catalog.Snapshot(), "")
		}

	case "x":
		return a.openParams()

	case "r":
		a.loading = true
		a.setMessage("Refreshing...")
		return a.refreshCmd(false)

	case "c":
		if a.selected != "" {
			a.revealed = true
			a.sel.Clear()
			a.setMessage("Selection cleared")
		}

	case "C":
		a.results.Clear()
		a.syncOutput()

	case "pgup", "pgdown":
		var cmd tea.Cmd
		a.output, cmd = a.output.Update(msg)
		return cmd
	}
	return nil
}

func (a *App) updateFilter(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.filter.Clear()
		a.mode = modeBrowse
		a.tree.SetCatalog(a.catalog.Snapshot(), "")
		return nil
	case "enter", "down", "up":
		a.filter.Blur()
		a.mode = modeBrowse
		return nil
	case "tab":
		if a.filter.Complete() {
			a.tree.SetCatalog(a.catalog.Snapshot(), a.filter.Query())
		}
		return nil
	case "ctrl+n":
		a.filter.NextSuggestion()
		return nil
	case "ctrl+p":
		a.filter.PrevSuggestion()
		return nil
	}

	cmd, changed := a.filter.Update(msg)
	if changed {
		a.tree.SetCatalog(a.catalog.Snapshot(), a.filter.Query())
	}
	return cmd
}

// openParams starts editing parameters for the selected tool, or for the
// tool under the cursor when nothing is selected.
func (a *App) openParams() tea.Cmd {
	target := a.detail.Tool()
	if target == nil {
		if tool, ok := a.tree.CurrentTool(); ok {
			target = tool
		}
	}
	if target == nil {
		a.setError("Select a tool first")
		return nil
	}

	skeleton, err := json.Marshal(schema.Skeleton(target.InputSchema))
	if err != nil {
		skeleton = []byte("{}")
	}
	a.paramsTarget = target
	a.params.SetValue(string(skeleton))
	a.params.CursorEnd()
	a.mode = modeParams
	return a.params.Focus()
}

func (a *App) updateParams(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "esc":
		a.params.Blur()
		a.mode = modeBrowse
		a.paramsTarget = nil
		return nil
	case "enter":
		params, err := decodeParams(a.params.Value())
		if err != nil {
			a.setError("Invalid parameters: " + err.Error())
			return nil
		}
		target := a.paramsTarget
		a.params.Blur()
		a.mode = modeBrowse
		a.paramsTarget = nil
		a.running++
		a.setMessage("Running " + target.FullIdentifier + "...")
		return a.invokeCmd(target.FullIdentifier, params)
	}

	var cmd tea.Cmd
	a.params, cmd = a.params.Update(msg)
	return cmd
}

func decodeParams(s string) (map[string]any, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "null" {
		return nil, nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(s), &params); err != nil {
		return nil, err
	}
	return params, nil
}

func (a *App) setMessage(m string) {
	a.message = m
	a.messageIsError = false
}

func (a *App) setError(m string) {
	a.message = m
	a.messageIsError = true
}

// Panel geometry. Chrome is the header, separator, message line, input box
// and status bar.
const chromeHeight = 7

func (a *App) bodyHeight() int {
	return max(a.height-chromeHeight, 6)
}

func (a *App) columnWidths() (left, right int) {
	left = max(a.width*2/5, 24)
	right = max(a.width-left, 24)
	return left, right
}

func (a *App) paneHeights() (detail, out int) {
	body := a.bodyHeight()
	detail = body / 2
	return detail, body - detail
}

func (a *App) layout() {
	_, right := a.columnWidths()
	_, outH := a.paneHeights()
	a.detail.SetWidth(right - 4)
	a.output.Width = right - 4
	a.output.Height = max(outH-2, 1)
	a.filter.SetWidth(a.width - 8)
	a.params.Width = a.width - 14
	a.syncOutput()
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	snap := a.catalog.Snapshot()
	header := titleStyle.Render("🧰 " + a.title)
	header += "  " + countStyle.Render(fmt.Sprintf("[%d servers · %d tools]", snap.Len(), snap.ToolCount()))
	if a.loading {
		header += "  " + warningMessageStyle.Render("refreshing")
	}
	if a.running > 0 {
		header += "  " + warningMessageStyle.Render(fmt.Sprintf("running %d", a.running))
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 0)) + "\n")

	left, right := a.columnWidths()
	body := a.bodyHeight()
	detailH, outH := a.paneHeights()

	treeStyle := focusedPanelStyle
	if a.mode != modeBrowse {
		treeStyle = panelStyle
	}
	treePane := treeStyle.Width(left - 2).Height(body - 2).MaxHeight(body).
		Render(a.tree.View(left-4, body-2, a.selected))
	detailPane := panelStyle.Width(right - 2).Height(detailH - 2).MaxHeight(detailH).
		Render(a.detail.View())
	outputPane := panelStyle.Width(right - 2).Height(outH - 2).MaxHeight(outH).
		Render(a.output.View())

	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		treePane,
		lipgloss.JoinVertical(lipgloss.Left, detailPane, outputPane),
	))
	b.WriteString("\n")

	// Message bar, or completions while filtering
	if hint := a.filter.Suggestions(a.width); a.mode == modeFilter && hint != "" {
		b.WriteString(hint)
	} else if a.message != "" {
		style := messageStyle
		if a.messageIsError {
			style = errorMessageStyle
		}
		b.WriteString(style.Render(a.message))
	}
	b.WriteString("\n")

	// Input box
	switch a.mode {
	case modeParams:
		b.WriteString(inputBoxStyle.Render(a.params.View()))
	default:
		b.WriteString(inputBoxStyle.Render(a.filter.View()))
	}
	b.WriteString("\n")

	// Status bar
	var status string
	switch a.mode {
	case modeFilter:
		status = " Type to filter | Tab:complete | Ctrl+N/P:next/prev | Enter:keep | Esc:clear"
	case modeParams:
		status = fmt.Sprintf(" %s | Enter:run | Esc:cancel", a.paramsTarget.FullIdentifier)
	default:
		status = " ↑↓:nav | Enter:open/select | /:filter | x:invoke | c:clear | r:refresh | PgUp/PgDn:output | q:quit"
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 0)).Render(status))

	return b.String()
}
