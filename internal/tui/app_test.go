package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/selection"
	"github.com/fentz26/toolbench/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCatalog struct {
	g         *catalog.Grouped
	err       error
	refreshes int
}

func (s *stubCatalog) Snapshot() *catalog.Grouped { return s.g }

func (s *stubCatalog) Refresh(ctx context.Context) error {
	s.refreshes++
	return s.err
}

type stubInvoker struct {
	mu     sync.Mutex
	calls  []string
	params []map[string]any
}

func (s *stubInvoker) Invoke(ctx context.Context, identifier string, params map[string]any) models.InvokeResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, identifier)
	s.params = append(s.params, params)
	return models.InvokeResult{Success: true, Data: "ok", ToolName: identifier, ExecutionTime: 5 * time.Millisecond}
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.New(store.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func newTestApp(t *testing.T, st *store.Store) (*App, *selection.Coordinator, *stubCatalog, *stubInvoker) {
	t.Helper()
	log, _ := test.NewNullLogger()
	sel := selection.New(context.Background(), st, log)
	cat := &stubCatalog{g: sampleCatalog()}
	inv := &stubInvoker{}
	app := New(cat, inv, sel, WithLogger(log))
	t.Cleanup(func() {
		app.Close()
		sel.Flush()
	})
	return app, sel, cat, inv
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func press(app *App, keys ...string) tea.Cmd {
	var cmd tea.Cmd
	for _, k := range keys {
		_, cmd = app.Update(key(k))
	}
	return cmd
}

func TestApp_SelectFromTree(t *testing.T) {
	app, sel, _, _ := newTestApp(t, newTestStore(t))

	press(app, "enter", "down", "enter")

	selected := sel.Selected()
	require.NotNil(t, selected)
	assert.Equal(t, "db_query", selected.FullIdentifier)
	require.NotNil(t, app.detail.Tool())
	assert.Equal(t, "db_query", app.detail.Tool().FullIdentifier)
	assert.Equal(t, "db_query", app.results.Focus())
}

func TestApp_FilterCompletes(t *testing.T) {
	app, _, _, _ := newTestApp(t, newTestStore(t))

	press(app, "/", "b")
	assert.Contains(t, app.View(), "Tab:")

	press(app, "ctrl+n", "tab")
	assert.Equal(t, "github", app.filter.Query())
	assert.Equal(t, modeFilter, app.mode)
	assert.Equal(t, []string{"github"}, app.tree.Servers())

	press(app, "enter")
	assert.Equal(t, modeBrowse, app.mode)
	assert.Equal(t, "github", app.filter.Query())
}

func TestApp_FilterIsLive(t *testing.T) {
	app, _, _, _ := newTestApp(t, newTestStore(t))

	press(app, "/")
	require.Equal(t, modeFilter, app.mode)

	press(app, "s", "q", "l")
	assert.Equal(t, "sql", app.filter.Query())
	assert.Equal(t, []string{"db"}, app.tree.Servers())
	assert.Equal(t, 2, app.tree.Len(), "servers open while a query is active")

	press(app, "esc")
	assert.Equal(t, modeBrowse, app.mode)
	assert.Equal(t, "", app.filter.Query())
	assert.Equal(t, []string{"db", "github"}, app.tree.Servers())
}

func TestApp_FilterKeptOnEnter(t *testing.T) {
	app, _, _, _ := newTestApp(t, newTestStore(t))

	press(app, "/", "g", "i", "t", "enter")
	assert.Equal(t, modeBrowse, app.mode)
	assert.Equal(t, "git", app.filter.Query())

	press(app, "esc")
	assert.Equal(t, "", app.filter.Query())
}

func TestApp_Invoke(t *testing.T) {
	app, _, _, inv := newTestApp(t, newTestStore(t))

	press(app, "enter", "down", "enter", "x")
	require.Equal(t, modeParams, app.mode)
	assert.Equal(t, "{}", app.params.Value())

	app.params.SetValue(`{"sql":"select 1"}`)
	cmd := press(app, "enter")
	require.NotNil(t, cmd)
	assert.Equal(t, modeBrowse, app.mode)

	app.Update(cmd())

	require.Equal(t, []string{"db_query"}, inv.calls)
	assert.Equal(t, map[string]any{"sql": "select 1"}, inv.params[0])
	assert.Len(t, app.results.Entries(), 1)
	assert.Contains(t, app.message, "db_query")
	assert.False(t, app.messageIsError)
	assert.Equal(t, 0, app.running)
}

func TestApp_InvokeSkeleton(t *testing.T) {
	app, _, _, _ := newTestApp(t, newTestStore(t))

	require.True(t, app.tree.Reveal("github_issue"))
	press(app, "x")
	require.Equal(t, modeParams, app.mode)
	assert.JSONEq(t, `{"title":""}`, app.params.Value())

	press(app, "esc")
	assert.Equal(t, modeBrowse, app.mode)
}

func TestApp_InvokeNeedsTool(t *testing.T) {
	app, _, _, inv := newTestApp(t, newTestStore(t))

	cmd := press(app, "x")
	assert.Nil(t, cmd)
	assert.Equal(t, modeBrowse, app.mode)
	assert.Equal(t, "Select a tool first", app.message)
	assert.Empty(t, inv.calls)
}

func TestApp_InvalidParams(t *testing.T) {
	app, _, _, inv := newTestApp(t, newTestStore(t))

	press(app, "enter", "down", "x")
	app.params.SetValue(`{"sql":`)
	cmd := press(app, "enter")

	assert.Nil(t, cmd)
	assert.Equal(t, modeParams, app.mode)
	assert.True(t, app.messageIsError)
	assert.Contains(t, app.message, "Invalid parameters")
	assert.Empty(t, inv.calls)
}

func TestApp_ClearSelection(t *testing.T) {
	app, sel, _, _ := newTestApp(t, newTestStore(t))

	press(app, "enter", "down", "enter")
	require.NotNil(t, sel.Selected())

	press(app, "c")
	assert.Nil(t, sel.Selected())
	assert.Nil(t, app.detail.Tool())
	assert.Equal(t, "", app.results.Focus())
}

func TestApp_RestoresSelection(t *testing.T) {
	st := newTestStore(t)
	log, _ := test.NewNullLogger()

	first := selection.New(context.Background(), st, log)
	tool, ok := sampleCatalog().Find("github_issue")
	require.True(t, ok)
	first.Select(&tool)
	first.Flush()

	app, _, _, _ := newTestApp(t, st)
	require.NotNil(t, app.detail.Tool())
	assert.Equal(t, "github_issue", app.detail.Tool().FullIdentifier)

	current, ok := app.tree.CurrentTool()
	require.True(t, ok)
	assert.Equal(t, "github_issue", current.FullIdentifier)
}

func TestApp_RefreshError(t *testing.T) {
	app, _, cat, _ := newTestApp(t, newTestStore(t))
	cat.err = errors.New("provider github: dial failed")

	msg := app.Init()()
	_, next := app.Update(msg)

	assert.Nil(t, next, "no tick without a refresh interval")
	assert.Equal(t, 1, cat.refreshes)
	assert.False(t, app.loading)
	assert.True(t, app.messageIsError)
	assert.Contains(t, app.message, "dial failed")
}

func TestApp_ManualRefresh(t *testing.T) {
	app, _, cat, _ := newTestApp(t, newTestStore(t))

	cmd := press(app, "r")
	require.NotNil(t, cmd)
	app.Update(cmd())

	assert.Equal(t, 1, cat.refreshes)
	assert.Equal(t, "✓ 4 tools from 2 servers", app.message)
}

func TestApp_ScheduledRefreshTicks(t *testing.T) {
	log, _ := test.NewNullLogger()
	sel := selection.New(context.Background(), newTestStore(t), log)
	cat := &stubCatalog{g: sampleCatalog()}
	app := New(cat, &stubInvoker{}, sel, WithLogger(log), WithRefreshInterval(time.Minute))
	defer app.Close()

	_, next := app.Update(app.Init()())
	assert.NotNil(t, next)

	_, next = app.Update(tickMsg(time.Now()))
	require.NotNil(t, next)
	app.Update(next())
	assert.Equal(t, 2, cat.refreshes)
}

func TestApp_View(t *testing.T) {
	app, _, _, _ := newTestApp(t, newTestStore(t))
	app.Update(tea.WindowSizeMsg{Width: 120, Height: 40})

	view := app.View()
	assert.Contains(t, view, "toolbench")
	assert.Contains(t, view, "db")
	assert.Contains(t, view, "github")
	assert.Contains(t, view, "No results yet.")
}

func TestApp_Quit(t *testing.T) {
	app, _, _, _ := newTestApp(t, newTestStore(t))

	cmd := press(app, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
