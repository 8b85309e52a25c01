package controlplane

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/invoke"
	"github.com/fentz26/toolbench/internal/models"
	"github.com/fentz26/toolbench/internal/provider"
	"github.com/fentz26/toolbench/internal/provider/httpapi"
	"github.com/fentz26/toolbench/internal/selection"
	"github.com/fentz26/toolbench/internal/store"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProvider struct{}

func (stubProvider) Name() string { return "stub" }

func (stubProvider) ListTools(ctx context.Context) ([]models.RawTool, error) {
	return []models.RawTool{
		{Identifier: "db_query", Description: "Run SQL", Tags: []string{"sql"},
			InputSchema: json.RawMessage(`{"type":"object","properties":{"sql":{"type":"string"}},"required":["sql"]}`)},
		{Identifier: "db_backup", Description: "Snapshot the database"},
		{Identifier: "github_issue", Description: "Create an issue"},
	}, nil
}

func (stubProvider) Invoke(ctx context.Context, identifier string, params map[string]any) (any, error) {
	if identifier == "db_backup" {
		return nil, errors.New("disk full")
	}
	return map[string]any{"echo": params}, nil
}

func (stubProvider) Close() error { return nil }

type testEnv struct {
	server *Server
	store  *store.Store
	sel    *selection.Coordinator
	http   *httptest.Server
}

func newTestEnv(t *testing.T, opts ...ServerOption) *testEnv {
	t.Helper()
	log, _ := test.NewNullLogger()

	s, err := store.New(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	reg := catalog.NewRegistry(catalog.DefaultConfig(), []provider.Provider{stubProvider{}}, log)
	require.NoError(t, reg.Refresh(context.Background()))

	sel := selection.New(context.Background(), s, log)
	t.Cleanup(sel.Flush)
	exec := invoke.NewExecutor(reg, invoke.WithHistory(s), invoke.WithLogger(log))

	srv := NewServer(NewService(reg, sel, exec, s, log), "", opts...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testEnv{server: srv, store: s, sel: sel, http: ts}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.http.URL+path, &buf)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthEndpoint_OK(t *testing.T) {
	env := newTestEnv(t)

	resp := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	health := decode[HealthResponse](t, resp)
	assert.True(t, health.OK)
	assert.Equal(t, "ok", health.DB)
	assert.NotEmpty(t, health.Version)
	assert.NotEmpty(t, health.Time)
	assert.Equal(t, 2, health.Servers)
	assert.Equal(t, 3, health.Tools)
}

func TestHealthEndpoint_MethodNotAllowed(t *testing.T) {
	env := newTestEnv(t)
	resp := env.do(t, http.MethodPost, "/health", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestToolsEndpoint(t *testing.T) {
	env := newTestEnv(t)

	all := decode[[]catalog.ServerView](t, env.do(t, http.MethodGet, "/tools", nil))
	require.Len(t, all, 2)
	assert.Equal(t, "db", all[0].Server)
	assert.Equal(t, "github", all[1].Server)

	filtered := decode[[]catalog.ServerView](t, env.do(t, http.MethodGet, "/tools?q=SQL", nil))
	require.Len(t, filtered, 1)
	require.Len(t, filtered[0].Tools, 1)
	assert.Equal(t, "db_query", filtered[0].Tools[0].FullIdentifier)

	servers := decode[[]string](t, env.do(t, http.MethodGet, "/servers?q=issue", nil))
	assert.Equal(t, []string{"github"}, servers)
}

func TestToolByID(t *testing.T) {
	env := newTestEnv(t)

	detail := decode[ToolDetail](t, env.do(t, http.MethodGet, "/tools/db_query", nil))
	assert.Equal(t, "query", detail.Tool.Name)
	require.Len(t, detail.Params, 1)
	assert.Equal(t, "sql", detail.Params[0].Name)
	assert.True(t, detail.Params[0].Required)

	resp := env.do(t, http.MethodGet, "/tools/db_drop", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInvokeEndpoint(t *testing.T) {
	env := newTestEnv(t)

	ok := decode[models.InvokeResult](t, env.do(t, http.MethodPost, "/tools/db_query/invoke",
		map[string]any{"parameters": map[string]any{"sql": "select 1"}}))
	assert.True(t, ok.Success)
	assert.Equal(t, map[string]any{"echo": map[string]any{"sql": "select 1"}}, ok.Data)

	missing := decode[models.InvokeResult](t, env.do(t, http.MethodPost, "/tools/db_query/invoke", nil))
	assert.False(t, missing.Success)
	assert.Contains(t, missing.Error, "missing required parameters")

	failed := decode[models.InvokeResult](t, env.do(t, http.MethodPost, "/tools/db_backup/invoke", map[string]any{}))
	assert.False(t, failed.Success)
	assert.Equal(t, "disk full", failed.Error)

	resp := env.do(t, http.MethodPost, "/tools/db_drop/invoke", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	history := decode[[]models.Invocation](t, env.do(t, http.MethodGet, "/history?tool=db_backup", nil))
	require.Len(t, history, 1)
	assert.Equal(t, "disk full", history[0].Error)

	resp = env.do(t, http.MethodGet, "/history?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestInvokeEndpoint_RateLimited(t *testing.T) {
	env := newTestEnv(t, WithInvokeRate(0.001, 1))

	resp := env.do(t, http.MethodPost, "/tools/db_backup/invoke", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/tools/db_backup/invoke", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestSelectionEndpoint(t *testing.T) {
	env := newTestEnv(t)

	var notified []string
	env.sel.Subscribe(func(tool *models.ParsedTool) {
		if tool == nil {
			notified = append(notified, "<nil>")
			return
		}
		notified = append(notified, tool.FullIdentifier)
	})

	empty := decode[map[string]any](t, env.do(t, http.MethodGet, "/selection", nil))
	assert.Nil(t, empty["selected"])

	resp := env.do(t, http.MethodPut, "/selection", map[string]string{"identifier": "github_issue"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	got := decode[struct {
		Selected *models.ParsedTool `json:"selected"`
	}](t, env.do(t, http.MethodGet, "/selection", nil))
	require.NotNil(t, got.Selected)
	assert.Equal(t, "github", got.Selected.Server)

	resp = env.do(t, http.MethodPut, "/selection", map[string]string{"identifier": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPut, "/selection", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/selection", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Nil(t, env.sel.Selected())

	assert.Equal(t, []string{"github_issue", "<nil>"}, notified)

	entries, err := env.store.ListAudit(context.Background(), "github_issue")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "select", entries[0].Action)
}

func TestRefreshAndProviders(t *testing.T) {
	env := newTestEnv(t)

	refreshed := decode[map[string]any](t, env.do(t, http.MethodPost, "/refresh", nil))
	assert.Equal(t, true, refreshed["ok"])

	providers := decode[[]catalog.ProviderStatus](t, env.do(t, http.MethodGet, "/providers", nil))
	require.Len(t, providers, 1)
	assert.Equal(t, "stub", providers[0].Name)
	assert.Equal(t, 3, providers[0].ToolCount)
}

func TestHTTPProviderAgainstDaemon(t *testing.T) {
	env := newTestEnv(t)
	client := httpapi.NewClient("upstream", env.http.URL)
	ctx := context.Background()

	tools, err := client.ListTools(ctx)
	require.NoError(t, err)
	assert.Len(t, tools, 3)

	out, err := client.Invoke(ctx, "db_query", map[string]any{"sql": "select 2"})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"echo": map[string]any{"sql": "select 2"}}, out)

	_, err = client.Invoke(ctx, "db_drop", nil)
	assert.ErrorIs(t, err, provider.ErrToolNotFound)

	ok, err := client.CheckHealth(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}
