package catalog

import (
	"testing"

	"github.com/fentz26/toolbench/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCatalog() *Grouped {
	return NewGrouper(nil, nil).Group([]models.RawTool{
		{Identifier: "slack_post_message", Description: "Post to a channel"},
		{Identifier: "db_query", Description: "Run a read-only query", Tags: []string{"sql", "read"}},
		{Identifier: "db_backup", Description: "Snapshot the database"},
		{Identifier: "mcp_github_issue", Description: "Create an Issue"},
		{Identifier: "aws_s3_list"},
	})
}

func TestMatches_EmptyQuery(t *testing.T) {
	g := sampleCatalog()
	for _, server := range g.Servers() {
		for _, tool := range g.Tools(server) {
			assert.True(t, Matches(tool, ""), tool.FullIdentifier)
		}
	}
	assert.True(t, Matches(models.ParsedTool{}, ""))
}

func TestMatches_Fields(t *testing.T) {
	tool := models.ParsedTool{
		Name:           "issue",
		Server:         "github",
		FullIdentifier: "mcp_github_issue",
		Description:    "Create an Issue",
		Tags:           []string{"vcs", "tracker"},
	}

	tests := []struct {
		query string
		want  bool
	}{
		{"iss", true},       // name
		{"create an", true}, // description
		{"github", true},    // server
		{"mcp_git", true},   // full identifier
		{"tracker", true},   // tag
		{"vcs tra", true},   // joined tag list
		{"pull", false},     // nowhere
		{" issue", true},    // untrimmed, description has " Issue"
		{"issue  ", false},  // untrimmed trailing spaces
		{"ISSUE", true},     // case-insensitive
		{"gIt", true},       // case-insensitive
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tool, tt.query))
		})
	}
}

func TestMatches_CaseInsensitive(t *testing.T) {
	g := sampleCatalog()
	queries := []string{"query", "SNAPSHOT", "Slack", "s3", "Issue", "nothing"}
	for _, q := range queries {
		for _, server := range g.Servers() {
			for _, tool := range g.Tools(server) {
				assert.Equal(t, Matches(tool, q), Matches(tool, swapCase(q)), "%s / %s", tool.FullIdentifier, q)
			}
		}
	}
}

func swapCase(s string) string {
	out := []rune(s)
	for i, r := range out {
		switch {
		case r >= 'a' && r <= 'z':
			out[i] = r - 'a' + 'A'
		case r >= 'A' && r <= 'Z':
			out[i] = r - 'A' + 'a'
		}
	}
	return string(out)
}

func TestVisibleServers_SortedAscending(t *testing.T) {
	g := sampleCatalog()

	assert.Equal(t, []string{"slack", "db", "mcp", "aws"}, g.Servers())
	assert.Equal(t, []string{"aws", "db", "mcp", "slack"}, VisibleServers(g, ""))
	assert.Equal(t, []string{"mcp"}, VisibleServers(g, "github"))
	assert.Equal(t, []string{"slack"}, VisibleServers(g, "post"))
	assert.Empty(t, VisibleServers(g, "kubernetes"))
	assert.Nil(t, VisibleServers(nil, ""))
}

func TestApply_KeepsToolOrder(t *testing.T) {
	g := NewGrouper(nil, nil).Group([]models.RawTool{
		{Identifier: "db_vacuum", Description: "Reclaim space"},
		{Identifier: "db_query", Description: "Read rows"},
		{Identifier: "db_backup", Description: "Copy rows"},
	})

	views := Apply(g, "rows")
	require.Len(t, views, 1)
	assert.Equal(t, "db", views[0].Server)
	assert.Equal(t, []string{"query", "backup"}, toolNames(views[0].Tools))
}

func TestApply_TagScenario(t *testing.T) {
	g := NewGrouper(nil, nil).Group([]models.RawTool{
		{Identifier: "db_query", Tags: []string{"sql"}},
		{Identifier: "db_backup"},
	})

	views := Apply(g, "sql")
	require.Len(t, views, 1)
	assert.Equal(t, "db", views[0].Server)
	require.Len(t, views[0].Tools, 1)
	assert.Equal(t, "db_query", views[0].Tools[0].FullIdentifier)
	assert.Equal(t, []string{"db"}, VisibleServers(g, "sql"))
}

func TestFilter_ClearRestoresView(t *testing.T) {
	g := sampleCatalog()
	f := NewFilter()

	original := f.Apply(g)
	assert.False(t, f.Active())

	f.SetQuery("query")
	assert.True(t, f.Active())
	assert.Equal(t, []string{"db"}, f.VisibleServers(g))

	f.SetQuery("query")
	assert.Equal(t, []string{"db"}, f.VisibleServers(g), "same query twice yields same view")

	f.SetQuery("")
	assert.Equal(t, original, f.Apply(g))

	f.SetQuery("github")
	f.Clear()
	assert.Equal(t, "", f.Query())
	assert.Equal(t, original, f.Apply(g))
}

func TestExpanded(t *testing.T) {
	assert.False(t, Expanded(""))
	assert.True(t, Expanded("db"))
}
