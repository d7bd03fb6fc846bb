// ABOUTME: Tests for building the routing table from worker contributions
// ABOUTME: Covers suffixing, collision logging, last-writer-wins and the self capability

package routing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-switchboard/internal/catalog"
	"github.com/2389/coven-switchboard/internal/logtest"
	"github.com/2389/coven-switchboard/internal/mcpclient/mcpclienttest"
)

func testSelf() SelfCapability {
	return SelfCapability{
		Tool: mcp.NewTool("context_switch", mcp.WithString("configSource", mcp.Required())),
		Handler: func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText("switched"), nil
		},
	}
}

func names(tools []mcp.Tool) []string {
	out := make([]string, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.Name)
	}
	return out
}

func TestResolveNoCollisions(t *testing.T) {
	contribs := []catalog.Contribution{
		{Worker: "fs", Tools: mcpclienttest.Tools("read_file", "write_file")},
		{Worker: "git", Tools: mcpclienttest.Tools("git_status")},
	}

	table := Resolve(slog.Default(), contribs, DefaultSettings(), testSelf())

	want := []string{"read_file_cs", "write_file_cs", "git_status_cs", "context_switch"}
	if diff := cmp.Diff(want, names(table.Tools())); diff != "" {
		t.Errorf("published tools mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 3, table.WorkerToolCount())

	owner, ok := table.Lookup("read_file")
	require.True(t, ok)
	assert.Equal(t, WorkerOwned, owner.Kind)
	assert.Equal(t, "fs", owner.Worker)

	_, ok = table.Lookup("read_file_cs")
	assert.False(t, ok, "routing keys are canonical names")
}

func TestResolvePreservesSchema(t *testing.T) {
	tool := mcp.NewToolWithRawSchema("query", "run a query", []byte(`{"type":"object","x-custom":true}`))
	contribs := []catalog.Contribution{{Worker: "db", Tools: []mcp.Tool{tool}}}

	table := Resolve(slog.Default(), contribs, DefaultSettings(), SelfCapability{})

	tools := table.Tools()
	require.Len(t, tools, 1)
	assert.Equal(t, "query_cs", tools[0].Name)
	assert.JSONEq(t, `{"type":"object","x-custom":true}`, string(tools[0].RawInputSchema))
	assert.Equal(t, "run a query", tools[0].Description)
}

func TestResolveCollision(t *testing.T) {
	rec, logger := logtest.New()
	contribs := []catalog.Contribution{
		{Worker: "a", Tools: mcpclienttest.Tools("search", "only_a")},
		{Worker: "b", Tools: mcpclienttest.Tools("search")},
		{Worker: "c", Tools: mcpclienttest.Tools("search")},
	}

	table := Resolve(logger, contribs, DefaultSettings(), testSelf())

	owner, ok := table.Lookup("search")
	require.True(t, ok)
	assert.Equal(t, "c", owner.Worker, "last writer wins")

	assert.Equal(t, 1, rec.Count(slog.LevelWarn, "duplicate tool name, overwriting"),
		"collision logged once per name per pass")

	want := []string{"search_cs", "only_a_cs", "context_switch"}
	if diff := cmp.Diff(want, names(table.Tools())); diff != "" {
		t.Errorf("published tools mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveDisplayCollision(t *testing.T) {
	tests := []struct {
		name          string
		contribs      []catalog.Contribution
		wantOwner     string
		wantCanonical string
		gone          string
	}{
		{
			name: "unsuffixed after suffixed",
			contribs: []catalog.Contribution{
				{Worker: "a", Tools: mcpclienttest.Tools("foo_cs")},
				{Worker: "b", Tools: mcpclienttest.Tools("foo")},
			},
			wantOwner:     "b",
			wantCanonical: "foo",
			gone:          "foo_cs",
		},
		{
			name: "suffixed after unsuffixed",
			contribs: []catalog.Contribution{
				{Worker: "b", Tools: mcpclienttest.Tools("foo")},
				{Worker: "a", Tools: mcpclienttest.Tools("foo_cs")},
			},
			wantOwner:     "a",
			wantCanonical: "foo_cs",
			gone:          "foo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, logger := logtest.New()

			table := Resolve(logger, tt.contribs, DefaultSettings(), testSelf())

			assert.Equal(t, []string{"foo_cs", "context_switch"}, names(table.Tools()))
			assert.Equal(t, 1, rec.Count(slog.LevelWarn, "duplicate tool name, overwriting"))
			assert.Equal(t, tt.wantCanonical, table.Canonical("foo_cs"))

			owner, ok := table.Lookup(tt.wantCanonical)
			require.True(t, ok)
			assert.Equal(t, tt.wantOwner, owner.Worker)

			_, ok = table.Lookup(tt.gone)
			assert.False(t, ok, "shadowed tool has no route left")
			assert.Equal(t, 1, table.WorkerToolCount())
		})
	}
}

func TestResolveSelfWins(t *testing.T) {
	rec, logger := logtest.New()
	contribs := []catalog.Contribution{
		{Worker: "rogue", Tools: mcpclienttest.Tools("context_switch", "other")},
	}

	table := Resolve(logger, contribs, DefaultSettings(), testSelf())

	owner, ok := table.Lookup("context_switch")
	require.True(t, ok)
	assert.Equal(t, SelfOwned, owner.Kind)
	assert.Equal(t, 1, rec.Count(slog.LevelWarn, "duplicate tool name, overwriting"))

	tools := table.Tools()
	assert.Equal(t, []string{"context_switch", "other_cs"}, names(tools))
	assert.Equal(t, "context_switch", tools[0].Name)
	assert.Contains(t, tools[0].InputSchema.Properties, "configSource")
}

func TestResolveCustomSuffix(t *testing.T) {
	contribs := []catalog.Contribution{
		{Worker: "fs", Tools: mcpclienttest.Tools("read_file", "list_mine")},
	}

	table := Resolve(slog.Default(), contribs, Settings{SwitchingEnabled: true, Suffix: "_mine"}, testSelf())

	assert.Equal(t, []string{"read_file_mine", "list_mine", "context_switch"}, names(table.Tools()))
	assert.Equal(t, "read_file", table.Canonical("read_file_mine"))
	assert.Equal(t, "list_mine", table.Canonical("list_mine"))
}

func TestResolveResources(t *testing.T) {
	rec, logger := logtest.New()
	contribs := []catalog.Contribution{
		{Worker: "a", Resources: []mcp.Resource{mcp.NewResource("file:///x", "x")}},
		{Worker: "b", Resources: []mcp.Resource{
			mcp.NewResource("file:///x", "x from b"),
			mcp.NewResource("file:///y", "y"),
		}},
	}

	table := Resolve(logger, contribs, DefaultSettings(), SelfCapability{})

	owner, ok := table.ResourceOwner("file:///x")
	require.True(t, ok)
	assert.Equal(t, "b", owner)
	assert.Equal(t, 1, rec.Count(slog.LevelWarn, "duplicate resource URI, overwriting"))

	res := table.Resources()
	require.Len(t, res, 2)
	assert.Equal(t, "x from b", res[0].Name)
}

func TestResolveEmpty(t *testing.T) {
	table := Resolve(nil, nil, DefaultSettings(), testSelf())
	assert.Equal(t, []string{"context_switch"}, names(table.Tools()))
	assert.Equal(t, 0, table.WorkerToolCount())
}

func TestStoreSwap(t *testing.T) {
	s := NewStore(&Snapshot{Table: Resolve(nil, nil, DefaultSettings(), SelfCapability{})})
	first := s.Load()
	assert.Equal(t, uint64(1), first.Version)
	assert.False(t, first.BuiltAt.IsZero())

	next := s.Swap(&Snapshot{Settings: Settings{Suffix: "_x"}, Table: first.Table})
	assert.Equal(t, uint64(2), next.Version)
	assert.Same(t, next, s.Load())
	assert.Equal(t, uint64(1), first.Version, "old snapshot is untouched")
}
