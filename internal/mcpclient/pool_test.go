//go:build !windows

// ABOUTME: Tests for the worker client pool against real fake-worker processes
// ABOUTME: Covers listing, calling, resources, schema passthrough and exit eviction

package mcpclient

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-switchboard/internal/fakeworker"
	"github.com/2389/coven-switchboard/internal/worker"
)

func TestMain(m *testing.M) {
	if fakeworker.Enabled() {
		os.Exit(fakeworker.Main())
	}
	os.Exit(m.Run())
}

func startFake(t *testing.T, opts fakeworker.Options) *worker.Worker {
	t.Helper()
	exe, err := os.Executable()
	require.NoError(t, err)

	mgr := worker.NewManager(worker.ManagerConfig{Logger: slog.Default(), GracePeriod: time.Second})
	t.Cleanup(func() { mgr.StopAll(context.Background()) })

	running := mgr.Start([]worker.Spec{{Name: opts.Name, Command: exe, Env: opts.Env()}})
	require.Len(t, running, 1)
	return running[0]
}

func TestPoolDial(t *testing.T) {
	w := startFake(t, fakeworker.Options{
		Name:      "files",
		Tools:     []string{"read_file", "write_file"},
		Resources: []string{"file:///etc/motd"},
	})
	pool := NewPool(PoolConfig{Logger: slog.Default()})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := pool.Dial(ctx, w)
	require.NoError(t, err)
	defer sess.Close()

	t.Run("lists tools", func(t *testing.T) {
		tools, err := sess.ListTools(ctx)
		require.NoError(t, err)
		names := make([]string, 0, len(tools))
		for _, tool := range tools {
			names = append(names, tool.Name)
			assert.NotEmpty(t, tool.RawInputSchema, "schema for %s should be kept raw", tool.Name)
		}
		assert.ElementsMatch(t, []string{"read_file", "write_file"}, names)
	})

	t.Run("lists resources", func(t *testing.T) {
		resources, err := sess.ListResources(ctx)
		require.NoError(t, err)
		require.Len(t, resources, 1)
		assert.Equal(t, "file:///etc/motd", resources[0].URI)
	})

	t.Run("calls tool with arguments untouched", func(t *testing.T) {
		args := map[string]any{"text": "hello", "nested": map[string]any{"n": float64(2)}}
		result, err := sess.CallTool(ctx, "read_file", args)
		require.NoError(t, err)
		require.Len(t, result.Content, 1)

		text, ok := result.Content[0].(mcp.TextContent)
		require.True(t, ok)

		var echo fakeworker.Echo
		require.NoError(t, json.Unmarshal([]byte(text.Text), &echo))
		assert.Equal(t, "files", echo.Server)
		assert.Equal(t, "read_file", echo.Tool)
		assert.Equal(t, args, echo.Arguments)
	})

	t.Run("reads resource", func(t *testing.T) {
		contents, err := sess.ReadResource(ctx, "file:///etc/motd")
		require.NoError(t, err)
		require.Len(t, contents, 1)
		text, ok := contents[0].(mcp.TextResourceContents)
		require.True(t, ok)
		assert.Equal(t, "file:///etc/motd served by files", text.Text)
	})

	t.Run("second dial reuses client", func(t *testing.T) {
		again, err := pool.Dial(ctx, w)
		require.NoError(t, err)
		require.NoError(t, again.Close())
		assert.Equal(t, 1, pool.Len())
	})
}

func TestPoolNoResources(t *testing.T) {
	w := startFake(t, fakeworker.Options{Name: "bare", Tools: []string{"ping"}})
	pool := NewPool(PoolConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	sess, err := pool.Dial(ctx, w)
	require.NoError(t, err)
	defer sess.Close()

	resources, err := sess.ListResources(ctx)
	require.NoError(t, err)
	assert.Empty(t, resources)
}

func TestPoolDialTimeout(t *testing.T) {
	w := startFake(t, fakeworker.Options{Name: "stuck", Mode: fakeworker.ModeHang})
	pool := NewPool(PoolConfig{})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	_, err := pool.Dial(ctx, w)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPoolExitedWorker(t *testing.T) {
	w := startFake(t, fakeworker.Options{Name: "gone", Mode: fakeworker.ModeExit})
	<-w.Done()

	pool := NewPool(PoolConfig{})
	_, err := pool.Dial(context.Background(), w)
	require.ErrorIs(t, err, ErrEndpointGone)
	assert.Equal(t, 0, pool.Len())
}

func TestPoolEvictsOnExit(t *testing.T) {
	exe, err := os.Executable()
	require.NoError(t, err)
	opts := fakeworker.Options{Name: "short", Tools: []string{"ping"}}

	mgr := worker.NewManager(worker.ManagerConfig{GracePeriod: time.Second})
	running := mgr.Start([]worker.Spec{{Name: opts.Name, Command: exe, Env: opts.Env()}})
	require.Len(t, running, 1)

	pool := NewPool(PoolConfig{})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = pool.Dial(ctx, running[0])
	require.NoError(t, err)
	require.Equal(t, 1, pool.Len())

	mgr.StopAll(ctx)
	require.Eventually(t, func() bool { return pool.Len() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestDecodeTool(t *testing.T) {
	raw := json.RawMessage(`{
		"name": "search",
		"description": "Search things",
		"inputSchema": {
			"type": "object",
			"properties": {"q": {"type": "string"}},
			"required": ["q"],
			"description": "kept verbatim",
			"oneOf": [{"required": ["q"]}]
		},
		"annotations": {"readOnlyHint": true}
	}`)

	tool, err := DecodeTool(raw)
	require.NoError(t, err)
	assert.Equal(t, "search", tool.Name)
	assert.Equal(t, "Search things", tool.Description)
	assert.Empty(t, tool.InputSchema.Type)
	require.NotNil(t, tool.Annotations.ReadOnlyHint)
	assert.True(t, *tool.Annotations.ReadOnlyHint)

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.RawInputSchema, &schema))
	assert.Equal(t, "kept verbatim", schema["description"])
	assert.Contains(t, schema, "oneOf")

	// A renamed copy must still marshal.
	tool.Name = "search_cs"
	out, err := json.Marshal(tool)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"oneOf"`)
	assert.Contains(t, string(out), `"search_cs"`)
}

func TestDecodeToolWithoutSchema(t *testing.T) {
	tool, err := DecodeTool(json.RawMessage(`{"name":"bare"}`))
	require.NoError(t, err)
	assert.Nil(t, tool.RawInputSchema)
	assert.Equal(t, "bare", tool.Name)
}
