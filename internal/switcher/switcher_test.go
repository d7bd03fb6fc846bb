// ABOUTME: Tests for the context switch coordinator
// ABOUTME: Covers disabled switching, inaccessible sources, success and reload failure

package switcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-switchboard/internal/routing"
)

type fakeFleet struct {
	mu       sync.Mutex
	settings routing.Settings
	count    int
	err      error
	reloads  []string
	during   func()
}

func (f *fakeFleet) Settings() routing.Settings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.settings
}

func (f *fakeFleet) Reload(ctx context.Context, source string) (int, error) {
	f.mu.Lock()
	f.reloads = append(f.reloads, source)
	during := f.during
	f.mu.Unlock()
	if during != nil {
		during()
	}
	return f.count, f.err
}

func writeSource(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mcp.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mcpServers":{}}`), 0o600))
	return path
}

func TestNewCoordinator(t *testing.T) {
	_, err := NewCoordinator(nil, nil)
	require.Error(t, err)
}

func TestSwitchDisabled(t *testing.T) {
	fleet := &fakeFleet{settings: routing.Settings{SwitchingEnabled: false, Suffix: "_cs"}, count: 9}
	c, err := NewCoordinator(fleet, nil)
	require.NoError(t, err)

	res := c.Switch(context.Background(), writeSource(t))

	assert.False(t, res.Success)
	assert.Equal(t, 0, res.ToolCount)
	assert.ErrorIs(t, res.Err, ErrSwitchRejected)
	assert.Empty(t, fleet.reloads, "fleet must be left alone")
	assert.Equal(t, Idle, c.State())
}

func TestSwitchSourceInvalid(t *testing.T) {
	fleet := &fakeFleet{settings: routing.DefaultSettings()}
	c, err := NewCoordinator(fleet, nil)
	require.NoError(t, err)

	tests := map[string]string{
		"missing":   filepath.Join(t.TempDir(), "nope.json"),
		"directory": t.TempDir(),
		"empty":     "",
	}
	for name, source := range tests {
		t.Run(name, func(t *testing.T) {
			res := c.Switch(context.Background(), source)
			assert.False(t, res.Success)
			assert.ErrorIs(t, res.Err, ErrSwitchSourceInvalid)
			assert.Contains(t, res.Message, "Failed to switch context")
		})
	}
	assert.Empty(t, fleet.reloads)
}

func TestSwitchSuccess(t *testing.T) {
	fleet := &fakeFleet{settings: routing.DefaultSettings(), count: 5}
	c, err := NewCoordinator(fleet, nil)
	require.NoError(t, err)

	var observed State
	fleet.during = func() { observed = c.State() }

	source := writeSource(t)
	res := c.Switch(context.Background(), source)

	require.NoError(t, res.Err)
	assert.True(t, res.Success)
	assert.Equal(t, 5, res.ToolCount)
	assert.Equal(t, []string{source}, fleet.reloads)
	assert.Equal(t, Switching, observed)
	assert.Equal(t, Idle, c.State())
}

func TestSwitchReloadFailure(t *testing.T) {
	fleet := &fakeFleet{settings: routing.DefaultSettings(), err: errors.New("bad json")}
	c, err := NewCoordinator(fleet, nil)
	require.NoError(t, err)

	res := c.Switch(context.Background(), writeSource(t))
	assert.False(t, res.Success)
	assert.Equal(t, 0, res.ToolCount)
	assert.Contains(t, res.Message, "bad json")
	assert.Equal(t, Idle, c.State())
}

func TestResultToolResult(t *testing.T) {
	out := Result{Success: true, ToolCount: 5, Message: "done"}.ToolResult()

	assert.False(t, out.IsError)
	require.Len(t, out.Content, 1)
	assert.Equal(t, "done", out.Content[0].(mcp.TextContent).Text)
	require.NotNil(t, out.Meta)
	assert.Equal(t, true, out.Meta.AdditionalFields["success"])
	assert.Equal(t, 5, out.Meta.AdditionalFields["toolCount"])
	assert.Equal(t, map[string]any{"success": true, "toolCount": 5}, out.StructuredContent)
}

func TestCapability(t *testing.T) {
	fleet := &fakeFleet{settings: routing.DefaultSettings(), count: 2}
	c, err := NewCoordinator(fleet, nil)
	require.NoError(t, err)

	self := c.Capability()
	assert.Equal(t, ToolName, self.Tool.Name)
	assert.Equal(t, []string{"configSource"}, self.Tool.InputSchema.Required)

	source := writeSource(t)
	out, err := self.Handler(context.Background(), map[string]any{"configSource": source})
	require.NoError(t, err)
	assert.Equal(t, 2, out.Meta.AdditionalFields["toolCount"])
}
