// ABOUTME: Tests for the CLI logger and catalog printing
// ABOUTME: Color output is disabled so lines can be matched directly

package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-switchboard/internal/config"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "level %q", in)
	}
}

func TestColorHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "info", Format: "text"}, &buf)

	logger.Debug("hidden")
	logger.With("worker", "alpha").WithGroup("call").Info("routing", "tool", "echo")
	logger.Warn("careful")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "INF routing worker=alpha call.tool=echo")
	assert.Contains(t, lines[1], "WRN careful")
}

func TestJSONHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("hello", "n", 1)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
	assert.Contains(t, buf.String(), `"n":1`)
}

func TestValidateCommand(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "mcp.json")
	require.NoError(t, os.WriteFile(source, []byte(`{
  "mcpServers": {
    "alpha": {"command": "alpha-server"},
    "broken": {"command": ""},
    "contextSwitcher": {"env": {"TOOL_SUFFIX": "_x"}}
  }
}`), 0o600))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("logging:\n  level: warn\n"), 0o600))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs([]string{"validate", "--config", cfgPath, "--source", source})
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		configPath, sourcePath = "", ""
	})

	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 servers are invalid")
	assert.Contains(t, out.String(), "config: "+cfgPath+" ok")
	assert.Contains(t, out.String(), "✓ alpha: alpha-server")
	assert.Contains(t, out.String(), "✗ broken")
	assert.Contains(t, out.String(), `suffix: "_x"`)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "one", firstLine("one\ntwo"))
	assert.Equal(t, "single", firstLine("single"))
	assert.Equal(t, "", firstLine(""))
}
