// ABOUTME: Context switch coordinator: Idle/Switching state machine over the fleet
// ABOUTME: Produces structured results instead of errors for rejected or invalid switches

package switcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/coven-switchboard/internal/metrics"
	"github.com/2389/coven-switchboard/internal/routing"
)

// ToolName is the self-capability served by the switchboard.
const ToolName = "context_switch"

// ErrSwitchRejected indicates switching is disabled by the active settings.
var ErrSwitchRejected = errors.New("context switching is disabled")

// ErrSwitchSourceInvalid indicates the requested source cannot be read.
var ErrSwitchSourceInvalid = errors.New("config source is not accessible")

// State is the coordinator's state.
type State int

const (
	Idle State = iota
	Switching
)

func (s State) String() string {
	if s == Switching {
		return "switching"
	}
	return "idle"
}

// Fleet is what the coordinator drives.
type Fleet interface {
	// Settings returns the settings of the current snapshot.
	Settings() routing.Settings
	// Reload makes source active and runs a full pass, returning the number
	// of worker tools published.
	Reload(ctx context.Context, source string) (int, error)
}

// Result is the outcome of one switch request.
type Result struct {
	Success   bool
	ToolCount int
	Message   string
	// Err is the failure cause, nil on success.
	Err error
}

// ToolResult renders the result for an MCP caller.
func (r Result) ToolResult() *mcp.CallToolResult {
	fields := map[string]any{
		"success":   r.Success,
		"toolCount": r.ToolCount,
	}
	result := mcp.NewToolResultStructured(fields, r.Message)
	result.Meta = mcp.NewMetaFromMap(map[string]any{
		"success":   r.Success,
		"toolCount": r.ToolCount,
	})
	return result
}

// Coordinator serializes context switches.
type Coordinator struct {
	fleet  Fleet
	logger *slog.Logger

	mu    sync.Mutex
	state State

	stateMu sync.RWMutex
}

// NewCoordinator creates a Coordinator for the fleet.
func NewCoordinator(fleet Fleet, logger *slog.Logger) (*Coordinator, error) {
	if fleet == nil {
		return nil, errors.New("fleet is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{fleet: fleet, logger: logger}, nil
}

// State reports whether a switch is in progress.
func (c *Coordinator) State() State {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Coordinator) setState(s State) {
	c.stateMu.Lock()
	c.state = s
	c.stateMu.Unlock()
}

// Switch replaces the fleet with one built from source. It never returns an
// error; failures are reported in the Result.
func (c *Coordinator) Switch(ctx context.Context, source string) Result {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.fleet.Settings().SwitchingEnabled {
		c.logger.Info("context switch rejected", "source", source, "reason", "disabled")
		metrics.RecordSwitch("rejected")
		return Result{
			Message: "Context switching is disabled in the current configuration.",
			Err:     ErrSwitchRejected,
		}
	}

	path, err := checkSource(source)
	if err != nil {
		c.logger.Warn("context switch source invalid", "source", source, "error", err)
		metrics.RecordSwitch("invalid")
		return Result{
			Message: fmt.Sprintf("Failed to switch context: %v", err),
			Err:     err,
		}
	}

	c.setState(Switching)
	defer c.setState(Idle)

	c.logger.Info("=== CONTEXT SWITCH ===", "source", path)

	count, err := c.fleet.Reload(ctx, path)
	if err != nil {
		c.logger.Error("context switch failed", "source", path, "error", err)
		metrics.RecordSwitch("failed")
		return Result{
			Message: fmt.Sprintf("Switched to %s but no tools could be loaded: %v", path, err),
			Err:     err,
		}
	}

	c.logger.Info("context switch complete", "source", path, "tools", count)
	metrics.RecordSwitch("success")
	return Result{
		Success:   true,
		ToolCount: count,
		Message:   fmt.Sprintf("Switched context to %s. %d tools available.", path, count),
	}
}

// checkSource resolves source to an absolute path of a readable file.
func checkSource(source string) (string, error) {
	if source == "" {
		return "", fmt.Errorf("%w: configSource is required", ErrSwitchSourceInvalid)
	}
	path, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSwitchSourceInvalid, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSwitchSourceInvalid, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrSwitchSourceInvalid, path)
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSwitchSourceInvalid, err)
	}
	f.Close()
	return path, nil
}

// Tool is the context_switch definition.
func Tool() mcp.Tool {
	return mcp.NewTool(ToolName,
		mcp.WithDescription("Switch the active MCP server configuration. Stops every running server, starts the servers listed in the new config source and republishes the tool list."),
		mcp.WithString("configSource",
			mcp.Required(),
			mcp.Description("Path to the MCP server configuration file to switch to"),
		),
	)
}

// Capability wires the coordinator into the routing table.
func (c *Coordinator) Capability() routing.SelfCapability {
	return routing.SelfCapability{
		Tool: Tool(),
		Handler: func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error) {
			source, _ := args["configSource"].(string)
			return c.Switch(ctx, source).ToolResult(), nil
		},
	}
}
