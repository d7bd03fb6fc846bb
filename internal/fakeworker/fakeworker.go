// ABOUTME: Minimal MCP stdio server used as a stand-in worker in tests and manual runs
// ABOUTME: Configured through FAKE_WORKER_* environment variables so specs can describe it

// Package fakeworker is a small MCP server that exposes configurable echo
// tools. Tests re-execute their own binary with Enabled set in the
// environment; cmd/fake-worker wraps it for manual end-to-end runs.
package fakeworker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Environment variables understood by the fake worker.
const (
	EnvEnabled   = "FAKE_WORKER"
	EnvName      = "FAKE_WORKER_NAME"
	EnvTools     = "FAKE_WORKER_TOOLS"
	EnvResources = "FAKE_WORKER_RESOURCES"
	EnvMode      = "FAKE_WORKER_MODE"
)

// Modes.
const (
	ModeServe = ""
	// ModeHang reads requests but never answers them.
	ModeHang = "hang"
	// ModeExit exits immediately without serving.
	ModeExit = "exit"
)

// Options describe what the fake worker exposes.
type Options struct {
	Name      string
	Tools     []string
	Resources []string
	Mode      string
}

// Echo is the structured payload every fake tool returns as text.
type Echo struct {
	Server    string         `json:"server"`
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Enabled reports whether the current process was started as a fake worker.
func Enabled() bool {
	return os.Getenv(EnvEnabled) == "1"
}

// OptionsFromEnv reads Options from the process environment.
func OptionsFromEnv() Options {
	return Options{
		Name:      os.Getenv(EnvName),
		Tools:     splitList(os.Getenv(EnvTools)),
		Resources: splitList(os.Getenv(EnvResources)),
		Mode:      os.Getenv(EnvMode),
	}
}

// Env renders the options as a worker environment block.
func (o Options) Env() map[string]string {
	env := map[string]string{
		EnvEnabled: "1",
		EnvName:    o.Name,
		EnvTools:   strings.Join(o.Tools, ","),
	}
	if len(o.Resources) > 0 {
		env[EnvResources] = strings.Join(o.Resources, ",")
	}
	if o.Mode != "" {
		env[EnvMode] = o.Mode
	}
	return env
}

// NewServer builds the MCP server for the options.
func NewServer(o Options) *server.MCPServer {
	name := o.Name
	if name == "" {
		name = "fake-worker"
	}
	s := server.NewMCPServer(name, "0.0.1", server.WithToolCapabilities(false))

	for _, toolName := range o.Tools {
		tool := mcp.NewTool(toolName,
			mcp.WithDescription(fmt.Sprintf("%s from %s", toolName, name)),
			mcp.WithString("text", mcp.Description("Text to echo back")),
		)
		s.AddTool(tool, echoHandler(name))
	}

	for _, uri := range o.Resources {
		resource := mcp.NewResource(uri, uri,
			mcp.WithResourceDescription(fmt.Sprintf("resource from %s", name)),
			mcp.WithMIMEType("text/plain"),
		)
		s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      req.Params.URI,
					MIMEType: "text/plain",
					Text:     fmt.Sprintf("%s served by %s", req.Params.URI, name),
				},
			}, nil
		})
	}
	return s
}

func echoHandler(serverName string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		payload, err := json.Marshal(Echo{
			Server:    serverName,
			Tool:      req.Params.Name,
			Arguments: req.GetArguments(),
		})
		if err != nil {
			return nil, err
		}
		return mcp.NewToolResultText(string(payload)), nil
	}
}

// Serve runs the fake worker on the given streams until in is closed.
func Serve(ctx context.Context, o Options, in io.Reader, out io.Writer) error {
	switch o.Mode {
	case ModeExit:
		return nil
	case ModeHang:
		_, err := io.Copy(io.Discard, in)
		return err
	}
	return server.NewStdioServer(NewServer(o)).Listen(ctx, in, out)
}

// Main serves on the process's stdio and returns an exit code.
func Main() int {
	if err := Serve(context.Background(), OptionsFromEnv(), os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "fake worker: %v\n", err)
		return 1
	}
	return 0
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
