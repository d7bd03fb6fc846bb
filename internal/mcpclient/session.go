// ABOUTME: Dialer and Session abstractions over a worker's MCP stream
// ABOUTME: Lets the aggregator and router run against fakes in tests

package mcpclient

import (
	"context"
	"errors"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrEndpointGone indicates the worker exited before or during the dial.
var ErrEndpointGone = errors.New("worker process has exited")

// Endpoint is the part of a running worker a client needs.
type Endpoint interface {
	Name() string
	Stdin() io.WriteCloser
	Stdout() io.Reader
	Done() <-chan struct{}
}

// Session is a leased connection to one worker.
type Session interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error)
	ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error)
	Close() error
}

// Dialer opens sessions to workers.
type Dialer interface {
	Dial(ctx context.Context, ep Endpoint) (Session, error)
}
