// ABOUTME: Pool of initialized mcp-go clients, one per running worker
// ABOUTME: Implements Dialer by leasing the worker's client as a Session

package mcpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// PoolConfig holds the dependencies for a Pool.
type PoolConfig struct {
	Logger        *slog.Logger
	ClientName    string
	ClientVersion string
}

// Pool keeps one MCP client per live worker.
type Pool struct {
	logger *slog.Logger
	info   mcp.Implementation

	mu    sync.Mutex
	conns map[Endpoint]*conn
}

type conn struct {
	endpoint Endpoint
	client   *client.Client

	mu           sync.Mutex
	initialized  bool
	hasResources bool
}

// NewPool creates an empty Pool.
func NewPool(cfg PoolConfig) *Pool {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	info := mcp.Implementation{Name: cfg.ClientName, Version: cfg.ClientVersion}
	if info.Name == "" {
		info.Name = "coven-switchboard"
	}
	if info.Version == "" {
		info.Version = "dev"
	}
	return &Pool{
		logger: logger,
		info:   info,
		conns:  make(map[Endpoint]*conn),
	}
}

// Dial returns a Session on the worker's client, initializing it on first use.
func (p *Pool) Dial(ctx context.Context, ep Endpoint) (Session, error) {
	select {
	case <-ep.Done():
		return nil, fmt.Errorf("dialing %s: %w", ep.Name(), ErrEndpointGone)
	default:
	}

	c, err := p.connFor(ep)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", ep.Name(), err)
	}
	if err := c.ready(ctx, p.info); err != nil {
		return nil, fmt.Errorf("initializing %s: %w", ep.Name(), err)
	}
	return &session{conn: c}, nil
}

// Len returns the number of cached clients.
func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.conns)
}

func (p *Pool) connFor(ep Endpoint) (*conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.conns[ep]; ok {
		return c, nil
	}

	t := transport.NewIO(ep.Stdout(), ep.Stdin(), nil)
	cl := client.NewClient(t)
	if err := cl.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("starting client: %w", err)
	}

	c := &conn{endpoint: ep, client: cl}
	p.conns[ep] = c
	go p.evictOnExit(c)
	return c, nil
}

func (p *Pool) evictOnExit(c *conn) {
	<-c.endpoint.Done()

	p.mu.Lock()
	if p.conns[c.endpoint] == c {
		delete(p.conns, c.endpoint)
	}
	p.mu.Unlock()

	// The pipes are already closed by the time the process is reaped.
	_ = c.client.Close()
	p.logger.Debug("dropped client for exited worker", "worker", c.endpoint.Name())
}

func (c *conn) ready(ctx context.Context, info mcp.Implementation) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.initialized {
		return nil
	}

	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = info

	result, err := c.client.Initialize(ctx, req)
	if err != nil {
		return err
	}
	c.initialized = true
	c.hasResources = result.Capabilities.Resources != nil
	return nil
}

// session leases a conn. Close releases the lease; the worker's stream stays open.
type session struct {
	conn *conn
}

func (s *session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	var tools []mcp.Tool
	var cursor mcp.Cursor
	for {
		var page struct {
			Tools      []json.RawMessage `json:"tools"`
			NextCursor mcp.Cursor        `json:"nextCursor,omitempty"`
		}
		params := mcp.PaginatedParams{Cursor: cursor}
		if err := s.request(ctx, mcp.MethodToolsList, params, &page); err != nil {
			return nil, err
		}
		for _, raw := range page.Tools {
			tool, err := DecodeTool(raw)
			if err != nil {
				return nil, err
			}
			tools = append(tools, tool)
		}
		if page.NextCursor == "" {
			return tools, nil
		}
		cursor = page.NextCursor
	}
}

func (s *session) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	if !s.conn.hasResources {
		return nil, nil
	}
	result, err := s.conn.client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err != nil {
		return nil, err
	}
	return result.Resources, nil
}

func (s *session) CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return s.conn.client.CallTool(ctx, req)
}

func (s *session) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	req := mcp.ReadResourceRequest{}
	req.Params.URI = uri
	result, err := s.conn.client.ReadResource(ctx, req)
	if err != nil {
		return nil, err
	}
	return result.Contents, nil
}

func (s *session) Close() error {
	return nil
}

// request sends a raw JSON-RPC request on the worker's transport so the
// response can be decoded without losing fields mcp-go does not model.
func (s *session) request(ctx context.Context, method mcp.MCPMethod, params any, out any) error {
	resp, err := s.conn.client.GetTransport().SendRequest(ctx, transport.JSONRPCRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      mcp.NewRequestId("sw-" + uuid.NewString()),
		Method:  string(method),
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error.AsError())
	}
	if err := json.Unmarshal(resp.Result, out); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// DecodeTool decodes a tool definition, keeping its schemas verbatim.
func DecodeTool(raw json.RawMessage) (mcp.Tool, error) {
	var tool mcp.Tool
	if err := json.Unmarshal(raw, &tool); err != nil {
		return mcp.Tool{}, fmt.Errorf("decoding tool: %w", err)
	}

	var schemas struct {
		InputSchema  json.RawMessage `json:"inputSchema"`
		OutputSchema json.RawMessage `json:"outputSchema"`
	}
	if err := json.Unmarshal(raw, &schemas); err != nil {
		return mcp.Tool{}, fmt.Errorf("decoding tool schema: %w", err)
	}
	if len(schemas.InputSchema) > 0 && string(schemas.InputSchema) != "null" {
		tool.InputSchema = mcp.ToolInputSchema{}
		tool.RawInputSchema = schemas.InputSchema
	}
	if len(schemas.OutputSchema) > 0 && string(schemas.OutputSchema) != "null" {
		tool.OutputSchema = mcp.ToolOutputSchema{}
		tool.RawOutputSchema = schemas.OutputSchema
	}
	return tool, nil
}
