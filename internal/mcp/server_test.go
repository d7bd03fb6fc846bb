// ABOUTME: Tests for the inbound MCP server using the mcp-go in-process client
// ABOUTME: Validates publishing, call forwarding, error mapping and HTTP token auth

package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/client"
	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/coven-switchboard/internal/catalog"
	"github.com/2389/coven-switchboard/internal/mcpclient/mcpclienttest"
	"github.com/2389/coven-switchboard/internal/routing"
)

type call struct {
	Name string
	Args any
}

type fakeBackend struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (b *fakeBackend) Call(ctx context.Context, name string, args any) (*mcpgo.CallToolResult, error) {
	b.mu.Lock()
	b.calls = append(b.calls, call{Name: name, Args: args})
	err := b.err
	b.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return mcpgo.NewToolResultText("called " + name), nil
}

func (b *fakeBackend) ReadResource(ctx context.Context, uri string) ([]mcpgo.ResourceContents, error) {
	return []mcpgo.ResourceContents{
		mcpgo.TextResourceContents{URI: uri, MIMEType: "text/plain", Text: "contents of " + uri},
	}, nil
}

func testSnapshot(tools ...string) *routing.Snapshot {
	contribs := []catalog.Contribution{{
		Worker:    "fs",
		Tools:     mcpclienttest.Tools(tools...),
		Resources: []mcpgo.Resource{mcpgo.NewResource("file:///motd", "motd")},
	}}
	return &routing.Snapshot{
		Version:  1,
		Settings: routing.DefaultSettings(),
		Table:    routing.Resolve(slog.Default(), contribs, routing.DefaultSettings(), routing.SelfCapability{}),
	}
}

func connect(t *testing.T, s *Server) *client.Client {
	t.Helper()
	c, err := client.NewInProcessClient(s.MCPServer())
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Start(ctx))

	req := mcpgo.InitializeRequest{}
	req.Params.ProtocolVersion = mcpgo.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcpgo.Implementation{Name: "test", Version: "0.0.0"}
	_, err = c.Initialize(ctx, req)
	require.NoError(t, err)
	return c
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(Config{})
	require.Error(t, err)

	_, err = NewServer(Config{Backend: &fakeBackend{}, RequireAuth: true})
	require.Error(t, err)
}

func TestPublishAndCall(t *testing.T) {
	backend := &fakeBackend{}
	s, err := NewServer(Config{Backend: backend, Logger: slog.Default()})
	require.NoError(t, err)
	s.Publish(testSnapshot("read_file", "write_file"))

	c := connect(t, s)
	ctx := context.Background()

	listed, err := c.ListTools(ctx, mcpgo.ListToolsRequest{})
	require.NoError(t, err)
	names := make([]string, 0, len(listed.Tools))
	for _, tool := range listed.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"read_file_cs", "write_file_cs"}, names)

	req := mcpgo.CallToolRequest{}
	req.Params.Name = "read_file_cs"
	req.Params.Arguments = map[string]any{"path": "/etc/motd"}
	result, err := c.CallTool(ctx, req)
	require.NoError(t, err)
	assert.False(t, result.IsError)
	assert.Equal(t, "called read_file_cs", result.Content[0].(mcpgo.TextContent).Text)

	require.Len(t, backend.calls, 1)
	assert.Equal(t, "read_file_cs", backend.calls[0].Name)
	assert.Equal(t, map[string]any{"path": "/etc/motd"}, backend.calls[0].Args)

	resources, err := c.ListResources(ctx, mcpgo.ListResourcesRequest{})
	require.NoError(t, err)
	require.Len(t, resources.Resources, 1)

	readReq := mcpgo.ReadResourceRequest{}
	readReq.Params.URI = "file:///motd"
	read, err := c.ReadResource(ctx, readReq)
	require.NoError(t, err)
	require.Len(t, read.Contents, 1)
	assert.Equal(t, "contents of file:///motd", read.Contents[0].(mcpgo.TextResourceContents).Text)
}

func TestPublishReplacesCatalog(t *testing.T) {
	s, err := NewServer(Config{Backend: &fakeBackend{}})
	require.NoError(t, err)
	s.Publish(testSnapshot("old_tool"))
	s.Publish(testSnapshot("new_tool"))

	c := connect(t, s)
	listed, err := c.ListTools(context.Background(), mcpgo.ListToolsRequest{})
	require.NoError(t, err)
	require.Len(t, listed.Tools, 1)
	assert.Equal(t, "new_tool_cs", listed.Tools[0].Name)
}

func TestHandleToolError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("%w: x", routing.ErrCapabilityNotFound), "tool not found"},
		{fmt.Errorf("%w: fs", routing.ErrWorkerUnavailable), "no longer running"},
		{context.DeadlineExceeded, "timed out"},
		{context.Canceled, "cancelled"},
		{errors.New("disk on fire"), "disk on fire"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			backend := &fakeBackend{err: tt.err}
			s, err := NewServer(Config{Backend: backend})
			require.NoError(t, err)
			s.Publish(testSnapshot("read_file"))

			c := connect(t, s)
			req := mcpgo.CallToolRequest{}
			req.Params.Name = "read_file_cs"
			result, err := c.CallTool(context.Background(), req)
			require.NoError(t, err, "routing errors are tool results, not protocol errors")
			assert.True(t, result.IsError)
			assert.Contains(t, result.Content[0].(mcpgo.TextContent).Text, tt.want)
		})
	}
}

func TestHTTPAuth(t *testing.T) {
	store := NewTokenStore([]string{"good-token"})
	s, err := NewServer(Config{Backend: &fakeBackend{}, TokenStore: store, RequireAuth: true})
	require.NoError(t, err)

	mux := http.NewServeMux()
	s.RegisterRoutes(mux)

	initBody := `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"2025-03-26","capabilities":{},"clientInfo":{"name":"t","version":"1"}}}`

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/mcp", "", http.StatusUnauthorized},
		{"bad bearer", "/mcp", "Bearer nope", http.StatusUnauthorized},
		{"malformed header", "/mcp", "Basic abc", http.StatusUnauthorized},
		{"good bearer", "/mcp", "Bearer good-token", http.StatusOK},
		{"path token", "/mcp/good-token", "", http.StatusOK},
		{"query token", "/mcp?token=good-token", "", http.StatusOK},
		{"nested path", "/mcp/good-token/extra", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(initBody))
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Accept", "application/json, text/event-stream")
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHTTPOptionalAuth(t *testing.T) {
	s, err := NewServer(Config{Backend: &fakeBackend{}, TokenStore: NewTokenStore(nil)})
	require.NoError(t, err)

	r := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	_, err = s.authenticate(r)
	require.ErrorIs(t, err, errNoToken)

	r = httptest.NewRequest(http.MethodPost, "/mcp?token=unknown", nil)
	_, err = s.authenticate(r)
	require.ErrorIs(t, err, errInvalidToken, "a wrong token is rejected even without required auth")
}

func TestTokenStore(t *testing.T) {
	store := NewTokenStore([]string{"a"})
	assert.Equal(t, 1, store.TokenCount())

	tok := store.CreateToken("cli")
	label, ok := store.Lookup(tok)
	require.True(t, ok)
	assert.Equal(t, "cli", label)

	store.InvalidateToken(tok)
	_, ok = store.Lookup(tok)
	assert.False(t, ok)
}
