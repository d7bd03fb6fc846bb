// ABOUTME: Inbound MCP server publishing the switchboard catalog over stdio or HTTP
// ABOUTME: Maps routing errors to tool-error results and guards HTTP access with bearer tokens

package mcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	mcpgo "github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/2389/coven-switchboard/internal/routing"
)

// Backend executes calls against the current snapshot.
type Backend interface {
	Call(ctx context.Context, name string, args any) (*mcpgo.CallToolResult, error)
	ReadResource(ctx context.Context, uri string) ([]mcpgo.ResourceContents, error)
}

// Config holds configuration for the MCP server.
type Config struct {
	Backend      Backend
	Logger       *slog.Logger
	Name         string
	Version      string
	Instructions string
	TokenStore   *TokenStore
	RequireAuth  bool // If true, reject HTTP requests without a valid token
}

// Server is the MCP face of the switchboard.
type Server struct {
	backend     Backend
	logger      *slog.Logger
	mcp         *server.MCPServer
	tokenStore  *TokenStore
	requireAuth bool
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Backend == nil {
		return nil, errors.New("backend is required")
	}
	if cfg.RequireAuth && cfg.TokenStore == nil {
		return nil, errors.New("token store required when auth is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.Name
	if name == "" {
		name = "coven-switchboard"
	}
	version := cfg.Version
	if version == "" {
		version = "dev"
	}

	opts := []server.ServerOption{
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
	}
	if cfg.Instructions != "" {
		opts = append(opts, server.WithInstructions(cfg.Instructions))
	}

	return &Server{
		backend:     cfg.Backend,
		logger:      logger,
		mcp:         server.NewMCPServer(name, version, opts...),
		tokenStore:  cfg.TokenStore,
		requireAuth: cfg.RequireAuth,
	}, nil
}

// MCPServer exposes the underlying mcp-go server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Publish replaces the served catalog with the snapshot's. Connected clients
// receive a list_changed notification.
func (s *Server) Publish(snap *routing.Snapshot) {
	tools := snap.Table.Tools()
	serverTools := make([]server.ServerTool, 0, len(tools))
	for _, tool := range tools {
		serverTools = append(serverTools, server.ServerTool{
			Tool:    tool,
			Handler: s.toolHandler(tool.Name),
		})
	}
	s.mcp.SetTools(serverTools...)

	resources := snap.Table.Resources()
	serverResources := make([]server.ServerResource, 0, len(resources))
	for _, res := range resources {
		serverResources = append(serverResources, server.ServerResource{
			Resource: res,
			Handler:  s.readResource,
		})
	}
	s.mcp.SetResources(serverResources...)

	s.logger.Debug("catalog served",
		"snapshot", snap.Version,
		"tools", len(serverTools),
		"resources", len(serverResources),
	)
}

func (s *Server) toolHandler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcpgo.CallToolRequest) (*mcpgo.CallToolResult, error) {
		result, err := s.backend.Call(ctx, name, req.Params.Arguments)
		if err != nil {
			return s.handleToolError(name, err), nil
		}
		return result, nil
	}
}

func (s *Server) readResource(ctx context.Context, req mcpgo.ReadResourceRequest) ([]mcpgo.ResourceContents, error) {
	contents, err := s.backend.ReadResource(ctx, req.Params.URI)
	if err != nil {
		s.logger.Warn("resource read failed", "uri", req.Params.URI, "error", err)
		return nil, err
	}
	return contents, nil
}

// handleToolError turns a routing or worker failure into a tool-error result.
func (s *Server) handleToolError(toolName string, err error) *mcpgo.CallToolResult {
	s.logger.Warn("tool execution failed",
		"tool", toolName,
		"error", err,
	)

	message := fmt.Sprintf("tool execution failed: %v", err)

	switch {
	case errors.Is(err, routing.ErrCapabilityNotFound):
		message = fmt.Sprintf("tool not found: %s", toolName)
	case errors.Is(err, routing.ErrWorkerUnavailable):
		message = fmt.Sprintf("the server providing %s is no longer running", toolName)
	case errors.Is(err, context.DeadlineExceeded):
		message = "tool execution timed out"
	case errors.Is(err, context.Canceled):
		message = "request cancelled"
	}

	return mcpgo.NewToolResultError(message)
}

// ServeStdio serves MCP on the given streams until ctx is done or in closes.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	s.logger.Info("serving MCP on stdio")
	return stdio.Listen(ctx, in, out)
}

// RegisterRoutes registers the MCP endpoint on the given ServeMux.
// Supports both /mcp (bare) and /mcp/<token> (token-in-path) access patterns.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	h := s.requireToken(server.NewStreamableHTTPServer(s.mcp))
	mux.Handle("/mcp", h)
	mux.Handle("/mcp/", h)
}

// This is distinct from "no auth" - if a token was provided, we should reject
// invalid tokens rather than falling through to unauthenticated access.
var errInvalidToken = errors.New("invalid or expired token")

var errNoToken = errors.New("authentication required")

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		label, err := s.authenticate(r)
		if err != nil {
			if errors.Is(err, errNoToken) && !s.requireAuth {
				next.ServeHTTP(w, r)
				return
			}
			s.logger.Debug("rejected MCP request", "remote", r.RemoteAddr, "error", err)
			w.Header().Set("WWW-Authenticate", `Bearer realm="coven-switchboard"`)
			http.Error(w, err.Error(), http.StatusUnauthorized)
			return
		}
		s.logger.Debug("authenticated MCP request", "remote", r.RemoteAddr, "token", label)
		next.ServeHTTP(w, r)
	})
}

// authenticate finds the token in the path, the token query parameter or the
// Authorization header, in that order.
func (s *Server) authenticate(r *http.Request) (string, error) {
	token := ""
	if pathToken := strings.TrimPrefix(r.URL.Path, "/mcp/"); pathToken != "" && pathToken != r.URL.Path {
		pathToken = strings.TrimRight(pathToken, "/")
		if strings.Contains(pathToken, "/") {
			return "", errInvalidToken
		}
		token = pathToken
	} else if q := r.URL.Query().Get("token"); q != "" {
		token = q
	} else if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		if !strings.HasPrefix(authHeader, "Bearer ") {
			return "", errors.New("invalid authorization header format")
		}
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}

	if token == "" {
		return "", errNoToken
	}
	if s.tokenStore == nil {
		return "", errInvalidToken
	}
	label, ok := s.tokenStore.Lookup(token)
	if !ok {
		return "", errInvalidToken
	}
	return label, nil
}
