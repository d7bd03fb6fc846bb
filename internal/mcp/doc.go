// Package mcp serves the switchboard's combined catalog to MCP clients.
//
// # Overview
//
// The server is built on mark3labs/mcp-go. Each aggregation pass hands the
// server a routing.Snapshot through Publish, which replaces the served tool
// and resource lists in one step. Connected clients get a list_changed
// notification.
//
// # Transports
//
//   - stdio: ServeStdio, used when the switchboard is launched by an MCP host.
//     Logs must then go to stderr.
//   - HTTP: RegisterRoutes mounts the Streamable HTTP transport on /mcp and
//     /mcp/<token>.
//
// # Authentication
//
// When tokens are configured, HTTP requests must carry one:
//
//	Authorization: Bearer <token>
//	/mcp/<token>
//	/mcp?token=<token>
//
// A token that is present but unknown is always rejected, even when auth is
// not required.
//
// # Errors
//
// Routing failures become tool-error results (isError: true) rather than
// JSON-RPC errors, so the calling model sees the reason:
//
//   - routing.ErrCapabilityNotFound: "tool not found"
//   - routing.ErrWorkerUnavailable: the owning server has exited
//   - context.DeadlineExceeded: "tool execution timed out"
package mcp
