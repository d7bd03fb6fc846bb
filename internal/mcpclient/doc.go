// Package mcpclient speaks MCP to running workers.
//
// Each worker process gets one mcp-go client bound to its own stdin/stdout.
// The client is created and initialized on first use and discarded when the
// worker exits. Dial leases that client as a Session; closing the Session
// releases the lease and leaves the worker's stream open for the next caller.
//
// Tool listings are decoded with their inputSchema kept as raw JSON so the
// schema reaches the gateway's own clients exactly as the worker wrote it.
package mcpclient
