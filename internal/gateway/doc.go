// Package gateway orchestrates the coven-switchboard components.
//
// # Overview
//
// The Gateway owns every moving part: the worker manager, the client pool,
// the aggregator, the snapshot store and router, the context switch
// coordinator, the MCP front end and the config watcher.
//
// # Aggregation Pass
//
// A pass is the only way the catalog changes:
//
//  1. find and load the server list (config.FindSource, config.LoadServers)
//  2. stop every running worker
//  3. start one worker per server entry
//  4. query all workers concurrently (catalog.Aggregator)
//  5. build the routing table (routing.Resolve)
//  6. swap in the new snapshot and publish it to MCP clients
//
// Passes run at startup, after a context switch, when the watched source
// changes, and on Refresh. They are serialized; calls keep being served from
// the previous snapshot until the swap.
//
// If no server list can be loaded the pass still completes and publishes a
// catalog holding only context_switch.
//
// # HTTP Endpoints
//
// With the http transport:
//
//   - /mcp, /mcp/<token> - MCP Streamable HTTP
//   - GET /health - Liveness check
//   - GET /health/ready - Ready once a config source has been loaded
//   - GET /metrics - Prometheus metrics (metrics.path)
//
// # Shutdown
//
// Run stops every worker before returning. Shutdown may also be called
// directly and is idempotent.
package gateway
