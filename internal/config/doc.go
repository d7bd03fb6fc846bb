// Package config handles configuration loading for coven-switchboard.
//
// # Overview
//
// Two kinds of file are loaded here. The gateway config controls the
// switchboard itself (transport, timeouts, watch, auth, logging, metrics).
// The server list, also called the config source, names the MCP servers to
// run and is what a context switch replaces.
//
// # Gateway Config
//
// Locations (in order):
//
//  1. --config flag
//  2. Path from COVEN_SWITCHBOARD_CONFIG
//  3. $XDG_CONFIG_HOME/coven-switchboard/config.yaml (or config.toml)
//
// When none exists Default() is used. Files ending in .toml are decoded as
// TOML, everything else as YAML. Values may reference environment variables
// with ${VAR_NAME}.
//
//	server:
//	  transport: "stdio"        # stdio, http
//	  http_addr: "127.0.0.1:8090"
//	workers:
//	  query_timeout: "10s"
//	  call_timeout: "2m"
//	  stop_grace_period: "2s"
//	sources:
//	  path: "~/.roo/mcp.json"
//	watch:
//	  enabled: true
//	  debounce: "500ms"
//	auth:
//	  tokens: ["${SWITCHBOARD_TOKEN}"]
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//	metrics:
//	  enabled: true
//	  path: "/metrics"
//
// # Server List
//
// Found through sources.path, then $MCP_CONFIG_PATH, ./.roo/mcp.json and
// ~/.roo/mcp.json:
//
//	{
//	  "mcpServers": {
//	    "fs": {"command": "mcp-fs", "args": ["--root", "."], "env": {"PATH": "/opt/bin"}},
//	    "contextSwitcher": {"env": {"SWITCHING_ENABLED": "true", "TOOL_SUFFIX": "_cs"}}
//	  }
//	}
//
// The contextSwitcher entry is never started; its env block carries the
// switchboard settings. YAML and TOML lists use the same shape.
package config
