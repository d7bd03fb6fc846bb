// Package worker owns the child processes that provide tools to the switchboard.
//
// # Overview
//
// A worker is an independently started MCP server reached over its own
// stdin/stdout. The Manager spawns workers from a declarative list of Specs,
// keeps the set of live workers, and stops them with a graceful signal that
// escalates to a forced kill after a grace period.
//
// # Manager
//
//	mgr := worker.NewManager(worker.ManagerConfig{Logger: logger})
//	running := mgr.Start(specs)
//	defer mgr.StopAll(ctx)
//
// Key operations:
//
//   - Start(specs): spawn one process per valid spec; invalid specs are logged and skipped
//   - StopAll(ctx): SIGTERM every worker, SIGKILL whatever outlives the grace period
//   - Lookup(name): find a live worker by name
//   - Live(): snapshot of the live set
//
// # Environment
//
// A child's environment is the gateway's environment overlaid with the
// Spec's Env. PATH is the one exception: the Spec's PATH is appended to the
// gateway's PATH rather than replacing it, and the command is resolved
// against that combined PATH.
//
// # Live Set
//
// The live set changes only through Manager.apply. Spawns, process exits and
// StopAll are all delivered to it as events, so an exit observed by a waiter
// goroutine never races a concurrent Start.
package worker
