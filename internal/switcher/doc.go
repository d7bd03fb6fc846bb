// ABOUTME: Package switcher replaces the worker fleet when a new config source is requested
// ABOUTME: Exposes the context_switch tool served by the switchboard itself

// Package switcher implements the context switch coordinator.
//
// A switch is rejected when switching is disabled, fails safe when the new
// source cannot be read (the current fleet keeps running), and otherwise runs
// a full aggregation pass against the new source. Switches are serialized.
package switcher
