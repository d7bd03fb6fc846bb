// Package routing resolves capability names to owners and dispatches calls.
//
// # Overview
//
// Every aggregation pass produces a Table: the canonical tool name to owner
// mapping, the displayed-name mapping and the catalog published to callers.
// The Table, the GatewaySettings it was built under and the names of the
// workers that fed it are bundled into a versioned Snapshot. A Store holds
// the current Snapshot behind an atomic pointer, so a call that arrives while
// a pass is running sees either the previous complete snapshot or the next
// one, never a mix.
//
// # Naming
//
// Namer is the single place the disambiguation suffix is applied and
// removed. Display appends the suffix unless the name already ends with it
// or is the self capability; Canonical reverses Display.
//
// # Owners
//
// An Owner is either WorkerOwned, naming the worker that serves the tool, or
// SelfOwned, carrying an in-process handler. The Router dispatches on the
// variant rather than on the tool's name.
//
// # Router
//
//	router, err := routing.NewRouter(routing.RouterConfig{
//	    Snapshots: store,
//	    Workers:   liveSet,
//	    Dialer:    pool,
//	    Logger:    logger,
//	})
//	result, err := router.Route(ctx, "read_file_cs", args)
//
// Route returns ErrCapabilityNotFound when no owner is recorded and
// ErrWorkerUnavailable when the owning worker is no longer running.
package routing
