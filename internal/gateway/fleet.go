// ABOUTME: Full aggregation passes: load source, replace workers, aggregate, resolve, swap
// ABOUTME: Also the call surface used by the MCP front end and the context switch tool

package gateway

import (
	"context"
	"errors"
	"time"

	mcpgo "github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/coven-switchboard/internal/catalog"
	"github.com/2389/coven-switchboard/internal/config"
	"github.com/2389/coven-switchboard/internal/mcpclient"
	"github.com/2389/coven-switchboard/internal/metrics"
	"github.com/2389/coven-switchboard/internal/routing"
	"github.com/2389/coven-switchboard/internal/switcher"
	"github.com/2389/coven-switchboard/internal/worker"
)

// ErrClosed is returned by passes that start after Shutdown.
var ErrClosed = errors.New("switchboard is shut down")

// Refresh runs a full pass against the active source, or the configured
// search path when no switch has happened yet. The returned snapshot is
// always published, even when the error is non-nil.
func (g *Gateway) Refresh(ctx context.Context) (*routing.Snapshot, error) {
	source := g.ActiveSource()
	if source == "" {
		source = g.config.Sources.Path
	}
	return g.pass(ctx, source)
}

// Reload makes source the active config source and runs a full pass. It
// returns the number of worker tools published.
func (g *Gateway) Reload(ctx context.Context, source string) (int, error) {
	g.sourceMu.Lock()
	g.activeSource = source
	g.sourceMu.Unlock()

	snap, err := g.pass(ctx, source)
	if err != nil {
		return 0, err
	}
	return snap.Table.WorkerToolCount(), nil
}

// Switch runs a context switch as if the context_switch tool had been called.
func (g *Gateway) Switch(ctx context.Context, source string) switcher.Result {
	return g.switcher.Switch(ctx, source)
}

// pass rebuilds everything from scratch. Whatever happens, a complete
// snapshot is swapped in before it returns.
func (g *Gateway) pass(ctx context.Context, explicit string) (*routing.Snapshot, error) {
	g.passMu.Lock()
	defer g.passMu.Unlock()

	if g.closed {
		return g.snapshots.Load(), ErrClosed
	}

	start := time.Now()

	settings := routing.DefaultSettings()
	var specs []worker.Spec

	servers, loadErr := g.loadServers(explicit)
	source := ""
	if loadErr != nil {
		g.logger.Warn("no usable server configuration, publishing empty catalog",
			"source", explicit,
			"error", loadErr,
		)
	} else {
		settings = servers.Settings
		specs = servers.Servers
		source = servers.Path
	}

	// Stopping must finish even if the caller gives up.
	g.workers.StopAll(context.WithoutCancel(ctx))

	running := g.workers.Start(specs)
	endpoints := make([]mcpclient.Endpoint, 0, len(running))
	names := make([]string, 0, len(running))
	for _, w := range running {
		endpoints = append(endpoints, w)
		names = append(names, w.Name())
	}

	// The new workers are already running; their catalog is published even
	// if the caller gives up. Each query carries its own timeout.
	contribs := g.aggregator.Aggregate(context.WithoutCancel(ctx), endpoints)
	table := routing.Resolve(g.logger, contribs, settings, g.self)

	snap := g.snapshots.Swap(&routing.Snapshot{
		Settings: settings,
		Table:    table,
		Workers:  names,
		Source:   source,
	})
	g.publish(snap)

	failed := len(catalog.Failed(contribs))
	outcome := "success"
	switch {
	case loadErr != nil:
		outcome = "config_unavailable"
	case failed > 0:
		outcome = "partial"
	}
	metrics.RecordPass(outcome, time.Since(start), snap.Table.WorkerToolCount(), len(names))

	g.logger.Info("=== CATALOG PUBLISHED ===",
		"snapshot", snap.Version,
		"source", source,
		"workers", len(names),
		"failed_workers", failed,
		"tools", snap.Table.WorkerToolCount(),
		"resources", len(snap.Table.Resources()),
		"switching_enabled", settings.SwitchingEnabled,
		"suffix", settings.Suffix,
		"duration", time.Since(start),
	)

	return snap, loadErr
}

func (g *Gateway) loadServers(explicit string) (*config.Servers, error) {
	path, err := config.FindSource(explicit, g.config.Sources.SearchPaths)
	if err != nil {
		return nil, err
	}
	return config.LoadServers(path)
}

func (g *Gateway) publish(snap *routing.Snapshot) {
	g.mcpServer.Publish(snap)
	if g.watcher != nil && snap.Source != "" {
		if err := g.watcher.Watch(snap.Source); err != nil {
			g.logger.Warn("cannot watch config source", "source", snap.Source, "error", err)
		}
	}
}

// Settings returns the settings of the current snapshot.
func (g *Gateway) Settings() routing.Settings {
	return g.snapshots.Load().Settings
}

// Snapshot returns the current snapshot.
func (g *Gateway) Snapshot() *routing.Snapshot {
	return g.snapshots.Load()
}

// ActiveSource returns the source chosen by the last switch, if any.
func (g *Gateway) ActiveSource() string {
	g.sourceMu.RLock()
	defer g.sourceMu.RUnlock()
	return g.activeSource
}

// Call routes a tool call by the name the caller used.
func (g *Gateway) Call(ctx context.Context, name string, args any) (*mcpgo.CallToolResult, error) {
	return g.router.Route(ctx, name, args)
}

// ReadResource routes a resource read by URI.
func (g *Gateway) ReadResource(ctx context.Context, uri string) ([]mcpgo.ResourceContents, error) {
	return g.router.ReadResource(ctx, uri)
}

// IsConfigUnavailable reports whether err means no server list could be used.
func IsConfigUnavailable(err error) bool {
	return errors.Is(err, config.ErrConfigUnavailable)
}
