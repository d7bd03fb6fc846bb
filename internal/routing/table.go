// ABOUTME: Routing table built in full by each aggregation pass
// ABOUTME: Resolves collisions (logged, last writer wins) and records displayed names

package routing

import (
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/coven-switchboard/internal/catalog"
)

// Table maps canonical tool names to owners and holds the published catalog.
// It is immutable once built.
type Table struct {
	namer     Namer
	owners    map[string]Owner
	canonical map[string]string // displayed -> canonical

	tools     []mcp.Tool
	toolIndex map[string]int // displayed -> index in tools

	resourceOwners map[string]string // uri -> worker
	resources      []mcp.Resource
	resourceIndex  map[string]int
}

// Lookup returns the owner of a canonical name.
func (t *Table) Lookup(canonical string) (Owner, bool) {
	o, ok := t.owners[canonical]
	return o, ok
}

// Canonical recovers the canonical name for a name a caller used.
func (t *Table) Canonical(called string) string {
	if name, ok := t.canonical[called]; ok {
		return name
	}
	return t.namer.Canonical(called)
}

// Namer returns the namer the table was built with.
func (t *Table) Namer() Namer { return t.namer }

// Tools returns the published tools in encounter order.
func (t *Table) Tools() []mcp.Tool {
	return append([]mcp.Tool(nil), t.tools...)
}

// Resources returns the published resources in encounter order.
func (t *Table) Resources() []mcp.Resource {
	return append([]mcp.Resource(nil), t.resources...)
}

// ResourceOwner returns the worker serving a resource URI.
func (t *Table) ResourceOwner(uri string) (string, bool) {
	w, ok := t.resourceOwners[uri]
	return w, ok
}

// WorkerToolCount counts published tools served by workers.
func (t *Table) WorkerToolCount() int {
	n := 0
	for _, tool := range t.tools {
		if o, ok := t.owners[t.Canonical(tool.Name)]; ok && o.Kind == WorkerOwned {
			n++
		}
	}
	return n
}

// Resolve builds the table for one pass from per-worker contributions, in
// order. A name claimed twice is logged once and goes to the later claimant.
// The self capability is added last and always wins its name.
func Resolve(logger *slog.Logger, contribs []catalog.Contribution, settings Settings, self SelfCapability) *Table {
	if logger == nil {
		logger = slog.Default()
	}

	t := &Table{
		namer:          NewNamer(settings.Suffix, self.Tool.Name),
		owners:         make(map[string]Owner),
		canonical:      make(map[string]string),
		toolIndex:      make(map[string]int),
		resourceOwners: make(map[string]string),
		resourceIndex:  make(map[string]int),
	}
	collided := make(map[string]bool)

	claim := func(name string, owner Owner) {
		if prev, exists := t.owners[name]; exists && !collided[name] {
			collided[name] = true
			logger.Warn("duplicate tool name, overwriting",
				"tool", name,
				"old_owner", prev.String(),
				"new_owner", owner.String(),
			)
		}
		t.owners[name] = owner
	}

	for _, c := range contribs {
		for _, tool := range c.Tools {
			claim(tool.Name, OwnedBy(c.Worker))

			published := tool
			published.Name = t.namer.Display(tool.Name)
			// "foo_cs" and "foo" both display as "foo_cs"; the later one
			// takes the published name and the earlier becomes unreachable.
			if prev, ok := t.canonical[published.Name]; ok && prev != tool.Name {
				if !collided[published.Name] {
					collided[published.Name] = true
					logger.Warn("duplicate tool name, overwriting",
						"tool", published.Name,
						"old_owner", t.owners[prev].String(),
						"new_owner", c.Worker,
					)
				}
				delete(t.owners, prev)
			}
			t.publish(published, tool.Name)
		}
		for _, res := range c.Resources {
			if prev, exists := t.resourceOwners[res.URI]; exists && prev != c.Worker {
				logger.Warn("duplicate resource URI, overwriting",
					"uri", res.URI,
					"old_owner", prev,
					"new_owner", c.Worker,
				)
			}
			t.resourceOwners[res.URI] = c.Worker
			if i, ok := t.resourceIndex[res.URI]; ok {
				t.resources[i] = res
				continue
			}
			t.resourceIndex[res.URI] = len(t.resources)
			t.resources = append(t.resources, res)
		}
	}

	if self.Tool.Name != "" {
		claim(self.Tool.Name, OwnedBySelf(self.Handler))
		t.publish(self.Tool, self.Tool.Name)
	}

	return t
}

// publish adds or replaces the displayed tool.
func (t *Table) publish(tool mcp.Tool, canonical string) {
	t.canonical[tool.Name] = canonical
	if i, ok := t.toolIndex[tool.Name]; ok {
		t.tools[i] = tool
		return
	}
	t.toolIndex[tool.Name] = len(t.tools)
	t.tools = append(t.tools, tool)
}
