// ABOUTME: Owner variants for routing table entries: a worker or the gateway itself
// ABOUTME: Self-owned entries carry an in-process handler instead of a worker name

package routing

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// OwnerKind distinguishes who serves a tool.
type OwnerKind int

const (
	WorkerOwned OwnerKind = iota
	SelfOwned
)

func (k OwnerKind) String() string {
	switch k {
	case WorkerOwned:
		return "worker"
	case SelfOwned:
		return "self"
	default:
		return "unknown"
	}
}

// SelfHandler executes a tool inside the gateway process.
type SelfHandler func(ctx context.Context, args map[string]any) (*mcp.CallToolResult, error)

// SelfCapability is a tool the gateway serves itself.
type SelfCapability struct {
	Tool    mcp.Tool
	Handler SelfHandler
}

// Owner identifies who serves a tool.
type Owner struct {
	Kind    OwnerKind
	Worker  string
	Handler SelfHandler
}

// OwnedBy returns a worker-owned Owner.
func OwnedBy(worker string) Owner {
	return Owner{Kind: WorkerOwned, Worker: worker}
}

// OwnedBySelf returns a gateway-owned Owner.
func OwnedBySelf(h SelfHandler) Owner {
	return Owner{Kind: SelfOwned, Handler: h}
}

// String names the owner for logs.
func (o Owner) String() string {
	if o.Kind == SelfOwned {
		return "switchboard"
	}
	return o.Worker
}
