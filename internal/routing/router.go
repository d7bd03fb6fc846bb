// ABOUTME: Routes incoming tool calls to the owning worker or the switchboard itself
// ABOUTME: Reads one snapshot per call, so a call never sees a half-switched table

package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/coven-switchboard/internal/mcpclient"
	"github.com/2389/coven-switchboard/internal/metrics"
)

// ErrCapabilityNotFound indicates no owner is registered for the called name.
var ErrCapabilityNotFound = errors.New("capability not found")

// ErrWorkerUnavailable indicates the owning worker is no longer running.
var ErrWorkerUnavailable = errors.New("worker unavailable")

// ErrResourceNotFound indicates no worker serves the requested URI.
var ErrResourceNotFound = errors.New("resource not found")

// DefaultTimeout bounds a single forwarded call.
const DefaultTimeout = 2 * time.Minute

// LiveSet looks up running workers by name.
type LiveSet interface {
	Lookup(name string) (mcpclient.Endpoint, bool)
}

// LiveSetFunc adapts a function to LiveSet.
type LiveSetFunc func(name string) (mcpclient.Endpoint, bool)

// Lookup calls f.
func (f LiveSetFunc) Lookup(name string) (mcpclient.Endpoint, bool) { return f(name) }

// RouterConfig contains configuration options for the Router.
type RouterConfig struct {
	Snapshots *Store
	Workers   LiveSet
	Dialer    mcpclient.Dialer
	Logger    *slog.Logger
	Timeout   time.Duration
}

// Router dispatches calls using the current snapshot.
type Router struct {
	snapshots *Store
	workers   LiveSet
	dialer    mcpclient.Dialer
	logger    *slog.Logger
	timeout   time.Duration
}

// NewRouter creates a new Router with the given configuration.
func NewRouter(cfg RouterConfig) (*Router, error) {
	if cfg.Snapshots == nil {
		return nil, errors.New("snapshot store is required")
	}
	if cfg.Workers == nil {
		return nil, errors.New("live worker set is required")
	}
	if cfg.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{
		snapshots: cfg.Snapshots,
		workers:   cfg.Workers,
		dialer:    cfg.Dialer,
		logger:    logger,
		timeout:   timeout,
	}, nil
}

// Route forwards a call made under a displayed name. Arguments are passed to
// the worker untouched.
func (r *Router) Route(ctx context.Context, called string, args any) (*mcp.CallToolResult, error) {
	start := time.Now()
	requestID := uuid.NewString()

	snap := r.snapshots.Load()
	canonical := snap.Table.Canonical(called)

	owner, ok := snap.Table.Lookup(canonical)
	if !ok {
		r.logger.Debug("tool not found in routing table",
			"tool", called,
			"canonical", canonical,
			"request_id", requestID,
		)
		metrics.RecordToolCall("not_found", time.Since(start))
		return nil, fmt.Errorf("%w: %s", ErrCapabilityNotFound, called)
	}

	if owner.Kind == SelfOwned {
		r.logger.Info("→ dispatching to switchboard",
			"tool", canonical,
			"request_id", requestID,
		)
		m, err := argumentMap(args)
		if err != nil {
			metrics.RecordToolCall("error", time.Since(start))
			return nil, err
		}
		result, err := owner.Handler(ctx, m)
		metrics.RecordToolCall(outcome(err), time.Since(start))
		return result, err
	}

	ep, live := r.workers.Lookup(owner.Worker)
	if !live {
		r.logger.Warn("routing table references stopped worker",
			"tool", canonical,
			"worker", owner.Worker,
			"snapshot", snap.Version,
			"request_id", requestID,
		)
		metrics.RecordToolCall("unavailable", time.Since(start))
		return nil, fmt.Errorf("%w: %s", ErrWorkerUnavailable, owner.Worker)
	}

	r.logger.Info("→ routing tool call",
		"tool", canonical,
		"worker", owner.Worker,
		"request_id", requestID,
	)

	result, err := r.forward(ctx, ep, canonical, args)
	if err != nil {
		r.logger.Warn("tool call failed",
			"tool", canonical,
			"worker", owner.Worker,
			"request_id", requestID,
			"error", err,
		)
		metrics.RecordToolCall(outcome(err), time.Since(start))
		return nil, err
	}

	r.logger.Info("← tool call completed",
		"tool", canonical,
		"worker", owner.Worker,
		"request_id", requestID,
		"is_error", result.IsError,
		"duration", time.Since(start),
	)
	metrics.RecordToolCall("success", time.Since(start))
	return result, nil
}

func (r *Router) forward(ctx context.Context, ep mcpclient.Endpoint, name string, args any) (*mcp.CallToolResult, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.dialer.Dial(ctx, ep)
	if err != nil {
		if errors.Is(err, mcpclient.ErrEndpointGone) {
			return nil, fmt.Errorf("%w: %s", ErrWorkerUnavailable, ep.Name())
		}
		return nil, fmt.Errorf("connecting to %s: %w", ep.Name(), err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			r.logger.Debug("closing worker session", "worker", ep.Name(), "error", cerr)
		}
	}()

	return sess.CallTool(ctx, name, args)
}

// ReadResource forwards a resource read to the worker that listed the URI.
func (r *Router) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	snap := r.snapshots.Load()
	owner, ok := snap.Table.ResourceOwner(uri)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResourceNotFound, uri)
	}
	ep, live := r.workers.Lookup(owner)
	if !live {
		return nil, fmt.Errorf("%w: %s", ErrWorkerUnavailable, owner)
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	sess, err := r.dialer.Dial(ctx, ep)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", owner, err)
	}
	defer sess.Close()

	r.logger.Debug("reading resource", "uri", uri, "worker", owner)
	return sess.ReadResource(ctx, uri)
}

// argumentMap normalizes call arguments for in-process handlers.
func argumentMap(args any) (map[string]any, error) {
	switch v := args.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	case json.RawMessage:
		return decodeArguments(v)
	case []byte:
		return decodeArguments(v)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encoding arguments: %w", err)
		}
		return decodeArguments(data)
	}
}

func decodeArguments(data []byte) (map[string]any, error) {
	m := map[string]any{}
	if len(data) == 0 || string(data) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("arguments must be an object: %w", err)
	}
	return m, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrWorkerUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
