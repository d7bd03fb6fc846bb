// ABOUTME: Concurrent capability aggregation across running workers
// ABOUTME: Per-worker timeouts and failure isolation; one Contribution per worker

package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"golang.org/x/sync/errgroup"

	"github.com/2389/coven-switchboard/internal/mcpclient"
	"github.com/2389/coven-switchboard/internal/metrics"
)

// ErrWorkerQueryFailed indicates a worker's capability list could not be retrieved.
var ErrWorkerQueryFailed = errors.New("worker query failed")

// DefaultQueryTimeout bounds a single worker's capability query.
const DefaultQueryTimeout = 10 * time.Second

// Contribution is what one worker added to the catalog.
type Contribution struct {
	Worker    string
	Tools     []mcp.Tool
	Resources []mcp.Resource
	// Err is set when the worker's query failed; Tools and Resources are then empty.
	Err error
}

// AggregatorConfig holds the dependencies for an Aggregator.
type AggregatorConfig struct {
	Dialer       mcpclient.Dialer
	Logger       *slog.Logger
	QueryTimeout time.Duration
}

// Aggregator fans capability queries out to workers.
type Aggregator struct {
	dialer  mcpclient.Dialer
	logger  *slog.Logger
	timeout time.Duration
}

// NewAggregator creates an Aggregator.
func NewAggregator(cfg AggregatorConfig) (*Aggregator, error) {
	if cfg.Dialer == nil {
		return nil, errors.New("dialer is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = DefaultQueryTimeout
	}
	return &Aggregator{
		dialer:  cfg.Dialer,
		logger:  logger,
		timeout: timeout,
	}, nil
}

// Aggregate queries every worker concurrently. It never fails as a whole:
// broken workers yield empty contributions with Err set. Results follow the
// order of workers, whatever order the queries finish in.
func (a *Aggregator) Aggregate(ctx context.Context, workers []mcpclient.Endpoint) []Contribution {
	if len(workers) == 0 {
		return nil
	}

	// Each goroutine owns one slot, so results keep the input order.
	contribs := make([]Contribution, len(workers))

	g, gctx := errgroup.WithContext(ctx)
	for i, ep := range workers {
		g.Go(func() error {
			contribs[i] = a.query(gctx, ep)
			return nil
		})
	}
	_ = g.Wait()

	return contribs
}

func (a *Aggregator) query(ctx context.Context, ep mcpclient.Endpoint) Contribution {
	start := time.Now()
	tools, resources, err := a.list(ctx, ep)
	if err != nil {
		err = fmt.Errorf("%w: %s: %w", ErrWorkerQueryFailed, ep.Name(), err)
		a.logger.Warn("worker query failed, contributing no tools",
			"worker", ep.Name(),
			"duration", time.Since(start),
			"error", err,
		)
		metrics.RecordWorkerQuery(ep.Name(), false)
		return Contribution{Worker: ep.Name(), Err: err}
	}

	a.logger.Debug("worker capabilities listed",
		"worker", ep.Name(),
		"tools", len(tools),
		"resources", len(resources),
		"duration", time.Since(start),
	)
	metrics.RecordWorkerQuery(ep.Name(), true)
	return Contribution{Worker: ep.Name(), Tools: tools, Resources: resources}
}

func (a *Aggregator) list(ctx context.Context, ep mcpclient.Endpoint) ([]mcp.Tool, []mcp.Resource, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	sess, err := a.dialer.Dial(ctx, ep)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			a.logger.Debug("closing worker session", "worker", ep.Name(), "error", cerr)
		}
	}()

	tools, err := sess.ListTools(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing tools: %w", err)
	}

	resources, err := sess.ListResources(ctx)
	if err != nil {
		// Tools are still usable without resources.
		a.logger.Warn("listing resources failed", "worker", ep.Name(), "error", err)
		resources = nil
	}
	return tools, resources, nil
}

// Flatten concatenates the contributions' tools in order.
func Flatten(contribs []Contribution) []mcp.Tool {
	var tools []mcp.Tool
	for _, c := range contribs {
		tools = append(tools, c.Tools...)
	}
	return tools
}

// Failed returns the contributions whose query failed.
func Failed(contribs []Contribution) []Contribution {
	var failed []Contribution
	for _, c := range contribs {
		if c.Err != nil {
			failed = append(failed, c)
		}
	}
	return failed
}
