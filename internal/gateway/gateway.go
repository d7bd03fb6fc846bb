// ABOUTME: Gateway orchestrator that wires workers, aggregation, routing and the MCP front end
// ABOUTME: Owns the serve loop, health endpoints and shutdown of the worker fleet

package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/2389/coven-switchboard/internal/catalog"
	"github.com/2389/coven-switchboard/internal/config"
	"github.com/2389/coven-switchboard/internal/mcp"
	"github.com/2389/coven-switchboard/internal/mcpclient"
	"github.com/2389/coven-switchboard/internal/metrics"
	"github.com/2389/coven-switchboard/internal/routing"
	"github.com/2389/coven-switchboard/internal/switcher"
	"github.com/2389/coven-switchboard/internal/watch"
	"github.com/2389/coven-switchboard/internal/worker"
)

// Gateway runs the switchboard.
type Gateway struct {
	config  *config.Config
	logger  *slog.Logger
	version string

	workers    *worker.Manager
	dialer     mcpclient.Dialer
	aggregator *catalog.Aggregator
	snapshots  *routing.Store
	router     *routing.Router
	switcher   *switcher.Coordinator
	self       routing.SelfCapability

	mcpServer *mcp.Server
	tokens    *mcp.TokenStore
	watcher   *watch.Watcher

	stdin  io.Reader
	stdout io.Writer

	// passMu serializes full aggregation passes and guards closed
	passMu sync.Mutex
	closed bool

	sourceMu     sync.RWMutex
	activeSource string

	shutdownOnce sync.Once
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithVersion sets the version reported to MCP clients and workers.
func WithVersion(v string) Option {
	return func(g *Gateway) { g.version = v }
}

// WithStdio replaces os.Stdin and os.Stdout for the stdio transport.
func WithStdio(in io.Reader, out io.Writer) Option {
	return func(g *Gateway) { g.stdin, g.stdout = in, out }
}

// WithDialer replaces the worker client pool.
func WithDialer(d mcpclient.Dialer) Option {
	return func(g *Gateway) { g.dialer = d }
}

// New creates a Gateway. No workers are started until Refresh or Run.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	g := &Gateway{
		config:  cfg,
		logger:  logger,
		version: "dev",
		stdin:   os.Stdin,
		stdout:  os.Stdout,
	}
	for _, opt := range opts {
		opt(g)
	}

	g.workers = worker.NewManager(worker.ManagerConfig{
		Logger:      logger,
		GracePeriod: cfg.Workers.StopGracePeriod,
	})
	if g.dialer == nil {
		g.dialer = mcpclient.NewPool(mcpclient.PoolConfig{
			Logger:        logger,
			ClientName:    cfg.Server.Name,
			ClientVersion: g.version,
		})
	}

	var err error
	g.aggregator, err = catalog.NewAggregator(catalog.AggregatorConfig{
		Dialer:       g.dialer,
		Logger:       logger,
		QueryTimeout: cfg.Workers.QueryTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating aggregator: %w", err)
	}

	g.switcher, err = switcher.NewCoordinator(g, logger)
	if err != nil {
		return nil, fmt.Errorf("creating switcher: %w", err)
	}
	g.self = g.switcher.Capability()

	g.snapshots = routing.NewStore(&routing.Snapshot{
		Settings: routing.DefaultSettings(),
		Table:    routing.Resolve(logger, nil, routing.DefaultSettings(), g.self),
	})

	g.router, err = routing.NewRouter(routing.RouterConfig{
		Snapshots: g.snapshots,
		Workers:   routing.LiveSetFunc(g.lookupWorker),
		Dialer:    g.dialer,
		Logger:    logger,
		Timeout:   cfg.Workers.CallTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating router: %w", err)
	}

	g.tokens = mcp.NewTokenStore(cfg.Auth.Tokens)
	g.mcpServer, err = mcp.NewServer(mcp.Config{
		Backend:      g,
		Logger:       logger,
		Name:         cfg.Server.Name,
		Version:      g.version,
		Instructions: cfg.Server.Instructions,
		TokenStore:   g.tokens,
		RequireAuth:  len(cfg.Auth.Tokens) > 0,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	g.mcpServer.Publish(g.snapshots.Load())

	if cfg.Watch.Enabled {
		g.watcher, err = watch.New(watch.Config{
			Logger:   logger,
			Debounce: cfg.Watch.Debounce,
			OnChange: g.onSourceChanged,
		})
		if err != nil {
			return nil, fmt.Errorf("creating config watcher: %w", err)
		}
	}

	return g, nil
}

func (g *Gateway) lookupWorker(name string) (mcpclient.Endpoint, bool) {
	w, ok := g.workers.Lookup(name)
	if !ok {
		return nil, false
	}
	return w, true
}

func (g *Gateway) onSourceChanged(ctx context.Context, path string) {
	if _, err := g.Refresh(ctx); err != nil {
		g.logger.Warn("refresh after config change failed", "source", path, "error", err)
	}
}

// Run publishes the first catalog, then serves the configured transport until
// ctx is cancelled or the transport ends. Workers are stopped before it returns.
func (g *Gateway) Run(ctx context.Context) error {
	if _, err := g.Refresh(ctx); err != nil {
		g.logger.Warn("starting with an empty catalog", "error", err)
	}

	if g.watcher != nil {
		go g.watcher.Run(ctx)
	}

	var serveErr error
	switch g.config.Server.Transport {
	case config.TransportHTTP:
		serveErr = g.serveHTTP(ctx)
	default:
		serveErr = g.mcpServer.ServeStdio(ctx, g.stdin, g.stdout)
		if errors.Is(serveErr, context.Canceled) || errors.Is(serveErr, io.EOF) {
			serveErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*g.config.Workers.StopGracePeriod+5*time.Second)
	defer cancel()
	shutdownErr := g.Shutdown(shutdownCtx)

	if serveErr != nil {
		return serveErr
	}
	return shutdownErr
}

// Handler returns the HTTP routes: MCP, health and metrics.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	g.mcpServer.RegisterRoutes(mux)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/health/ready", g.handleReady)
	if g.config.Metrics.Enabled {
		mux.Handle(g.config.Metrics.Path, metrics.Handler())
	}
	return mux
}

func (g *Gateway) serveHTTP(ctx context.Context) error {
	if len(g.config.Auth.Tokens) == 0 {
		g.logger.Warn("HTTP transport has no auth tokens configured; /mcp is open")
	}

	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", g.config.Server.HTTPAddr, err)
	}

	srv := &http.Server{
		Handler:           g.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
		close(errCh)
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
	case serveErr = <-errCh:
		g.logger.Error("server error", "error", serveErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		g.logger.Warn("HTTP shutdown", "error", err)
	}
	return serveErr
}

// Shutdown stops the watcher and every worker. It waits for a running pass
// to finish, and later passes start no workers. Safe to call more than once.
func (g *Gateway) Shutdown(ctx context.Context) error {
	var err error
	g.shutdownOnce.Do(func() {
		g.logger.Info("shutting down switchboard")
		if g.watcher != nil {
			if cerr := g.watcher.Close(); cerr != nil {
				err = fmt.Errorf("closing config watcher: %w", cerr)
			}
		}

		g.passMu.Lock()
		defer g.passMu.Unlock()
		g.closed = true
		g.workers.StopAll(context.WithoutCancel(ctx))
	})
	return err
}

// handleHealth returns 200 OK if the server is running.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK once a catalog has been built from a config source.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	snap := g.snapshots.Load()
	if snap.Source == "" {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("no config source loaded"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d workers, %d tools)", len(snap.Workers), snap.Table.WorkerToolCount())
}
