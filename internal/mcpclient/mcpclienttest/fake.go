// ABOUTME: In-memory Dialer, Session and Endpoint fakes for tests
// ABOUTME: Records dials, closes and forwarded calls per worker

// Package mcpclienttest provides fakes for code that talks to workers
// through mcpclient.Dialer.
package mcpclienttest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/2389/coven-switchboard/internal/mcpclient"
)

// Endpoint is a worker stand-in with a controllable exit.
type Endpoint struct {
	name string
	done chan struct{}
	once sync.Once
}

// NewEndpoint returns a live endpoint.
func NewEndpoint(name string) *Endpoint {
	return &Endpoint{name: name, done: make(chan struct{})}
}

func (e *Endpoint) Name() string          { return e.name }
func (e *Endpoint) Stdin() io.WriteCloser { return nopWriteCloser{} }
func (e *Endpoint) Stdout() io.Reader     { return strings.NewReader("") }
func (e *Endpoint) Done() <-chan struct{} { return e.done }

// Exit marks the endpoint as exited.
func (e *Endpoint) Exit() {
	e.once.Do(func() { close(e.done) })
}

type nopWriteCloser struct{}

func (nopWriteCloser) Write(p []byte) (int, error) { return len(p), nil }
func (nopWriteCloser) Close() error                { return nil }

// Worker scripts how a fake worker behaves.
type Worker struct {
	Tools     []mcp.Tool
	Resources []mcp.Resource
	DialErr   error
	ListErr   error
	// Delay is applied to ListTools and honours context cancellation.
	Delay time.Duration
	// Handler answers CallTool. Defaults to echoing the tool name.
	Handler func(name string, args any) (*mcp.CallToolResult, error)
}

// Call records one forwarded tool call.
type Call struct {
	Worker string
	Tool   string
	Args   any
}

// Dialer is a scripted mcpclient.Dialer.
type Dialer struct {
	mu      sync.Mutex
	workers map[string]*Worker
	dials   map[string]int
	closes  map[string]int
	calls   []Call
}

// NewDialer returns a Dialer with no workers.
func NewDialer() *Dialer {
	return &Dialer{
		workers: make(map[string]*Worker),
		dials:   make(map[string]int),
		closes:  make(map[string]int),
	}
}

// Set scripts the worker with the given name.
func (d *Dialer) Set(name string, w *Worker) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.workers[name] = w
}

// Dial implements mcpclient.Dialer.
func (d *Dialer) Dial(ctx context.Context, ep mcpclient.Endpoint) (mcpclient.Session, error) {
	d.mu.Lock()
	d.dials[ep.Name()]++
	w, ok := d.workers[ep.Name()]
	d.mu.Unlock()

	if !ok {
		return nil, fmt.Errorf("dialing %s: connection refused", ep.Name())
	}
	if w.DialErr != nil {
		return nil, w.DialErr
	}
	return &session{dialer: d, name: ep.Name(), worker: w}, nil
}

// Dials returns how many times the worker was dialed.
func (d *Dialer) Dials(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dials[name]
}

// Closes returns how many sessions to the worker were closed.
func (d *Dialer) Closes(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closes[name]
}

// Calls returns the forwarded calls in order.
func (d *Dialer) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

type session struct {
	dialer *Dialer
	name   string
	worker *Worker
}

func (s *session) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	if s.worker.Delay > 0 {
		select {
		case <-time.After(s.worker.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.worker.ListErr != nil {
		return nil, s.worker.ListErr
	}
	return append([]mcp.Tool(nil), s.worker.Tools...), nil
}

func (s *session) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	return append([]mcp.Resource(nil), s.worker.Resources...), nil
}

func (s *session) CallTool(ctx context.Context, name string, args any) (*mcp.CallToolResult, error) {
	s.dialer.mu.Lock()
	s.dialer.calls = append(s.dialer.calls, Call{Worker: s.name, Tool: name, Args: args})
	s.dialer.mu.Unlock()

	if s.worker.Handler != nil {
		return s.worker.Handler(name, args)
	}
	return mcp.NewToolResultText(s.name + ":" + name), nil
}

func (s *session) ReadResource(ctx context.Context, uri string) ([]mcp.ResourceContents, error) {
	for _, r := range s.worker.Resources {
		if r.URI == uri {
			return []mcp.ResourceContents{
				mcp.TextResourceContents{URI: uri, Text: s.name + ":" + uri},
			}, nil
		}
	}
	return nil, errors.New("resource not found")
}

func (s *session) Close() error {
	s.dialer.mu.Lock()
	s.dialer.closes[s.name]++
	s.dialer.mu.Unlock()
	return nil
}

// Tools builds minimal tool definitions with the given names.
func Tools(names ...string) []mcp.Tool {
	tools := make([]mcp.Tool, 0, len(names))
	for _, name := range names {
		tools = append(tools, mcp.NewTool(name, mcp.WithDescription(name+" tool")))
	}
	return tools
}

// Endpoints converts fakes to the interface slice the aggregator takes.
func Endpoints(eps ...*Endpoint) []mcpclient.Endpoint {
	out := make([]mcpclient.Endpoint, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep)
	}
	return out
}
