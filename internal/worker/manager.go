// ABOUTME: Spawns, tracks and stops worker processes
// ABOUTME: The live set is mutated only by apply, which consumes spawn, exit and stop events

package worker

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultGracePeriod is how long a worker has to exit after SIGTERM before it is killed.
const DefaultGracePeriod = 2 * time.Second

// stderrDrainDelay bounds how long Wait keeps copying stderr after the process exits.
const stderrDrainDelay = time.Second

// ManagerConfig holds the dependencies for a Manager.
type ManagerConfig struct {
	Logger      *slog.Logger
	GracePeriod time.Duration
	// Environ supplies the inherited environment. Defaults to os.Environ.
	Environ func() []string
}

// Manager owns every running worker.
type Manager struct {
	logger  *slog.Logger
	grace   time.Duration
	environ func() []string

	mu   sync.Mutex
	live map[string]*Worker
}

// NewManager creates a Manager with an empty live set.
func NewManager(cfg ManagerConfig) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	grace := cfg.GracePeriod
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	environ := cfg.Environ
	if environ == nil {
		environ = os.Environ
	}
	return &Manager{
		logger:  logger,
		grace:   grace,
		environ: environ,
		live:    make(map[string]*Worker),
	}
}

type eventKind int

const (
	workerStarted eventKind = iota
	workerExited
	fleetStopped
)

type event struct {
	kind   eventKind
	worker *Worker
}

// apply is the only place the live set changes.
func (m *Manager) apply(ev event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.kind {
	case workerStarted:
		w := ev.worker
		if prev, ok := m.live[w.Name()]; ok && prev != w {
			m.logger.Warn("worker replaced while still running",
				"worker", w.Name(),
				"old_pid", prev.PID(),
				"new_pid", w.PID(),
			)
		}
		m.live[w.Name()] = w
		m.logger.Info("=== WORKER STARTED ===",
			"worker", w.Name(),
			"pid", w.PID(),
			"command", w.spec.Command,
			"args", strings.Join(w.spec.Args, " "),
			"total_workers", len(m.live),
		)

	case workerExited:
		w := ev.worker
		cur, ok := m.live[w.Name()]
		if !ok || cur != w {
			// Already cleared by StopAll or replaced by a newer generation.
			m.logger.Debug("worker exited", "worker", w.Name(), "pid", w.PID(), "error", w.exitErr)
			return
		}
		delete(m.live, w.Name())
		m.logger.Info("=== WORKER EXITED ===",
			"worker", w.Name(),
			"pid", w.PID(),
			"error", w.exitErr,
			"total_workers", len(m.live),
		)

	case fleetStopped:
		m.live = make(map[string]*Worker)
	}
}

// Start spawns one process per spec. Specs that fail validation or fail to
// exec are logged and left out of the result; the rest are unaffected.
func (m *Manager) Start(specs []Spec) []*Worker {
	started := make([]*Worker, 0, len(specs))
	for _, spec := range specs {
		w, err := m.spawn(spec)
		if err != nil {
			m.logger.Error("failed to start worker",
				"worker", spec.Name,
				"command", spec.Command,
				"error", err,
			)
			continue
		}
		started = append(started, w)
	}
	return started
}

func (m *Manager) spawn(spec Spec) (*Worker, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	env := buildEnv(m.environ(), spec.Env)
	cmd := exec.Command(resolveCommand(spec.Command, env), spec.Args...)
	cmd.Dir = spec.Cwd
	cmd.Env = env
	cmd.Stderr = newStderrLog(m.logger, spec.Name)
	cmd.WaitDelay = stderrDrainDelay
	setupProcessGroup(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting process: %w", err)
	}

	w := &Worker{
		spec:      spec,
		cmd:       cmd,
		stdin:     stdin,
		stdout:    stdout,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	m.apply(event{kind: workerStarted, worker: w})
	go m.wait(w)
	return w, nil
}

func (m *Manager) wait(w *Worker) {
	w.exitErr = w.cmd.Wait()
	close(w.done)
	m.apply(event{kind: workerExited, worker: w})
}

// StopAll stops every live worker concurrently and then clears the live set.
// Individual failures are logged; StopAll always completes.
func (m *Manager) StopAll(ctx context.Context) {
	workers := m.Live()
	if len(workers) > 0 {
		m.logger.Info("stopping workers", "count", len(workers), "grace_period", m.grace)
	}

	var g errgroup.Group
	for _, w := range workers {
		g.Go(func() error {
			m.stop(ctx, w)
			return nil
		})
	}
	_ = g.Wait()

	m.apply(event{kind: fleetStopped})
}

func (m *Manager) stop(ctx context.Context, w *Worker) {
	if !w.Alive() {
		return
	}

	if err := terminate(w.cmd.Process); err != nil {
		m.logger.Warn("failed to send SIGTERM", "worker", w.Name(), "pid", w.PID(), "error", err)
	}

	timer := time.NewTimer(m.grace)
	defer timer.Stop()

	select {
	case <-w.done:
		m.logger.Debug("worker stopped", "worker", w.Name(), "pid", w.PID())
		return
	case <-timer.C:
		m.logger.Warn("worker did not exit within grace period, killing",
			"worker", w.Name(),
			"pid", w.PID(),
			"grace_period", m.grace,
		)
	case <-ctx.Done():
		m.logger.Warn("stop cancelled, killing worker", "worker", w.Name(), "pid", w.PID())
	}

	if err := kill(w.cmd.Process); err != nil {
		m.logger.Warn("failed to send SIGKILL", "worker", w.Name(), "pid", w.PID(), "error", err)
	}

	select {
	case <-w.done:
	case <-time.After(m.grace):
		m.logger.Error("worker still running after SIGKILL", "worker", w.Name(), "pid", w.PID())
	}
}

// Lookup returns the live worker with the given name.
func (m *Manager) Lookup(name string) (*Worker, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.live[name]
	return w, ok
}

// Live returns the live workers ordered by name.
func (m *Manager) Live() []*Worker {
	m.mu.Lock()
	workers := make([]*Worker, 0, len(m.live))
	for _, w := range m.live {
		workers = append(workers, w)
	}
	m.mu.Unlock()

	slices.SortFunc(workers, func(a, b *Worker) int {
		return strings.Compare(a.Name(), b.Name())
	})
	return workers
}

// Len returns the number of live workers.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
