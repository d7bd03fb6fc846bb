// ABOUTME: A running worker: a Spec bound to a live process and its stdio pipes
// ABOUTME: Exposes the MCP byte stream and an exit notification channel

package worker

import (
	"bytes"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// Worker is a Spec bound to a running process. It is owned by the Manager;
// everything else should hold on to the name, not the pointer.
type Worker struct {
	spec      Spec
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	stdout    io.ReadCloser
	startedAt time.Time

	done    chan struct{}
	exitErr error
}

// Name returns the worker's logical name.
func (w *Worker) Name() string { return w.spec.Name }

// Spec returns the spec the worker was started from.
func (w *Worker) Spec() Spec { return w.spec }

// PID returns the OS process id.
func (w *Worker) PID() int { return w.cmd.Process.Pid }

// StartedAt returns when the process was spawned.
func (w *Worker) StartedAt() time.Time { return w.startedAt }

// Stdin is the write side of the worker's MCP channel.
func (w *Worker) Stdin() io.WriteCloser { return w.stdin }

// Stdout is the read side of the worker's MCP channel.
func (w *Worker) Stdout() io.Reader { return w.stdout }

// Done is closed once the process has exited.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Alive reports whether the process is still running.
func (w *Worker) Alive() bool {
	select {
	case <-w.done:
		return false
	default:
		return true
	}
}

// ExitErr returns the error from waiting on the process. Only meaningful after Done.
func (w *Worker) ExitErr() error {
	select {
	case <-w.done:
		return w.exitErr
	default:
		return nil
	}
}

const maxStderrLine = 8 * 1024

// stderrLog forwards a worker's stderr into the structured logger, one record per line.
type stderrLog struct {
	logger *slog.Logger
	worker string

	mu  sync.Mutex
	buf []byte
}

func newStderrLog(logger *slog.Logger, worker string) *stderrLog {
	return &stderrLog{logger: logger, worker: worker}
}

func (s *stderrLog) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buf = append(s.buf, p...)
	for {
		i := bytes.IndexByte(s.buf, '\n')
		if i < 0 {
			break
		}
		s.emit(s.buf[:i])
		s.buf = s.buf[i+1:]
	}
	if len(s.buf) > maxStderrLine {
		s.emit(s.buf)
		s.buf = s.buf[:0]
	}
	return len(p), nil
}

func (s *stderrLog) emit(line []byte) {
	text := strings.TrimRight(string(line), "\r")
	if text == "" {
		return
	}
	s.logger.Info("worker stderr", "worker", s.worker, "line", text)
}
